package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/snapshot"
)

// NewLinesCommand creates the lines command group for snapshot stores.
func NewLinesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lines",
		Short: "Inspect snapshot stores",
	}
	cmd.AddCommand(newLinesValidateCommand(rootOpts))
	cmd.AddCommand(newLinesIncompleteCommand(rootOpts))
	return cmd
}

// FileReport is the validation result for one store file.
type FileReport struct {
	Path string `json:"path"`
	snapshot.Report
}

func newLinesValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <store>...",
		Short: "Check record syntax, digests and ordering",
		Long: `Validate snapshot store files (plain or .zst).

Every record must parse, its content plus closing whitespace must hash to its
digest, and digests must be strictly ascending. Problems are reported, never
repaired; any problem makes the command exit with status 1.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinesValidate(rootOpts, args, cmd)
		},
	}
}

func runLinesValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	src := digest.NewPool()

	reports := make([]FileReport, 0, len(paths))
	for _, path := range paths {
		report, err := validateFile(path, src)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
		}
		slog.Debug("validated store", "path", path, "valid", report.Valid)
		reports = append(reports, FileReport{Path: path, Report: report})
	}

	failed := false
	for _, r := range reports {
		failed = failed || !r.Successful()
	}

	err := formatter.Result(reports, func(w io.Writer) {
		for _, r := range reports {
			fmt.Fprintln(w, r.Path)
			fmt.Fprintf(w, "  Valid lines: %d\n", r.Valid)
			fmt.Fprintf(w, "  Invalid lines: %d\n", len(r.InvalidLines))
			fmt.Fprintf(w, "  Unexpected digests: %d\n", len(r.Mismatches))
			fmt.Fprintf(w, "  Out of order lines: %d\n", len(r.OutOfOrder))
			if opts.Verbose {
				for _, n := range r.InvalidLines {
					fmt.Fprintf(w, "  invalid line %d\n", n)
				}
				for _, m := range r.Mismatches {
					fmt.Fprintf(w, "  unexpected digest %s (recorded %s)\n", m.Computed, m.Recorded)
				}
				for _, d := range r.OutOfOrder {
					fmt.Fprintf(w, "  out of order %s\n", d)
				}
			}
		}
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if failed {
		return NewExitError(ExitFailure, "store validation failed")
	}
	return nil
}

func validateFile(path string, src digest.Source) (snapshot.Report, error) {
	rc, err := snapshot.OpenFile(path)
	if err != nil {
		return snapshot.Report{}, err
	}
	defer rc.Close()

	report, err := snapshot.ValidateLines(rc, src)
	if err != nil {
		return snapshot.Report{}, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}

func newLinesIncompleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "incomplete <store>",
		Short: "List digests of records without a timestamp",
		Args:  cobra.ExactArgs(1),
		Long: `List the digests of records that carry no capture timestamp, one per
line. These records still need their capture metadata filled in from the CDX
index.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinesIncomplete(rootOpts, args[0], cmd)
		},
	}
}

func runLinesIncomplete(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	r, err := snapshot.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
	}
	defer r.Close()

	digests := []digest.Sha1{}
	for {
		l, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeCorruptStore, fmt.Errorf("%s: %w", path, err), nil)
		}
		if l.Timestamp == nil {
			digests = append(digests, l.Digest)
		}
	}

	return formatter.Result(digests, func(w io.Writer) {
		for _, d := range digests {
			fmt.Fprintln(w, d)
		}
	})
}
