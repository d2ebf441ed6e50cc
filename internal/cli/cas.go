package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/archivindex/internal/cas"
)

// CASOptions holds flags for the cas import command.
type CASOptions struct {
	*RootOptions
	Validate bool
}

// NewCASCommand creates the cas command group for capture directories.
func NewCASCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cas",
		Short: "Work with content-addressed capture directories",
	}
	cmd.AddCommand(newCASImportCommand(rootOpts))
	return cmd
}

// ImportSummary is the JSON form of an import result.
type ImportSummary struct {
	Files      int            `json:"files"`
	Skipped    []string       `json:"skipped"`
	Mismatches []cas.Mismatch `json:"mismatches"`
	Failures   []string       `json:"failures"`
}

func summarizeImport(res *cas.Result) ImportSummary {
	s := ImportSummary{
		Files:      len(res.Files),
		Skipped:    append([]string{}, res.Skipped...),
		Mismatches: append([]cas.Mismatch{}, res.Mismatches...),
		Failures:   make([]string, 0, len(res.Failures)),
	}
	for _, f := range res.Failures {
		s.Failures = append(s.Failures, fmt.Sprintf("%s: %v", f.Path, f.Err))
	}
	return s
}

func newCASImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CASOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <dir>...",
		Short: "Classify (and optionally verify) capture files",
		Long: `Walk capture directories and classify every file named
<base32-sha1>[.zst|.gz]. Other files are skipped.

With --validate each file is decompressed and hashed; a file whose content
does not match its name is reported and the command exits with status 1.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCASImport(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Validate, "validate", false, "hash every file and compare with its name")

	return cmd
}

func runCASImport(opts *CASOptions, roots []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	res, err := cas.Import(roots, opts.Validate)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
	}

	summary := summarizeImport(res)
	err = formatter.Result(summary, func(w io.Writer) {
		fmt.Fprintf(w, "Files: %d\n", summary.Files)
		fmt.Fprintf(w, "Skipped: %d\n", len(summary.Skipped))
		fmt.Fprintf(w, "Digest mismatches: %d\n", len(summary.Mismatches))
		fmt.Fprintf(w, "Unreadable: %d\n", len(summary.Failures))
		for _, m := range summary.Mismatches {
			fmt.Fprintf(w, "  %s: expected %s, found %s\n", m.Path, m.Expected, m.Found)
		}
		for _, f := range summary.Failures {
			fmt.Fprintf(w, "  %s\n", f)
		}
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if !res.Successful() {
		return NewExitError(ExitFailure, "import found damaged capture files")
	}
	return nil
}
