package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/archivindex/internal/cdx"
)

// NewCDXCommand creates the cdx command group for saved CDX result pages.
func NewCDXCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cdx",
		Short: "Work with saved CDX result pages",
	}
	cmd.AddCommand(newCDXDecodeCommand(rootOpts))
	cmd.AddCommand(newCDXListCommand(rootOpts))
	cmd.AddCommand(newCDXCheckSurtsCommand(rootOpts))
	return cmd
}

func newCDXDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <page.json>",
		Short: "Decode one CDX result page",
		Long: `Decode a CDX result page and print its rows.

Text output prints one space-separated row per entry, followed by the
resumption key when the page has one. JSON output re-encodes the page.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCDXDecode(rootOpts, args[0], cmd)
		},
	}
}

func runCDXDecode(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	f, err := os.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
	}
	defer f.Close()

	list, err := cdx.DecodeJSON(f)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeValidation, fmt.Errorf("%s: %w", path, err), nil)
	}
	formatter.VerboseLog("Decoded %d entries (%s schema)", len(list.Entries), list.Schema)

	return formatter.Result(list, func(w io.Writer) {
		for _, e := range list.Entries {
			fmt.Fprintln(w, strings.Join(e.Row(), " "))
		}
		if list.ResumeKey != nil {
			fmt.Fprintf(w, "resume key: %s\n", *list.ResumeKey)
		}
	})
}

func newCDXListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <root>",
		Short: "List saved result pages, newest first",
		Long: `List every */data/*.json file below root, most recently modified first.
This is the order in which the other commands visit result pages.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			paths, err := cdx.Files(args[0])
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
			}
			return formatter.Result(paths, func(w io.Writer) {
				for _, p := range paths {
					fmt.Fprintln(w, p)
				}
			})
		},
	}
}

// KeyCheckResult summarizes check-surts over a tree of result pages.
type KeyCheckResult struct {
	cdx.KeyCheck
	Pages    int      `json:"pages"`
	BadPages []string `json:"bad_pages"`
}

func newCDXCheckSurtsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-surts <root>",
		Short: "Check that index keys match keys computed from original URLs",
		Long: `Recompute the SURT key of every application/json entry in every saved
result page below root and compare it with the key reported by the index.
Exits with status 1 when any key differs or any page cannot be decoded.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCDXCheckSurts(rootOpts, args[0], cmd)
		},
	}
}

func runCDXCheckSurts(opts *RootOptions, root string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	paths, err := cdx.Files(root)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
	}

	result := KeyCheckResult{KeyCheck: cdx.KeyCheck{Bad: []cdx.KeyMismatch{}}, BadPages: []string{}}
	for _, path := range paths {
		list, err := cdx.ReadFile(path)
		if err != nil {
			slog.Error("cannot decode result page", "path", path, "error", err)
			result.BadPages = append(result.BadPages, path)
			continue
		}
		result.Pages++

		check := cdx.CheckKeys(list.Entries)
		for _, bad := range check.Bad {
			slog.Error("invalid conversion", "path", path, "key", bad.Key, "computed", bad.Computed, "original", bad.Original)
		}
		result.Add(check)
	}
	slog.Info("checked keys", "good", result.Good, "bad", len(result.Bad))

	err = formatter.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "Good: %d; bad: %d\n", result.Good, len(result.Bad))
		if len(result.BadPages) > 0 {
			fmt.Fprintf(w, "Undecodable pages: %d\n", len(result.BadPages))
		}
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if len(result.Bad) > 0 || len(result.BadPages) > 0 {
		return NewExitError(ExitFailure, "key check failed")
	}
	return nil
}
