package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/archivindex/internal/digest"
	"github.com/roach88/archivindex/internal/index"
)

// NewIndexCommand creates the index command group for the capture index.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and query the SQLite capture index",
	}
	cmd.AddCommand(newIndexCDXCommand(rootOpts))
	cmd.AddCommand(newIndexGetCommand(rootOpts))
	return cmd
}

func newIndexCDXCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cdx <db> <root>",
		Short: "Index saved CDX result pages by digest",
		Long: `Record the timestamp, URL, MIME type and status of every CDX entry saved
under <root>/*/data/*.json, keyed by content digest. Newer pages are read
first; the first capture recorded for a digest is kept.

Example:
  archivindex index cdx index.db cdx-results/`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexCDX(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runIndexCDX(opts *RootOptions, dbPath, root string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	ix, err := index.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err, nil)
	}
	defer ix.Close()

	stats, err := ix.IndexFiles(cmd.Context(), root)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}

	err = formatter.Result(stats, func(w io.Writer) {
		fmt.Fprintf(w, "Pages: %d (unreadable %d)\n", stats.Pages, stats.BadPages)
		fmt.Fprintf(w, "Entries: %d\n", stats.Entries)
		fmt.Fprintf(w, "Added: %d\n", stats.Added)
		fmt.Fprintf(w, "Already indexed: %d\n", stats.Same)
		fmt.Fprintf(w, "Conflicting: %d\n", stats.Conflicts)
		fmt.Fprintf(w, "Invalid digests: %d\n", stats.InvalidDigests)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if stats.BadPages > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d result pages could not be read", stats.BadPages))
	}
	return nil
}

// IndexedCapture is the JSON form of an index lookup.
type IndexedCapture struct {
	Digest digest.Sha1 `json:"digest"`
	index.Capture
}

func newIndexGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <db> <digest>",
		Short:         "Look up the capture recorded for a digest",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexGet(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runIndexGet(opts *RootOptions, dbPath, arg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	d, err := digest.ParseSha1(arg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidDigest, err, nil)
	}

	ix, err := index.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
	}
	defer ix.Close()

	c, ok, err := ix.GetCapture(cmd.Context(), d)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}
	if !ok {
		return formatter.Fail(ExitFailure, ErrCodeNotFound, fmt.Errorf("no capture indexed for %s", d), nil)
	}

	err = formatter.Result(IndexedCapture{Digest: d, Capture: c}, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s %s %s %s\n", d, c.Timestamp, c.URL, c.MimeType, c.Status)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}
