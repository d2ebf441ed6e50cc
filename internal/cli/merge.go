package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/archivindex/internal/cas"
	"github.com/roach88/archivindex/internal/config"
	"github.com/roach88/archivindex/internal/merge"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Job   string
	Level levelValue

	// RunIDs overrides the run ID generator (for testing).
	// If nil, defaults to merge.UUIDv7Generator.
	RunIDs merge.RunIDGenerator
}

// MergeResult is the outcome of a merge job.
type MergeResult struct {
	Import ImportSummary `json:"import"`
	Merge  *merge.Report `json:"merge"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge capture directories into snapshot stores",
		Long: `Merge imported capture files into sorted snapshot stores, as described by
a YAML job file:

  compression_level: 19
  validate: true
  cas: [captures/2024-01]
  stores:
    - shape: data
      input: stores/data.ndjson.zst
      output: out/data.ndjson.zst

Records already in an input store are copied through unchanged. Outputs are
written only when the whole run succeeds; a corrupt input store aborts the run
and removes every partial output.

Example:
  archivindex merge --job job.yaml
  archivindex merge --job job.yaml --level 3 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Job, "job", "", "path to the YAML job file (required)")
	cmd.Flags().Var(&opts.Level, "level", "zstd level for new stores, overriding the job file (1-22)")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func runMerge(opts *MergeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	job, err := config.Load(opts.Job)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidJob, err, nil)
	}
	if opts.Level != 0 {
		job.CompressionLevel = int(opts.Level)
	}
	slog.Debug("loaded job", "path", opts.Job, "cas", len(job.CAS), "stores", len(job.Stores), "level", job.CompressionLevel)

	imported, err := cas.Import(job.CAS, job.ValidateFiles())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
	}

	stores, err := merge.OpenStores(job.Stores, job.CompressionLevel)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err, nil)
	}
	defer merge.AbortStores(stores)

	merger := &merge.Merger{Shapes: job.ShapeSet(), RunIDs: opts.RunIDs}
	report, err := merger.Run(imported.Files, stores)
	if err != nil {
		var storeErr *merge.StoreError
		if errors.As(err, &storeErr) {
			return formatter.Fail(ExitFailure, ErrCodeCorruptStore, err, nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}
	if err := merge.FinishStores(stores); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err, nil)
	}

	result := MergeResult{Import: summarizeImport(imported), Merge: report}
	err = formatter.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "Run: %s\n", report.RunID)
		fmt.Fprintf(w, "Capture files: %d (skipped %d, mismatched %d, unreadable %d)\n",
			result.Import.Files, len(result.Import.Skipped), len(result.Import.Mismatches), len(result.Import.Failures))
		fmt.Fprintf(w, "Imported: %d\n", report.Imported)
		fmt.Fprintf(w, "Already stored: %d\n", report.Matched)
		fmt.Fprintf(w, "Copied through: %d\n", report.Existing)
		fmt.Fprintf(w, "Duplicates: %d\n", report.Duplicates)
		fmt.Fprintf(w, "Unrecognized: %d\n", len(report.Unrecognized))
		fmt.Fprintf(w, "Failed: %d\n", len(report.Failures))
		shapes := make([]string, 0, len(report.Written))
		for shape := range report.Written {
			shapes = append(shapes, shape)
		}
		slices.Sort(shapes)
		for _, shape := range shapes {
			fmt.Fprintf(w, "  %s: %d records\n", shape, report.Written[shape])
		}
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if !imported.Successful() || !report.Successful() {
		return NewExitError(ExitFailure, "merge finished with skipped captures")
	}
	return nil
}
