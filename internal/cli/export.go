package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Alltagsbruecke/SignUp-APP/internal/background"
	"github.com/Alltagsbruecke/SignUp-APP/internal/export"
	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
	"github.com/Alltagsbruecke/SignUp-APP/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Verify bool
}

// ExportResult is the JSON payload of a finished export.
type ExportResult struct {
	Path     string   `json:"path"`
	Clients  int      `json:"clients"`
	Columns  []string `json:"columns"`
	Verified bool     `json:"verified,omitempty"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write all clients to a spreadsheet",
		Long: `Write every client to an .xlsx workbook: one row per client in
customer number order, one column per extra field key. An existing file is
replaced atomically; an interrupted export leaves it untouched.

Relative paths are resolved against output_dir from the config.

Example:
  signup export kunden.xlsx
  signup export --verify /tmp/kunden.xlsx`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "read the written file back and compare it with the store")

	return cmd
}

func runExport(opts *ExportOptions, path string, cmd *cobra.Command) error {
	path = opts.outputPath(path)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	branding, err := opts.branding(ctx, st)
	if err != nil {
		return err
	}
	exp := export.New(st, export.WithBranding(branding))

	var table export.Table
	runner := background.New(ctx, 1)
	defer func() { _ = runner.Shutdown() }()
	job := runner.Go("export", func(ctx context.Context) error {
		var err error
		table, err = exp.Export(ctx, path)
		return err
	})
	if err := job.Wait(); err != nil {
		if ctx.Err() != nil {
			return WrapExitError(ExitFailure, "export cancelled", err)
		}
		return WrapCoreError("failed to export", err)
	}

	result := ExportResult{Path: path, Clients: len(table.Rows), Columns: table.Header}
	if opts.Verify {
		got, err := export.ReadTable(path)
		if err != nil {
			return WrapCoreError("failed to read back export", err)
		}
		if !got.Equal(table) {
			return NewExitError(ExitFailure, fmt.Sprintf("export verification failed: %s does not match the store", path))
		}
		result.Verified = true
		slog.Debug("export verified", "path", path)
	}

	formatter := opts.formatter(cmd)
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "Exported %d client(s) to %s\n", result.Clients, path)
	if result.Verified {
		fmt.Fprintln(formatter.Writer, "✓ File matches the store")
	}
	return nil
}

// outputPath resolves a relative path against the configured output
// directory.
func (o *RootOptions) outputPath(p string) string {
	if filepath.IsAbs(p) || o.Config.OutputDir == "" {
		return p
	}
	return filepath.Join(o.Config.OutputDir, p)
}

// branding returns the stored branding overlaid with configured values.
func (o *RootOptions) branding(ctx context.Context, st *store.Store) (record.Branding, error) {
	stored, err := st.LoadBranding(ctx)
	if err != nil {
		return record.Branding{}, WrapCoreError("failed to load branding", err)
	}
	return o.Config.MergeBranding(stored), nil
}
