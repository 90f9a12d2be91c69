package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alltagsbruecke/SignUp-APP/internal/background"
	"github.com/Alltagsbruecke/SignUp-APP/internal/contract"
)

// ContractOptions holds flags for the contract command.
type ContractOptions struct {
	*RootOptions
	ClientID  int64
	Signature string
	Output    string
	Template  string
}

// ContractResult is the JSON payload of a rendered contract.
type ContractResult struct {
	ContractID  string    `json:"contract_id"`
	ClientID    int64     `json:"client_id"`
	Path        string    `json:"path"`
	Digest      string    `json:"digest"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewContractCommand creates the contract command.
func NewContractCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ContractOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Generate a signed contract PDF for a client",
		Long: `Freeze the client's current data, read the signature and write the
contract PDF in one atomic step.

The signature file comes from an external signature pad: a .png image or
a .json stroke file ({"width":..,"height":..,"strokes":[[[x,y],...]]}).
A missing signature file counts as a cancelled signing.

Example:
  signup contract --client 7 --signature pad.json --out vertrag_7.pdf
  signup contract --client 7 --signature pad.png --template pflege.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContract(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.ClientID, "client", 0, "customer number (required)")
	cmd.Flags().StringVar(&opts.Signature, "signature", "", "signature file, .png or .json strokes (required)")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "output PDF path (default vertrag_<id>_<timestamp>.pdf)")
	cmd.Flags().StringVar(&opts.Template, "template", "", "YAML contract template (default from config, then built-in)")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("signature")

	return cmd
}

func runContract(opts *ContractOptions, cmd *cobra.Command) error {
	if opts.ClientID <= 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("invalid client id %d: must be a positive integer", opts.ClientID))
	}

	tmpl, err := opts.template()
	if err != nil {
		return err
	}

	out := opts.Output
	if out == "" {
		out = fmt.Sprintf("vertrag_%d_%s.pdf", opts.ClientID, opts.now().UTC().Format("20060102-150405"))
	}
	out = opts.outputPath(out)

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

	engineOpts := []contract.Option{
		contract.WithTemplate(tmpl),
		contract.WithBranding(branding),
	}
	if opts.Now != nil {
		engineOpts = append(engineOpts, contract.WithClock(opts.Now))
	}
	if opts.NewContractID != nil {
		engineOpts = append(engineOpts, contract.WithIDGenerator(opts.NewContractID))
	}
	eng := contract.NewEngine(st, engineOpts...)

	sess := eng.Begin(opts.ClientID)
	if _, err := sess.Snapshot(ctx); err != nil {
		return WrapCoreError("failed to snapshot client", err)
	}

	slog.Debug("reading signature", "path", opts.Signature)
	if err := sess.Sign(ctx, contract.FileCapturer{Path: opts.Signature}); err != nil {
		_ = sess.Abandon()
		if errors.Is(err, contract.ErrCaptureCancelled) || ctx.Err() != nil {
			return WrapExitError(ExitFailure, "signature capture cancelled", err)
		}
		return WrapCoreError("failed to capture signature", err)
	}

	var res contract.Result
	runner := background.New(ctx, 1)
	defer func() { _ = runner.Shutdown() }()
	job := runner.Go("render", func(ctx context.Context) error {
		var err error
		res, err = sess.Render(ctx, out)
		return err
	})
	if err := job.Wait(); err != nil {
		if ctx.Err() != nil {
			return WrapExitError(ExitFailure, "contract rendering cancelled", err)
		}
		return WrapCoreError("failed to render contract", err)
	}

	formatter := opts.formatter(cmd)
	if formatter.Format == "json" {
		return formatter.Success(ContractResult(res))
	}
	fmt.Fprintf(formatter.Writer, "Contract %s for client %d written to %s\n", res.ContractID, res.ClientID, res.Path)
	formatter.VerboseLog("Snapshot digest: %s", res.Digest)
	return nil
}

// template picks the flag, then the configured file, then the built-in.
func (o *ContractOptions) template() (contract.Template, error) {
	path := o.Template
	if path == "" {
		path = o.Config.Template
	}
	if path == "" {
		return contract.DefaultTemplate(), nil
	}
	tmpl, err := contract.LoadTemplate(path)
	if err != nil {
		return contract.Template{}, WrapCoreError("failed to load template", err)
	}
	return tmpl, nil
}
