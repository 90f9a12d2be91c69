package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

// BrandingOptions holds flags for the branding subcommands.
type BrandingOptions struct {
	*RootOptions
	CompanyName string
	LogoPath    string
	AccentColor string
}

// BrandingView is the JSON payload of "branding show".
type BrandingView struct {
	Stored    record.Branding `json:"stored"`
	Effective record.Branding `json:"effective"`
}

// NewBrandingCommand creates the branding command and its subcommands.
func NewBrandingCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branding",
		Short: "Show or change company branding used in exports and contracts",
	}

	cmd.AddCommand(newBrandingShowCommand(rootOpts))
	cmd.AddCommand(newBrandingSetCommand(rootOpts))

	return cmd
}

func newBrandingShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BrandingOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "show",
		Short: "Show stored and effective branding",
		Long: `Show the branding stored in the database and the effective branding
after config file and environment overrides.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			stored, err := st.LoadBranding(cmd.Context())
			if err != nil {
				return WrapCoreError("failed to load branding", err)
			}
			view := BrandingView{Stored: stored, Effective: opts.Config.MergeBranding(stored)}

			formatter := opts.formatter(cmd)
			if formatter.Format == "json" {
				return formatter.Success(view)
			}
			printBranding(formatter.Writer, view.Effective)
			return nil
		},
	}
}

func newBrandingSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BrandingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store branding values",
		Long: `Store branding values. Only the flags given are changed; pass an empty
value to clear one.

Example:
  signup branding set --company "Alltagsbrücke GmbH" --accent "#0A7E8C"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			b, err := st.LoadBranding(cmd.Context())
			if err != nil {
				return WrapCoreError("failed to load branding", err)
			}
			if cmd.Flags().Changed("company") {
				b.CompanyName = opts.CompanyName
			}
			if cmd.Flags().Changed("logo") {
				b.LogoPath = opts.LogoPath
			}
			if cmd.Flags().Changed("accent") {
				b.AccentColor = opts.AccentColor
			}

			if err := st.SaveBranding(cmd.Context(), b); err != nil {
				return WrapCoreError("failed to save branding", err)
			}

			formatter := opts.formatter(cmd)
			if formatter.Format == "json" {
				return formatter.Success(b)
			}
			printBranding(formatter.Writer, b)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.CompanyName, "company", "", "company name")
	cmd.Flags().StringVar(&opts.LogoPath, "logo", "", "logo file path (not checked)")
	cmd.Flags().StringVar(&opts.AccentColor, "accent", "", "accent color as #RRGGBB")

	return cmd
}

func printBranding(w io.Writer, b record.Branding) {
	fmt.Fprintf(w, "Company: %s\n", b.CompanyName)
	fmt.Fprintf(w, "Logo:    %s\n", b.LogoPath)
	fmt.Fprintf(w, "Accent:  %s\n", b.Accent())
}
