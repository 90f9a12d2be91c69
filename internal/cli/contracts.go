package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

// ContractsOptions holds flags for the contracts command.
type ContractsOptions struct {
	*RootOptions
	ClientID int64
}

// NewContractsCommand creates the contracts command listing the contract log.
func NewContractsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ContractsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "List generated contracts",
		Long: `List the contract log, oldest first. Entries keep the client data the
contract was generated from, even after the client is deleted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			entries, err := st.ListContracts(cmd.Context(), opts.ClientID)
			if err != nil {
				return WrapCoreError("failed to list contracts", err)
			}

			formatter := opts.formatter(cmd)
			if formatter.Format == "json" {
				return formatter.Success(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(formatter.Writer, "No contracts.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(formatter.Writer, "%s  client %-6d  %s  %s\n",
					e.GeneratedAt.UTC().Format(record.TimeLayout), e.ClientID, e.ID, e.Path)
				formatter.VerboseLog("  %s  sha256:%s", e.Snapshot.Name(), e.Digest)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.ClientID, "client", 0, "only contracts of this customer number")

	return cmd
}
