package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

// ClientOptions holds flags for the client subcommands.
type ClientOptions struct {
	*RootOptions
	Fields []string
	Name   string
	Set    []string
	Remove []string
}

// NewClientCommand creates the client command and its subcommands.
func NewClientCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Create, inspect and change client records",
	}

	cmd.AddCommand(newClientAddCommand(rootOpts))
	cmd.AddCommand(newClientFieldCommand(rootOpts))
	cmd.AddCommand(newClientShowCommand(rootOpts))
	cmd.AddCommand(newClientListCommand(rootOpts))
	cmd.AddCommand(newClientUpdateCommand(rootOpts))
	cmd.AddCommand(newClientDeleteCommand(rootOpts))

	return cmd
}

func newClientAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a client and assign the next customer number",
		Long: `Create a client record. Extra fields are given as key=value pairs and
keep the order in which they are listed. The key ends at the first '=', so
values may contain '=' but keys may not; add such a key with "client field".

Example:
  signup client add "Anna Müller" --field Telefon=0301234 --field Pflegegrad=2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(opts.Fields)
			if err != nil {
				return err
			}

			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			c, err := st.Create(cmd.Context(), args[0], fields)
			if err != nil {
				return WrapCoreError("failed to create client", err)
			}

			formatter := opts.formatter(cmd)
			if formatter.Format == "json" {
				return formatter.Success(c)
			}
			fmt.Fprintf(formatter.Writer, "Created client %d (%s)\n", c.ID, c.Name)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Fields, "field", "f", nil, "extra field as key=value, split at the first '=' (repeatable)")

	return cmd
}

func newClientFieldCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:           "field <id> <key> <value>",
		Short:         "Add an extra field to a client",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClientID(args[0])
			if err != nil {
				return err
			}

			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			if err := st.AddField(cmd.Context(), id, args[1], args[2]); err != nil {
				return WrapCoreError("failed to add field", err)
			}

			formatter := opts.formatter(cmd)
			if formatter.Format == "json" {
				return formatter.Success(map[string]interface{}{
					"client_id": id,
					"key":       record.NormalizeKey(args[1]),
					"value":     args[2],
				})
			}
			fmt.Fprintf(formatter.Writer, "Added field %q to client %d\n", record.NormalizeKey(args[1]), id)
			return nil
		},
	}
}

func newClientShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one client",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClientID(args[0])
			if err != nil {
				return err
			}

			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			c, err := st.Get(cmd.Context(), id)
			if err != nil {
				return WrapCoreError("failed to load client", err)
			}

			formatter := opts.formatter(cmd)
			if formatter.Format == "json" {
				return formatter.Success(c)
			}
			printClient(formatter.Writer, c)
			return nil
		},
	}
}

func newClientListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:           "list",
		Short:         "List all clients by customer number",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			clients, err := st.ListAll(cmd.Context())
			if err != nil {
				return WrapCoreError("failed to list clients", err)
			}

			formatter := opts.formatter(cmd)
			if formatter.Format == "json" {
				return formatter.Success(clients)
			}
			if len(clients) == 0 {
				fmt.Fprintln(formatter.Writer, "No clients.")
				return nil
			}
			for _, c := range clients {
				fmt.Fprintf(formatter.Writer, "%6d  %-30s  %d field(s)\n", c.ID, c.Name, len(c.Fields))
			}
			return nil
		},
	}
}

func newClientUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename a client or change existing fields",
		Long: `Apply all changes in one step. --set only changes keys the client already
has; use "client field" to add new ones. Like --field, --set splits at the
first '=', so a key containing '=' can only be removed, not set.

Example:
  signup client update 7 --name "Anna Schmidt" --set Telefon=0309876 --remove Pflegegrad`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClientID(args[0])
			if err != nil {
				return err
			}
			set, err := parseAssignments(opts.Set)
			if err != nil {
				return err
			}

			upd := record.Update{Set: set, Remove: opts.Remove}
			if cmd.Flags().Changed("name") {
				name := opts.Name
				upd.Name = &name
			}

			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			if err := st.Update(cmd.Context(), id, upd); err != nil {
				return WrapCoreError("failed to update client", err)
			}
			c, err := st.Get(cmd.Context(), id)
			if err != nil {
				return WrapCoreError("failed to load client", err)
			}

			formatter := opts.formatter(cmd)
			if formatter.Format == "json" {
				return formatter.Success(c)
			}
			printClient(formatter.Writer, c)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "new client name")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "change an existing field as key=value, split at the first '=' (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Remove, "remove", nil, "remove a field by key (repeatable)")

	return cmd
}

func newClientDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a client and its fields",
		Long: `Delete a client. Its customer number is never assigned again and
contracts already generated for it stay in the contract log.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClientID(args[0])
			if err != nil {
				return err
			}

			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			if err := st.Delete(cmd.Context(), id); err != nil {
				return WrapCoreError("failed to delete client", err)
			}

			formatter := opts.formatter(cmd)
			if formatter.Format == "json" {
				return formatter.Success(map[string]int64{"deleted": id})
			}
			fmt.Fprintf(formatter.Writer, "Deleted client %d\n", id)
			return nil
		},
	}
}

func printClient(w io.Writer, c record.Client) {
	fmt.Fprintf(w, "Kundennummer: %d\n", c.ID)
	fmt.Fprintf(w, "Name:         %s\n", c.Name)
	fmt.Fprintf(w, "Angelegt:     %s\n", c.CreatedAt.UTC().Format(record.TimeLayout))
	if len(c.Fields) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, f := range c.Fields {
		fmt.Fprintf(w, "  %s: %s\n", f.Key, f.Value)
	}
}

// parseClientID parses a customer number argument.
func parseClientID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitFailure, fmt.Sprintf("invalid client id %q: must be a positive integer", s))
	}
	return id, nil
}

// parseAssignments turns key=value arguments into fields, keeping their
// order. The key ends at the first '='; values may contain '='.
func parseAssignments(pairs []string) ([]record.Field, error) {
	fields := make([]record.Field, 0, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, NewExitError(ExitFailure, fmt.Sprintf("invalid field %q: expected key=value", p))
		}
		fields = append(fields, record.Field{Key: key, Value: value})
	}
	return fields, nil
}
