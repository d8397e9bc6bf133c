package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List and manage API keys (requires a login token)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := app.client(cmd).ListAPIKeys(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPREFIX\tDESCRIPTION\tLAST USED")
			for _, k := range keys {
				used := "never"
				if k.LastUsedAt != nil {
					used = k.LastUsedAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", k.ID, k.KeyPrefix, k.Description, used)
			}
			return w.Flush()
		},
	}

	var description string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a key for this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := app.client(cmd).CreateAPIKey(cmd.Context(), description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created key #%d, it will not be shown again\n", key.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "export UTUBS_TOKEN=%s\n", key.Key)
			return nil
		},
	}
	create.Flags().StringVarP(&description, "description", "d", "", "description")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <key>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("key", args[0])
			if err != nil {
				return err
			}
			if err := app.client(cmd).DeleteAPIKey(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked key #%d\n", id)
			return nil
		},
	})
	return cmd
}
