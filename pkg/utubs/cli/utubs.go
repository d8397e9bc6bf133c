package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newUTubsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "utubs",
		Aliases: []string{"ls"},
		Short:   "List and manage UTubs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := app.client(cmd).ListUTubs(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tMEMBERS")
			for _, u := range list {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", u.ID, u.Name, u.Role, u.MemberCount)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(newUTubCreateCmd(app))
	cmd.AddCommand(newUTubDeleteCmd(app))
	cmd.AddCommand(newMemberAddCmd(app))
	cmd.AddCommand(newMemberRemoveCmd(app))
	return cmd
}

func newUTubCreateCmd(app *App) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a UTub",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			utub, err := app.client(cmd).CreateUTub(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created UTub %q (#%d)\n", utub.Name, utub.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "description")
	return cmd
}

func newUTubDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <utub>",
		Short: "Delete a UTub you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("utub", args[0])
			if err != nil {
				return err
			}
			if err := app.client(cmd).DeleteUTub(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted UTub #%d\n", id)
			return nil
		},
	}
}

func newMemberAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "invite <utub> <username>",
		Short: "Add a member to a UTub",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("utub", args[0])
			if err != nil {
				return err
			}
			m, err := app.client(cmd).AddMember(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (#%d)\n", m.Username, m.ID)
			return nil
		},
	}
}

func newMemberRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "kick <utub> <user>",
		Short: "Remove a member, or leave when the user is you",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("utub", args[0])
			if err != nil {
				return err
			}
			userID, err := parseID("user", args[1])
			if err != nil {
				return err
			}
			if err := app.client(cmd).RemoveMember(cmd.Context(), id, userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed #%d\n", userID)
			return nil
		},
	}
}
