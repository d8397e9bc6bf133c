package cli

import (
	"fmt"

	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/spf13/cobra"
)

func printToken(cmd *cobra.Command, res api.AuthResponse) {
	fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (#%d)\n", res.User.Username, res.User.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "export UTUBS_TOKEN=%s\n", res.Token)
}

func newRegisterCmd(app *App) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.client(cmd).Register(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			printToken(cmd, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(app *App) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.client(cmd).Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			printToken(cmd, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := app.client(cmd).Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (#%d)\n", me.Username, me.Email, me.ID)
			return nil
		},
	}
}
