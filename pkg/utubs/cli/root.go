// Package cli implements the utubs command line client.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mikepea/utubs/pkg/utubs/client"
	"github.com/mikepea/utubs/pkg/utubs/config"
	"github.com/mikepea/utubs/pkg/utubs/logging"
	"github.com/mikepea/utubs/pkg/utubs/render"
	"github.com/mikepea/utubs/pkg/utubs/sync"
	"github.com/spf13/cobra"
)

// App holds the state shared by every command.
type App struct {
	ConfigPath string
	BaseURL    string
	Token      string
	Verbose    bool

	cfg *config.Config
}

// NewRootCmd builds the utubs command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "utubs",
		Short:        "Browse and edit shared UTubs from the terminal",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Sign in and export the token
  utubs login --email me@example.com --password secret

  # Show a UTub filtered by two tags
  utubs show 3 --tag 4 --tag 9

  # Add and tag a URL
  utubs add 3 go.dev --title "Go"
  utubs tag 3 12 docs
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(app.ConfigPath)
		if err != nil {
			return err
		}
		if app.BaseURL != "" {
			cfg.Client.BaseURL = app.BaseURL
		}
		if app.Token != "" {
			cfg.Client.Token = app.Token
		}
		app.cfg = cfg
		return nil
	}

	cmd.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", "", "path to utubs.toml")
	cmd.PersistentFlags().StringVar(&app.BaseURL, "server", "", "API base URL (overrides client.base_url)")
	cmd.PersistentFlags().StringVar(&app.Token, "token", "", "bearer token (overrides client.token)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "print merge summaries and debug logs")

	cmd.AddCommand(newRegisterCmd(app))
	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newUTubsCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newTitleCmd(app))
	cmd.AddCommand(newHrefCmd(app))
	cmd.AddCommand(newRmCmd(app))
	cmd.AddCommand(newTagCmd(app))
	cmd.AddCommand(newUntagCmd(app))
	cmd.AddCommand(newTagsCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newKeysCmd(app))

	return cmd
}

func (app *App) logger(w io.Writer) *log.Logger {
	level := app.cfg.Log.Level
	if app.Verbose {
		level = "debug"
	}
	return logging.New(w, level)
}

func (app *App) client(cmd *cobra.Command) *client.Client {
	return client.New(client.Options{
		BaseURL:           app.cfg.Client.BaseURL,
		Token:             app.cfg.Client.Token,
		Timeout:           app.cfg.Client.Timeout,
		RequestsPerSecond: app.cfg.Client.RequestsPerSecond,
		Logger:            app.logger(cmd.ErrOrStderr()),
	})
}

// session is an engine bound to one UTub and drawing on the command output.
type session struct {
	*sync.Engine
	term *render.Terminal
}

func (app *App) open(cmd *cobra.Command, utubID sync.UTubID) (*session, error) {
	term := render.NewTerminal(cmd.OutOrStdout(), nil)
	term.Diffs = app.Verbose
	engine := sync.NewEngine(app.client(cmd), sync.Options{
		MaxSelectedTags: app.cfg.Filter.MaxSelectedTags,
		Timeout:         app.cfg.Client.Timeout,
		Projector:       term,
		Faults:          term,
		Logger:          app.logger(cmd.ErrOrStderr()).With("utub", utubID),
	})
	term.Bind(engine.Store)

	out, err := engine.SelectUTub(cmd.Context(), utubID)
	if err != nil {
		return nil, err
	}
	if err := outcomeErr(out); err != nil {
		return nil, err
	}
	return &session{Engine: engine, term: term}, nil
}

var errNotCommitted = errors.New("operation did not complete")

// outcomeErr turns a non-committed outcome into a command failure. The
// terminal has already explained it.
func outcomeErr(out sync.Outcome) error {
	if out.OK() {
		return nil
	}
	if out.Err != nil {
		return fmt.Errorf("%w: %w", errNotCommitted, out.Err)
	}
	return errNotCommitted
}

func parseID(kind, s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return uint(n), nil
}
