package cli

import (
	"github.com/mikepea/utubs/pkg/utubs/sync"
	"github.com/spf13/cobra"
)

// urlCommand runs fn against an open session for <utub> <url> [args...].
func urlCommand(app *App, use, short string, extra int, fn func(*cobra.Command, *session, sync.URLID, []string) (sync.Outcome, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2 + extra),
		RunE: func(cmd *cobra.Command, args []string) error {
			utubID, err := parseID("utub", args[0])
			if err != nil {
				return err
			}
			urlID, err := parseID("url", args[1])
			if err != nil {
				return err
			}
			s, err := app.open(cmd, sync.UTubID(utubID))
			if err != nil {
				return err
			}
			out, err := fn(cmd, s, sync.URLID(urlID), args[2:])
			if err != nil {
				return err
			}
			return outcomeErr(out)
		},
	}
}

func newAddCmd(app *App) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "add <utub> <url>",
		Short: "Add a URL to a UTub",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			utubID, err := parseID("utub", args[0])
			if err != nil {
				return err
			}
			s, err := app.open(cmd, sync.UTubID(utubID))
			if err != nil {
				return err
			}
			out, err := s.CreateURL(cmd.Context(), args[1], title)
			if err != nil {
				return err
			}
			if out.OK() {
				s.term.RenderView(s.View())
			}
			return outcomeErr(out)
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "URL title (defaults to the URL)")
	return cmd
}

func newTitleCmd(app *App) *cobra.Command {
	return urlCommand(app, "title <utub> <url> <title>", "Change a URL title", 1,
		func(cmd *cobra.Command, s *session, id sync.URLID, args []string) (sync.Outcome, error) {
			return s.UpdateURLTitle(cmd.Context(), id, args[0])
		})
}

func newHrefCmd(app *App) *cobra.Command {
	return urlCommand(app, "href <utub> <url> <new-url>", "Change the address of a URL", 1,
		func(cmd *cobra.Command, s *session, id sync.URLID, args []string) (sync.Outcome, error) {
			return s.UpdateURLString(cmd.Context(), id, args[0])
		})
}

func newRmCmd(app *App) *cobra.Command {
	return urlCommand(app, "rm <utub> <url>", "Remove a URL from a UTub", 0,
		func(cmd *cobra.Command, s *session, id sync.URLID, args []string) (sync.Outcome, error) {
			return s.DeleteURL(cmd.Context(), id)
		})
}

func newTagCmd(app *App) *cobra.Command {
	return urlCommand(app, "tag <utub> <url> <label>", "Tag a URL, creating the tag if needed", 1,
		func(cmd *cobra.Command, s *session, id sync.URLID, args []string) (sync.Outcome, error) {
			return s.AddURLTag(cmd.Context(), id, args[0])
		})
}

func newUntagCmd(app *App) *cobra.Command {
	return urlCommand(app, "untag <utub> <url> <tag>", "Remove a tag from a URL", 1,
		func(cmd *cobra.Command, s *session, id sync.URLID, args []string) (sync.Outcome, error) {
			tagID, err := parseID("tag", args[0])
			if err != nil {
				return sync.Outcome{}, err
			}
			return s.RemoveURLTag(cmd.Context(), id, sync.TagID(tagID))
		})
}
