package cli

import (
	"github.com/mikepea/utubs/pkg/utubs/sync"
	"github.com/spf13/cobra"
)

func newShowCmd(app *App) *cobra.Command {
	var tags []uint
	cmd := &cobra.Command{
		Use:   "show <utub>",
		Short: "Show a UTub, optionally filtered by tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			utubID, err := parseID("utub", args[0])
			if err != nil {
				return err
			}
			s, err := app.open(cmd, sync.UTubID(utubID))
			if err != nil {
				return err
			}
			res := s.View()
			for _, id := range tags {
				if res, err = s.ToggleTag(sync.TagID(id)); err != nil {
					return err
				}
			}
			s.term.RenderView(res)
			return nil
		},
	}
	cmd.Flags().UintSliceVar(&tags, "tag", nil, "tag id to filter by (repeatable, all must match)")
	return cmd
}

func newTagsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Manage UTub tags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <utub> <label>",
		Short: "Create a tag without applying it",
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
			out, err := s.CreateUTubTag(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return outcomeErr(out)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <utub> <tag>",
		Short: "Delete a tag and remove it from every URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			utubID, err := parseID("utub", args[0])
			if err != nil {
				return err
			}
			tagID, err := parseID("tag", args[1])
			if err != nil {
				return err
			}
			s, err := app.open(cmd, sync.UTubID(utubID))
			if err != nil {
				return err
			}
			out, err := s.DeleteUTubTag(cmd.Context(), sync.TagID(tagID))
			if err != nil {
				return err
			}
			return outcomeErr(out)
		},
	})

	return cmd
}
