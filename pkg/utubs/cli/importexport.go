package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/spf13/cobra"
)

// readBookmarks accepts a Pinboard export (a bare array) or an import
// request body.
func readBookmarks(path string) ([]api.Bookmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []api.Bookmark
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return list, nil
	}
	var req api.ImportRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return req.Bookmarks, nil
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <utub> <file>",
		Short: "Import Pinboard JSON bookmarks into a UTub",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			utubID, err := parseID("utub", args[0])
			if err != nil {
				return err
			}
			bookmarks, err := readBookmarks(args[1])
			if err != nil {
				return err
			}
			result, err := app.client(cmd).ImportBookmarks(cmd.Context(), utubID, bookmarks)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d, skipped %d\n", result.Imported, result.Skipped)
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  %s\n", e)
			}
			return nil
		},
	}
}

func newExportCmd(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <utub>",
		Short: "Export a UTub as Pinboard JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			utubID, err := parseID("utub", args[0])
			if err != nil {
				return err
			}
			bookmarks, err := app.client(cmd).ExportBookmarks(cmd.Context(), utubID)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(bookmarks, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(output, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
