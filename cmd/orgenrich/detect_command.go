package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/orgenrich/internal/application"
	"github.com/JonMunkholm/orgenrich/internal/core"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "detect <file>",
		Short: "Show which column holds organization names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			app, err := application.New(cmd.Context(), ctx.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			preview, err := app.Service.Preview(cmd.Context(), core.Request{
				FileName: filepath.Base(args[0]),
				Data:     data,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
			}

			if jsonOut {
				return writeJSON(cmd, preview)
			}

			inf := preview.NameColumn
			keyword := inf.Keyword
			if inf.Fallback {
				keyword = "(none, first column used)"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPairs([][2]string{
				{"Name column", inf.Column},
				{"Keyword", keyword},
				{"Score", strconv.Itoa(inf.Score)},
				{"Rows", strconv.Itoa(preview.TotalRows)},
			}))
			fmt.Fprintln(out, renderTable(preview.Columns, preview.Rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}
