package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/orgenrich/internal/application"
)

func newReferenceCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Load the reference data and report what was found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := application.New(cmd.Context(), ctx.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			loadErr := app.Preload(cmd.Context())
			st := app.Store.Status()

			if jsonOut {
				if err := writeJSON(cmd, st); err != nil {
					return err
				}
				return loadErr
			}

			pairs := [][2]string{{"Source", st.Source}}
			if st.Info != nil {
				pairs = append(pairs,
					[2]string{"Records", strconv.Itoa(st.Info.Records)},
					[2]string{"Files", strings.Join(st.Info.Files, ", ")},
					[2]string{"Loaded at", st.Info.LoadedAt.Format(time.RFC3339)},
				)
			}
			if st.LastError != "" {
				pairs = append(pairs, [2]string{"Error", st.LastError})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPairs(pairs))
			return loadErr
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}
