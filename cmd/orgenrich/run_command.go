package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/orgenrich/internal/application"
	"github.com/JonMunkholm/orgenrich/internal/core"
	"github.com/JonMunkholm/orgenrich/internal/table"
)

// terminalPreviewRows is how many output rows run prints to a terminal when
// no output file is given.
const terminalPreviewRows = 20

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		input    string
		output   string
		format   string
		jsonOut  bool
		keepNull bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich a file of organization names",
		Long: `Run matches each organization name against the reference data, looks up
every EIN found and writes the deduplicated result.

Without --output the result is written to stdout as CSV when stdout is not a
terminal, and summarized otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.cfg
			if keepNull {
				cfg.Run.KeepUnmatched = true
			}

			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			outFormat, err := outputFormat(format, output)
			if err != nil {
				return err
			}

			app, err := application.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			run, err := app.Service.Enrich(cmd.Context(), core.Request{
				FileName: filepath.Base(input),
				Data:     data,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
			}

			out := cmd.OutOrStdout()
			switch {
			case output != "":
				var buf bytes.Buffer
				if err := table.Write(&buf, run.Table, outFormat); err != nil {
					return err
				}
				if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			case !isTerminal(out):
				return table.Write(out, run.Table, outFormat)
			}

			if jsonOut {
				return writeJSON(cmd, run)
			}

			fmt.Fprintln(out, renderPairs(runSummary(run, output)))
			for _, w := range run.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w.Message)
			}
			if output == "" {
				head := run.Table.Head(terminalPreviewRows).Records()
				fmt.Fprintln(out, renderTable(head[0], head[1:], nil))
				if run.Table.Len() > terminalPreviewRows {
					fmt.Fprintf(out, "showing %d of %d rows; use --output to save all of them\n", terminalPreviewRows, run.Table.Len())
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input CSV or XLSX file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: csv or xlsx (default: from --output extension, else csv)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run summary as JSON")
	cmd.Flags().BoolVar(&keepNull, "keep-unmatched", false, "Keep every row without an EIN during deduplication")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// outputFormat resolves --format, falling back to the output file extension.
func outputFormat(flag, output string) (table.Format, error) {
	if flag != "" {
		return table.ParseFormat(flag)
	}
	if output != "" {
		return table.FormatOf(output)
	}
	return table.FormatCSV, nil
}

func runSummary(run *core.Run, output string) [][2]string {
	st := run.Stats
	nc := run.NameColumn.Column
	if run.NameColumn.Fallback {
		nc += " (fallback)"
	}
	pairs := [][2]string{
		{"File", run.FileName},
		{"Name column", nc},
		{"Rows in", strconv.Itoa(st.InputRows)},
		{"Matched locally", strconv.Itoa(st.MatchedRows)},
		{"Lookups found", fmt.Sprintf("%d / %d", st.LookupsFound, st.LookupsRequested)},
		{"Duplicates removed", fmt.Sprintf("%d by EIN, %d by name", st.Dedupe.DroppedByEIN, st.Dedupe.DroppedByName)},
		{"Rows out", strconv.Itoa(st.OutputRows)},
		{"Duration", run.Duration().Round(time.Millisecond).String()},
	}
	if output != "" {
		pairs = append(pairs, [2]string{"Output", output})
	}
	if len(run.Warnings) > 0 {
		codes := make([]string, len(run.Warnings))
		for i, w := range run.Warnings {
			codes[i] = w.Code
		}
		pairs = append(pairs, [2]string{"Warnings", strings.Join(codes, ", ")})
	}
	return pairs
}
