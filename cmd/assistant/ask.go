package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/datamesa/assistant/pkg/contracts"
	"github.com/datamesa/assistant/pkg/logger"
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
			log := logger.New(verbose)

			role, _ := cmd.Flags().GetString("role")
			confirm, _ := cmd.Flags().GetBool("search-elsewhere")
			debug, _ := cmd.Flags().GetBool("debug")

			a, err := buildApp(cmd.Context(), log)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(); err != nil {
					log.Warn("failed to close executor", "error", err)
				}
			}()

			ui := a.cfg.DefaultUI()
			ui.Debug = ui.Debug || debug
			resp := a.orc.Run(cmd.Context(), contracts.ChatRequest{
				Message: strings.Join(args, " "),
				UI:      ui,
				Meta: &contracts.RequestMeta{
					Role:                   role,
					ConfirmSearchElsewhere: confirm,
				},
			})

			printResponse(resp)
			return nil
		},
	}
	cmd.Flags().String("role", "CEO", "caller role (CEO, CFO, CTO)")
	cmd.Flags().Bool("search-elsewhere", false, "skip the available-data lane and query the warehouse")
	cmd.Flags().Bool("debug", false, "print the step trace")
	return cmd
}

func printResponse(resp contracts.ChatResponse) {
	fmt.Printf("[%s]\n\n%s\n", resp.Status, resp.Answer)

	if resp.Result != nil && len(resp.Result.Columns) > 0 {
		fmt.Println()
		printTable(resp.Result.Columns, resp.Result.Rows)
	}
	for _, block := range resp.ReportBlocks {
		if block.Error != "" {
			fmt.Printf("\n%s: %s\n", block.Name, block.Error)
			continue
		}
		if len(block.Columns) > 0 {
			fmt.Printf("\n%s\n", block.Name)
			printTable(block.Columns, block.Rows)
		}
	}

	if len(resp.ClarifyingQuestions) > 0 {
		fmt.Println()
		for _, q := range resp.ClarifyingQuestions {
			fmt.Printf("  ? %s\n", q)
		}
	}
	if len(resp.Followups) > 0 {
		fmt.Println()
		for _, f := range resp.Followups {
			fmt.Printf("  > %s\n", f)
		}
	}
	for _, t := range resp.Traces {
		fmt.Printf("trace %s: %v\n", t.Step, t.Payload)
	}
}

func printTable(columns []string, rows [][]any) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(columns)
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, v := range r {
			if v == nil {
				cells[i] = ""
			} else {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		table.Append(cells)
	}
	table.Render()
}
