package main

import (
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/datamesa/assistant/pkg/logger"
)

func newDatasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List the available in-memory datasets and their columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
			log := logger.New(verbose)

			a, err := buildApp(cmd.Context(), log)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(); err != nil {
					log.Warn("failed to close executor", "error", err)
				}
			}()

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Dataset", "Columns"})
			for _, name := range a.store.ListDatasets() {
				cols, err := a.store.Schema(name)
				if err != nil {
					log.Warn("failed to load dataset schema", "dataset", name, "error", err)
					continue
				}
				table.Append([]string{name, strings.Join(cols, ", ")})
			}
			table.Render()
			return nil
		},
	}
}
