package main

import (
	"github.com/spf13/cobra"

	"github.com/coesco/opsapi/internal/models"
	"github.com/coesco/opsapi/internal/service"
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <model> <id>",
		Short: "Print the audit history of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			rt, err := openRuntime(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := service.NewEntityService(service.FromStore(rt.gateway), log).GetHistory(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			if flagFmt == "table" {
				formatTable([]string{"TIMESTAMP", "ACTION", "ACTOR", "FIELDS"}, historyRows(entries))
				return nil
			}

			if entries == nil {
				entries = []models.HistoryEntry{}
			}

			return formatJSON(entries)
		},
	}
}
