package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coesco/opsapi/internal/entities"
	"github.com/coesco/opsapi/internal/models"
	"github.com/coesco/opsapi/internal/store"
)

func newQuoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote <id>",
		Short: "Print a quote with its line items",
		Args:  cobra.ExactArgs(1),
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

			quotes := store.NewTyped[models.Quote](rt.gateway.Repository(entities.Quote))

			q, err := quotes.GetByID(ctx, args[0], models.QueryParams{Include: []string{"items"}}, nil)
			if err != nil {
				return err
			}

			if flagFmt == "table" {
				formatTable([]string{"LINE", "DESCRIPTION", "QTY", "UNIT", "TOTAL"}, quoteRows(q))
				return nil
			}

			return formatJSON(q)
		},
	}
}

func quoteRows(q *models.Quote) [][]string {
	rows := make([][]string, 0, len(q.Items)+1)

	var total float64

	for _, it := range q.Items {
		line := it.Quantity * it.UnitPrice
		total += line

		rows = append(rows, []string{
			strconv.Itoa(it.LineNumber),
			it.Description,
			strconv.FormatFloat(it.Quantity, 'f', -1, 64),
			strconv.FormatFloat(it.UnitPrice, 'f', 2, 64),
			strconv.FormatFloat(line, 'f', 2, 64),
		})
	}

	return append(rows, []string{"", q.QuoteNumber, "", "", strconv.FormatFloat(total, 'f', 2, 64)})
}
