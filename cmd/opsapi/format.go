package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/coesco/opsapi/internal/models"
)

var stdout io.Writer = os.Stdout

func formatJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}

	return nil
}

func formatTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}

		fmt.Fprintln(stdout, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)

	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}

	printRow(seps)

	for _, row := range rows {
		printRow(row)
	}
}

// historyRows renders one row per entry with the changed fields sorted.
func historyRows(entries []models.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		fields := make([]string, 0, len(e.Diff))
		for k := range e.Diff {
			fields = append(fields, k)
		}

		sort.Strings(fields)

		rows = append(rows, []string{
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Action,
			e.Actor.ID,
			strings.Join(fields, ","),
		})
	}

	return rows
}
