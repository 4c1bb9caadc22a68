package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coesco/opsapi/internal/db"
	"github.com/coesco/opsapi/internal/db/migrations"
	"github.com/coesco/opsapi/internal/dbpool"
)

func newMigrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), dbpool.Options{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			if !status {
				return db.RunMigrations(ctx, pool, log, migrations.FS)
			}

			statuses, err := db.Status(ctx, pool, migrations.FS)
			if err != nil {
				return err
			}

			if flagFmt == "table" {
				rows := make([][]string, 0, len(statuses))
				for _, s := range statuses {
					rows = append(rows, []string{strconv.FormatInt(s.Version, 10), s.Path, strconv.FormatBool(s.Applied)})
				}

				formatTable([]string{"VERSION", "FILE", "APPLIED"}, rows)

				return nil
			}

			return formatJSON(statuses)
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, fmt.Sprintf("Report migration status instead of applying (%d shipped)", db.SchemaVersion()))

	return cmd
}
