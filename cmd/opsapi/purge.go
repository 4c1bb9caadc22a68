package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newPurgeDeletedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-deleted",
		Short: "Permanently remove soft-deleted records past retention and expired audit entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			purged, err := rt.deleted.PurgeExpired(ctx)
			if err != nil {
				return err
			}

			result := map[string]int{"records": purged}

			if cfg.AuditRetentionDays > 0 {
				n, err := rt.audit.PurgeOldEntries(ctx, cfg.AuditRetentionDays)
				if err != nil {
					return err
				}

				result["audit_entries"] = n
			}

			log.WithFields(logrus.Fields{
				"records":        purged,
				"retention_days": cfg.DeletedRetentionDays,
			}).Info("purge complete")

			return formatJSON(result)
		},
	}
}
