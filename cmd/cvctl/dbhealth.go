package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	repo "github.com/joseph-ayodele/cv-ingest/internal/repository"
)

var dbhealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Check database connectivity and report the number of stored researchers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, researchers, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer repo.Close(db, logger)

		if err := repo.HealthCheck(ctx, db, time.Second, logger); err != nil {
			return fmt.Errorf("DB health: FAIL (%w)", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (%s)\n", db.Dialect())

		rows, err := researchers.List(ctx, repo.ListFilter{Sort: "newest", Limit: 5})
		if err != nil {
			return fmt.Errorf("listing researchers: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "latest researchers: %d\n", len(rows))
		for _, r := range rows {
			fmt.Fprintf(cmd.OutOrStdout(), "- [%s] %s %s (%d publications)\n", r.ID, r.FirstName, r.LastName, r.PublicationCount)
		}
		return nil
	},
}
