package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cv-ingest/internal/ingest"
	repo "github.com/joseph-ayodele/cv-ingest/internal/repository"
)

var (
	ingestWorkers    int
	ingestShowHidden bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Extract and store every PDF under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, researchers, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer repo.Close(db, logger)

		workers := ingestWorkers
		if workers <= 0 {
			workers = cfg.Ingest.BatchWorkers
		}
		ing := ingest.NewIngestor(newProcessor(researchers), workers, logger)
		results, stats, err := ing.IngestDirectory(ctx, args[0], !ingestShowHidden)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STATUS\tFILE\tRESEARCHER\tSHA256\tDETAIL")
		for _, r := range results {
			status, detail := "ok", r.Name
			switch {
			case r.Duplicate:
				status, detail = "duplicate", r.Err
			case r.Err != "":
				status, detail = "failed", r.Err
			case r.Warnings > 0:
				detail = fmt.Sprintf("%s (%d warnings)", r.Name, r.Warnings)
			}
			hash := r.HashHex
			if len(hash) > 12 {
				hash = hash[:12]
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", status, r.Path, r.ResearcherID, hash, detail)
		}
		_ = tw.Flush()
		fmt.Fprintf(cmd.OutOrStdout(), "\nscanned=%d matched=%d succeeded=%d duplicates=%d failed=%d\n",
			stats.Scanned, stats.Matched, stats.Succeeded, stats.Duplicates, stats.Failed)
		return err
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "concurrent extractions (env BATCH_WORKERS)")
	ingestCmd.Flags().BoolVar(&ingestShowHidden, "hidden", false, "include hidden files and directories")
}
