package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cv-ingest/internal/export"
	repo "github.com/joseph-ayodele/cv-ingest/internal/repository"
)

var (
	exportOut   string
	exportQuery string
	exportSort  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored researchers to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, researchers, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer repo.Close(db, logger)

		out, err := export.NewService(researchers, logger).ExportResearchersXLSX(ctx, repo.ListFilter{
			Query: exportQuery,
			Sort:  exportSort,
		})
		if err != nil {
			return err
		}

		path := exportOut
		if path == "" {
			path = fmt.Sprintf("researchers-%s.xlsx", time.Now().UTC().Format("20060102"))
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(out))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default researchers-YYYYMMDD.xlsx)")
	exportCmd.Flags().StringVarP(&exportQuery, "query", "q", "", "only researchers matching this text")
	exportCmd.Flags().StringVar(&exportSort, "sort", "name", "newest, oldest or name")
}
