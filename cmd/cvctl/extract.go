package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cv-ingest/internal/events"
	"github.com/joseph-ayodele/cv-ingest/internal/pipeline"
	repo "github.com/joseph-ayodele/cv-ingest/internal/repository"
)

var (
	extractSave   bool
	extractEvents bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Run one CV through the pipeline and print the structured result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var store pipeline.Store
		if extractSave {
			db, researchers, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer repo.Close(db, logger)
			store = researchers
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		pub := events.PublisherFunc(func(e events.Event) {
			if extractEvents {
				_ = enc.Encode(events.Event{Stage: e.Stage, Message: e.Message, Timestamp: e.Timestamp, Details: e.Details})
				return
			}
			if !e.Terminal() {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", e.Stage, e.Message)
			}
		})

		res, err := newProcessor(store).Run(ctx, pipeline.Document{Name: filepath.Base(path), Data: data}, pub)
		if err != nil {
			return err
		}
		for _, issue := range res.Issues {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", issue.Message())
		}
		if res.Researcher != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "saved researcher %s\n", res.Researcher.ID)
		}
		return enc.Encode(res.CV)
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "persist the result to the configured database")
	extractCmd.Flags().BoolVar(&extractEvents, "events", false, "print every stage event as JSON")
}
