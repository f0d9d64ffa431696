// Package ingest feeds CV files from the local filesystem into the pipeline,
// either as a one-off directory batch or by watching folders for new files.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/cv-ingest/internal/events"
	"github.com/joseph-ayodele/cv-ingest/internal/pipeline"
)

// Runner processes one document and publishes its stage events.
type Runner interface {
	Run(ctx context.Context, doc pipeline.Document, pub events.Publisher) (*pipeline.Result, error)
}

// FileResult is the per-file ingest outcome.
type FileResult struct {
	Path         string
	HashHex      string
	ResearcherID string
	Name         string
	Warnings     int
	Duplicate    bool
	Code         string // terminal error code, empty on success
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned    uint32
	Matched    uint32
	Succeeded  uint32
	Duplicates uint32
	Failed     uint32
}
