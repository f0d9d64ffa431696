package async

import (
	"context"
	"time"
)

// Job asks for one file on disk to be run through the pipeline.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
