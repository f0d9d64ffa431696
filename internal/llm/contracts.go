package llm

import (
	"context"

	"github.com/joseph-ayodele/cv-ingest/constants"
)

// ExtractRequest is one immutable model call: instruction, redacted CV text and output contract.
type ExtractRequest struct {
	Model      string
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
	TextChars  int
}

// CVExtractor issues a single structured extraction call and returns the raw JSON content.
type CVExtractor interface {
	ExtractCV(ctx context.Context, req ExtractRequest) ([]byte, error)
}

// Reporter receives progress events. The pipeline's event emitter satisfies it.
type Reporter interface {
	Emit(stage constants.Stage, message string, details map[string]any)
}

type nopReporter struct{}

func (nopReporter) Emit(constants.Stage, string, map[string]any) {}
