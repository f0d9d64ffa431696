// Package events carries pipeline progress from a run to whoever is watching it.
package events

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/joseph-ayodele/cv-ingest/constants"
)

// Event is one progress notification. Result is only set on the complete event.
type Event struct {
	Stage     constants.Stage `json:"stage"`
	Message   string          `json:"message"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	Details   map[string]any  `json:"details,omitempty"`
	Result    any             `json:"result,omitempty"`
}

// Terminal reports whether e ends its stream.
func (e Event) Terminal() bool { return e.Stage.IsTerminal() }

// Code returns details.code, if any.
func (e Event) Code() string {
	if e.Details == nil {
		return ""
	}
	s, _ := e.Details["code"].(string)
	return s
}

// WriteSSE writes e as a single server-sent event frame.
func WriteSSE(w io.Writer, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

// WriteHeartbeat writes an SSE comment line that keeps intermediaries from closing the connection.
func WriteHeartbeat(w io.Writer) error {
	_, err := io.WriteString(w, ": heartbeat\n\n")
	return err
}
