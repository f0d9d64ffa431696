package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/cv-ingest/constants"
	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/llm"
	"github.com/joseph-ayodele/cv-ingest/internal/normalize"
	"github.com/joseph-ayodele/cv-ingest/internal/pdftext"
	"github.com/joseph-ayodele/cv-ingest/internal/redact"
)

var errNoText = errors.New("no extractable text; the document may contain only scanned images")

func (p *Processor) upload(_ context.Context, r *run) error {
	r.em.Emit(constants.StageUploading, fmt.Sprintf("Received %s", r.doc.Name), map[string]any{
		"file":  r.doc.Name,
		"bytes": len(r.doc.Data),
	})
	if len(r.doc.Data) == 0 {
		return common.NewExtractionError(0, errors.New("empty document"))
	}
	if p.cfg.MaxPages <= 0 {
		return nil
	}

	n, err := pdftext.Preflight(r.doc.Data, p.cfg.MaxPages)
	var ee *common.ExtractionError
	switch {
	case err == nil:
		r.log.Debug("pipeline.preflight.ok", "pages", n)
	case errors.As(err, &ee):
		r.log.Warn("pipeline.preflight.failed", "error", err)
		r.em.Emit(constants.StageWarning, "Could not validate PDF structure; attempting text extraction anyway",
			map[string]any{"code": constants.CodeExtraction})
	default:
		return err
	}
	return nil
}

func (p *Processor) extract(ctx context.Context, r *run) error {
	r.em.Emit(constants.StageExtracting, "Extracting text from PDF", nil)
	res, err := p.extractor.Extract(ctx, r.doc.Data)
	if err != nil {
		return err
	}
	if !hasContent(res.Text) {
		return common.NewExtractionError(0, errNoText)
	}
	r.text = res.Text
	r.em.Emit(constants.StageExtracting, fmt.Sprintf("Extracted %d lines from %d pages", res.Lines, res.Pages), map[string]any{
		"pages": res.Pages,
		"lines": res.Lines,
		"chars": utf8.RuneCountInString(res.Text),
	})
	return nil
}

// hasContent reports whether text holds anything besides page markers.
func hasContent(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !(strings.HasPrefix(line, "[PAGE ") && strings.HasSuffix(line, " END]")) {
			return true
		}
	}
	return false
}

func (p *Processor) identify(_ context.Context, r *run) error {
	r.email = normalize.Email(redact.FirstEmail(r.text))
	redacted, stats := redact.RedactWithStats(r.text)
	r.redacted = redacted
	r.text = "" // the unredacted text is not kept past this stage

	r.em.Emit(constants.StageIdentifying, "Removed sensitive data before model call", map[string]any{
		"ids":         stats.IDs,
		"addresses":   stats.Addresses,
		"emails":      stats.Emails,
		"email_found": r.email != "",
	})
	return nil
}

func (p *Processor) chunk(_ context.Context, r *run) error {
	input, cut := llm.BoundInput(r.redacted, p.cfg.MaxInputChars)
	r.input = input
	chars, kept := utf8.RuneCountInString(r.redacted), utf8.RuneCountInString(input)
	if cut {
		r.em.Emit(constants.StageWarning,
			fmt.Sprintf("CV text truncated from %d to %d characters", chars, kept),
			map[string]any{"code": "truncated", "chars": chars, "kept": kept})
	}
	r.em.Emit(constants.StageChunking, "Prepared model input", map[string]any{
		"chars":     kept,
		"truncated": cut,
	})
	return nil
}
