package pipeline

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/cv-ingest/constants"
	"github.com/joseph-ayodele/cv-ingest/internal/llm"
)

const publicationsCollection = "publications"

func (p *Processor) parseBase(ctx context.Context, r *run) error {
	model := p.cfg.Model
	req := llm.BuildExtractRequest(r.input, model)
	cfg := p.executor.Config()
	r.em.Emit(constants.StageParsingBase, "Requesting structured extraction from model", map[string]any{
		"model":           model,
		"max_attempts":    cfg.MaxRetries + 1,
		"attempt_timeout": cfg.AttemptTimeout.String(),
	})

	out, err := p.executor.Execute(ctx, req, r.em)
	if err != nil {
		return err
	}
	r.outcome = out
	cv := out.CV
	r.cv = &cv

	for _, is := range out.Issues {
		if is.Collection != publicationsCollection {
			p.reportIssue(r, is)
		}
	}
	if len(out.Adjusted) > 0 {
		r.log.Info("pipeline.parse.adjusted", "keys", out.Adjusted)
	}
	return nil
}

func (p *Processor) parsePubs(_ context.Context, r *run) error {
	dropped := 0
	for _, is := range r.outcome.Issues {
		if is.Collection == publicationsCollection {
			dropped++
			p.reportIssue(r, is)
		}
	}
	r.em.Emit(constants.StageParsingPubs, fmt.Sprintf("Parsed %d publications", len(r.cv.Publications)), map[string]any{
		"publications": len(r.cv.Publications),
		"dropped":      dropped,
	})
	return nil
}

func (p *Processor) reportIssue(r *run, is llm.Issue) {
	r.log.Warn("pipeline.parse.record_dropped", "collection", is.Collection, "index", is.Index, "reason", is.Message())
	r.em.Emit(constants.StageWarning, is.Message(), map[string]any{
		"code":       constants.CodeParseError,
		"collection": is.Collection,
		"index":      is.Index,
	})
}
