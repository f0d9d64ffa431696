// Package pipeline runs one CV document through extraction, redaction, the model call,
// normalization and optional persistence, publishing stage events as it goes.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cv-ingest/constants"
	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
	"github.com/joseph-ayodele/cv-ingest/internal/events"
	"github.com/joseph-ayodele/cv-ingest/internal/llm"
	"github.com/joseph-ayodele/cv-ingest/internal/metrics"
	"github.com/joseph-ayodele/cv-ingest/internal/pdftext"
)

// Store is the persistence collaborator. Create must report an existing email as *common.DuplicateError.
type Store interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, cv *entity.StructuredCV, src entity.Source) (*entity.Researcher, error)
}

// Config holds per-run limits.
type Config struct {
	Model         string
	MaxInputChars int // 0 = unbounded
	MaxPages      int // 0 = unlimited
}

// Document is one uploaded PDF.
type Document struct {
	Name string
	Data []byte
}

// Result is what a successful run produced.
type Result struct {
	RunID      string
	CV         *entity.StructuredCV
	Researcher *entity.Researcher // nil when no store is configured
	Issues     []llm.Issue
	Attempts   int
}

// Processor coordinates text extraction then model parsing for a document.
// It holds no per-run state and is safe for concurrent use.
type Processor struct {
	cfg       Config
	extractor *pdftext.Extractor
	executor  *llm.Executor
	store     Store
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewProcessor wires a processor. store and m may be nil.
func NewProcessor(cfg Config, executor *llm.Executor, store Store, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:       cfg,
		extractor: pdftext.NewExtractor(logger),
		executor:  executor,
		store:     store,
		metrics:   m,
		logger:    logger,
	}
}

// run carries the state of one document through the stages.
type run struct {
	id    string
	doc   Document
	em    *events.Emitter
	log   *slog.Logger
	start time.Time

	text     string
	email    string
	redacted string
	input    string
	outcome  *llm.Outcome
	cv       *entity.StructuredCV
	saved    *entity.Researcher
}

// Run processes doc and publishes stage events to pub. The stream always ends with exactly
// one complete or error event, including when ctx is cancelled or a stage panics.
// The returned error is the same failure the error event describes.
func (p *Processor) Run(ctx context.Context, doc Document, pub events.Publisher) (res *Result, err error) {
	r := &run{id: uuid.New().String(), doc: doc, start: time.Now()}
	ctx = common.WithRunID(ctx, r.id)
	r.log = common.LoggerFrom(ctx, p.logger).With("file", doc.Name)
	r.em = events.NewEmitter(events.Multi{pub, events.PublisherFunc(p.metrics.Observe)}, r.log)

	done := p.metrics.RunStarted()
	defer done()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("pipeline.run.panic", "panic", rec, "stack", string(debug.Stack()))
			err = common.NewAppError("PANIC", fmt.Sprintf("pipeline panic: %v", rec), common.ErrInternal)
			res = nil
		}
		if err != nil {
			r.em.Fail(err, nil)
			r.log.Error("pipeline.run.failed", "error", err, "elapsed_ms", time.Since(r.start).Milliseconds())
		}
	}()

	r.log.Info("pipeline.run.start", "bytes", len(doc.Data))

	steps := []struct {
		stage constants.Stage
		fn    func(context.Context, *run) error
	}{
		{constants.StageUploading, p.upload},
		{constants.StageExtracting, p.extract},
		{constants.StageIdentifying, p.identify},
		{constants.StageChunking, p.chunk},
		{constants.StageParsingBase, p.parseBase},
		{constants.StageParsingPubs, p.parsePubs},
		{constants.StageFinalizing, p.finalize},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := time.Now()
		err := s.fn(ctx, r)
		p.metrics.ObserveStage(s.stage, time.Since(t))
		if err != nil {
			return nil, err
		}
	}

	res = &Result{RunID: r.id, CV: r.cv, Researcher: r.saved, Issues: r.outcome.Issues, Attempts: r.outcome.Attempts}
	details := map[string]any{
		"run_id":     r.id,
		"attempts":   r.outcome.Attempts,
		"dropped":    len(r.outcome.Issues),
		"elapsed_ms": time.Since(r.start).Milliseconds(),
	}
	if r.saved != nil {
		details["researcher_id"] = r.saved.ID.String()
	}
	r.em.Complete(r.cv, fmt.Sprintf("Extracted CV for %s", displayName(r.cv)), details)
	r.log.Info("pipeline.run.ok",
		"attempts", r.outcome.Attempts,
		"publications", len(r.cv.Publications),
		"dropped", len(r.outcome.Issues),
		"elapsed_ms", time.Since(r.start).Milliseconds(),
	)
	return res, nil
}

func displayName(cv *entity.StructuredCV) string {
	name := entity.Deref(cv.Personal.FirstName)
	if last := entity.Deref(cv.Personal.LastName); last != "" {
		if name != "" {
			name += " "
		}
		name += last
	}
	if name == "" {
		return "unnamed researcher"
	}
	return name
}
