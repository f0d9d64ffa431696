package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/cv-ingest/constants"
	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
	"github.com/joseph-ayodele/cv-ingest/internal/retry"
)

// ExecutorConfig bounds model calls.
type ExecutorConfig struct {
	AttemptTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// DefaultExecutorConfig is 3 attempts of 50s each, 500ms apart.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		AttemptTimeout: 50 * time.Second,
		MaxRetries:     2,
		RetryDelay:     500 * time.Millisecond,
	}
}

// Outcome is a successful extraction.
type Outcome struct {
	CV       entity.StructuredCV
	Issues   []Issue
	Adjusted []string
	Attempts int
	Raw      []byte
}

// Executor runs one extraction request under the retry policy and decodes the result.
type Executor struct {
	model  CVExtractor
	cfg    ExecutorConfig
	logger *slog.Logger
}

func NewExecutor(model CVExtractor, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{model: model, cfg: cfg, logger: logger}
}

// Config returns the bounds the executor runs under.
func (e *Executor) Config() ExecutorConfig { return e.cfg }

// Execute calls the model until a response decodes, a fatal error occurs or attempts run out.
// Failures are *common.LLMError with Attempts set, with two exceptions: a response without
// any name is returned as common.ValidationError and is not retried, and when ctx itself
// is done the error wraps ctx.Err() rather than an LLMError.
func (e *Executor) Execute(ctx context.Context, req ExtractRequest, reporter Reporter) (*Outcome, error) {
	if reporter == nil {
		reporter = nopReporter{}
	}
	log := common.LoggerFrom(ctx, e.logger)
	if e.model == nil {
		err := common.NewFatalLLMError(common.ErrMissingCredential)
		log.Error("llm.execute.no_model", "error", err)
		return nil, err
	}

	var raw []byte
	policy := retry.Policy{
		MaxRetries:     e.cfg.MaxRetries,
		Delay:          e.cfg.RetryDelay,
		AttemptTimeout: e.cfg.AttemptTimeout,
		Retryable:      common.IsTransientLLM,
		OnAttempt: func(a retry.Attempt) {
			e.reportAttempt(ctx, log, reporter, a)
		},
	}

	start := time.Now()
	decoded, attempts, err := retry.Do(ctx, policy, func(actx context.Context, n int) (*Decoded, error) {
		content, err := e.model.ExtractCV(actx, req)
		if err != nil {
			return nil, Classify(err)
		}
		raw = content
		d, err := DecodeCV(content, log)
		if err != nil {
			var ve common.ValidationError
			if errors.As(err, &ve) {
				return nil, err
			}
			return nil, Classify(err)
		}
		return d, nil
	})
	if err != nil {
		var ve common.ValidationError
		if errors.As(err, &ve) {
			log.Warn("llm.execute.invalid", "attempts", attempts, "error", err)
			return nil, err
		}
		le := Classify(err)
		if cerr := ctx.Err(); cerr != nil {
			log.Warn("llm.execute.interrupted",
				"attempts", attempts, "error", cerr, "last_error", le.Cause,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return nil, fmt.Errorf("llm extraction interrupted after %d attempts (last error: %v): %w", attempts, le.Cause, cerr)
		}
		out := &common.LLMError{Kind: le.Kind, Attempts: attempts, Cause: le.Cause}
		log.Error("llm.execute.failed",
			"attempts", attempts, "kind", out.Kind, "error", out.Cause,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, out
	}

	log.Info("llm.execute.ok",
		"attempts", attempts,
		"issues", len(decoded.Issues),
		"adjusted", len(decoded.Adjusted),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Outcome{
		CV:       decoded.CV,
		Issues:   decoded.Issues,
		Adjusted: decoded.Adjusted,
		Attempts: attempts,
		Raw:      raw,
	}, nil
}

func (e *Executor) reportAttempt(ctx context.Context, log *slog.Logger, reporter Reporter, a retry.Attempt) {
	if a.Err == nil {
		log.Info("llm.execute.attempt_ok", "attempt", a.Number, "elapsed_ms", a.Elapsed.Milliseconds())
		reporter.Emit(constants.StageParsingBase, "Model response received", map[string]any{
			"attempt":    a.Number,
			"elapsed_ms": a.Elapsed.Milliseconds(),
		})
		return
	}

	var (
		outcome, code string
		cause         = a.Err
		ve            common.ValidationError
	)
	switch {
	case ctx.Err() != nil:
		outcome, code, cause = "canceled", constants.CodeCanceled, ctx.Err()
	case errors.As(a.Err, &ve):
		outcome, code = "invalid", constants.CodeValidation
	default:
		le := Classify(a.Err)
		outcome, code, cause = string(le.Kind), constants.CodeLLMFatal, le.Cause
		if le.Transient() {
			code = constants.CodeLLMTransient
		}
	}
	log.Warn("llm.execute.attempt_failed",
		"attempt", a.Number, "max_attempts", a.Max, "outcome", outcome,
		"retrying", a.WillRetry, "error", cause, "elapsed_ms", a.Elapsed.Milliseconds(),
	)
	reporter.Emit(constants.StageWarning,
		fmt.Sprintf("Model attempt %d of %d failed: %v", a.Number, a.Max, cause),
		map[string]any{
			"attempt":      a.Number,
			"max_attempts": a.Max,
			"retrying":     a.WillRetry,
			"outcome":      outcome,
			"code":         code,
			"elapsed_ms":   a.Elapsed.Milliseconds(),
		})
}

// Classify maps an error from a model call to a transient or fatal LLMError.
// Timeouts, network failures and malformed output are transient; cancellation and
// missing credentials are fatal. Unknown errors are treated as transient.
func Classify(err error) *common.LLMError {
	var le *common.LLMError
	if errors.As(err, &le) {
		return le
	}
	switch {
	case errors.Is(err, common.ErrMissingCredential), errors.Is(err, context.Canceled):
		return common.NewFatalLLMError(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrMalformedResponse):
		return common.NewTransientLLMError(err)
	}
	return common.NewTransientLLMError(err)
}
