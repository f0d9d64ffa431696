package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	oai "github.com/openai/openai-go/v3"

	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/llm"
)

var _ llm.CVExtractor = (*Client)(nil)

// ExtractCV implements llm.CVExtractor with a strict json_schema chat completion.
// Errors are classified: auth and request errors are fatal, rate limits, server
// errors and truncated output are transient.
func (c *Client) ExtractCV(ctx context.Context, req llm.ExtractRequest) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := common.LoggerFrom(ctx, c.log).With("req_id", rid)

	if !c.hasKey {
		log.Error("llm.extract.no_credential")
		return nil, common.NewFatalLLMError(common.ErrMissingCredential)
	}
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	log.Info("llm.extract.start",
		"model", model,
		"temp", c.cfg.Temperature,
		"text_len", req.TextChars,
		"schema", req.SchemaName,
	)

	params := oai.ChatCompletionNewParams{
		Model: oai.ChatModel(model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(req.System),
			oai.UserMessage(req.User),
		},
		Temperature: oai.Float(float64(c.cfg.Temperature)),
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &oai.ResponseFormatJSONSchemaParam{
				JSONSchema: oai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: oai.Bool(true),
				},
			},
		},
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		cerr := classifyAPIError(err)
		log.Error("llm.extract.http_error",
			"error", err, "kind", cerr.Kind,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, cerr
	}
	if len(resp.Choices) == 0 {
		log.Error("llm.extract.no_choices", "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.NewTransientLLMError(fmt.Errorf("%w: no choices in response", llm.ErrMalformedResponse))
	}

	choice := resp.Choices[0]
	if r := strings.TrimSpace(choice.Message.Refusal); r != "" {
		log.Error("llm.extract.refused", "refusal", r, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.NewFatalLLMError(fmt.Errorf("model refused: %s", r))
	}
	if choice.FinishReason == "length" {
		log.Warn("llm.extract.truncated", "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.NewTransientLLMError(fmt.Errorf("%w: output truncated", llm.ErrMalformedResponse))
	}

	content := strings.TrimSpace(choice.Message.Content)
	log.Info("llm.extract.ok",
		"bytes", len(content),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return []byte(content), nil
}

func classifyAPIError(err error) *common.LLMError {
	var apiErr *oai.Error
	if !errors.As(err, &apiErr) {
		return llm.Classify(err)
	}
	switch {
	case apiErr.StatusCode == http.StatusRequestTimeout,
		apiErr.StatusCode == http.StatusConflict,
		apiErr.StatusCode == http.StatusTooManyRequests,
		apiErr.StatusCode >= 500:
		return common.NewTransientLLMError(err)
	case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
		return common.NewFatalLLMError(errors.Join(common.ErrUnauthorized, err))
	default:
		return common.NewFatalLLMError(err)
	}
}
