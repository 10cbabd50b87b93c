package fields

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
	"github.com/BilalWohlig/labelwipe/internal/ocr"
)

// ChatClient is the slice of the OpenAI client the detector needs.
// *openai.Client satisfies it.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config tunes the detector.
type Config struct {
	Model           string
	MaxRetries      int
	RetryBaseDelay  time.Duration
	ProximityRadius float64 // pixel radius for the local fallback matcher
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		Model:           openai.GPT4o,
		MaxRetries:      3,
		RetryBaseDelay:  500 * time.Millisecond,
		ProximityRadius: 100,
	}
}

// Detector finds regulated label fields on a packaging photo.
type Detector struct {
	chat ChatClient
	ocr  ocr.Client
	gate *MinIntervalGate
	cfg  Config
}

// NewDetector creates a detector. The gate is shared process-wide with any
// other component issuing analysis calls; ocrClient serves the local
// fallback tier only.
func NewDetector(chat ChatClient, ocrClient ocr.Client, gate *MinIntervalGate, cfg Config) *Detector {
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultConfig().RetryBaseDelay
	}
	if cfg.ProximityRadius <= 0 {
		cfg.ProximityRadius = DefaultConfig().ProximityRadius
	}
	return &Detector{chat: chat, ocr: ocrClient, gate: gate, cfg: cfg}
}

// Detect analyzes the image and returns the detected fields with the unified
// masking strategy. When the model path fails for good, the local OCR
// fallback runs; its token set is carried on the Detection so the caller can
// reuse it instead of repeating the OCR call.
func (d *Detector) Detect(ctx context.Context, imageData []byte) (*Detection, []ocr.Token, error) {
	const op = "fields.Detect"

	det, err := d.detectWithModel(ctx, imageData)
	if err == nil && det.Found {
		return det, nil, nil
	}
	if err == nil {
		// Well-formed reply reporting no fields. The fallback still gets
		// a chance: the model occasionally misses Hindi-only labels.
		slog.Debug("model analysis found no fields, trying local fallback")
	} else {
		slog.Warn("model analysis failed, falling back to local matching", "error", err)
	}

	fallback, tokens, fbErr := d.detectLocal(ctx, imageData)
	if fbErr != nil {
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.Unavailable, op, "analysis and fallback both failed", errors.Join(err, fbErr))
		}
		return nil, nil, fbErr
	}
	if !fallback.Found {
		return nil, tokens, apperr.New(apperr.NoFieldsFound, op, "no standard fields found")
	}
	return fallback, tokens, nil
}

// detectWithModel runs the rate-gated, retried analysis call and parses the
// reply. A nil error with Found=false means the model genuinely reported no
// fields; parse failures fall through to the free-text tier before erroring.
func (d *Detector) detectWithModel(ctx context.Context, imageData []byte) (*Detection, error) {
	const op = "fields.detectWithModel"

	raw, err := d.callAnalysis(ctx, imageData)
	if err != nil {
		return nil, err
	}

	det, parseErr := parseAnalysisResponse(raw)
	if parseErr == nil {
		return det, nil
	}

	det = extractFromFreeText(raw)
	if det.Found {
		slog.Debug("recovered fields from free-text reply", "fields", len(det.Fields))
		return det, nil
	}
	return nil, apperr.Wrap(apperr.Unavailable, op, "unparsable analysis reply", parseErr)
}

// callAnalysis submits the image with the structured prompt, honoring the
// process-wide interval gate and retrying transient failures with
// exponential backoff plus jitter.
func (d *Detector) callAnalysis(ctx context.Context, imageData []byte) (string, error) {
	const op = "fields.callAnalysis"

	req := openai.ChatCompletionRequest{
		Model:       d.cfg.Model,
		Temperature: 0.1,
		MaxTokens:   2000,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: buildAnalysisPrompt()},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL(imageData),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}

	var lastErr error
	for attempt := 0; attempt < d.cfg.MaxRetries; attempt++ {
		if err := d.gate.Wait(ctx); err != nil {
			return "", apperr.Wrap(apperr.Internal, op, "rate gate interrupted", err)
		}

		resp, err := d.chat.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", apperr.New(apperr.Unavailable, op, "no choices in analysis response")
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if !IsRetryable(err) {
			break
		}
		delay := BackoffDelay(d.cfg.RetryBaseDelay, attempt)
		slog.Debug("retrying analysis call", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return "", apperr.Wrap(apperr.Internal, op, "canceled during retry wait", ctx.Err())
		case <-time.After(delay):
		}
	}
	return "", apperr.Wrap(apperr.Unavailable, op, "analysis call failed", lastErr)
}

// detectLocal is the last fallback tier: OCR the image and match tokens
// against the enumerated label variants directly.
func (d *Detector) detectLocal(ctx context.Context, imageData []byte) (*Detection, []ocr.Token, error) {
	const op = "fields.detectLocal"

	if d.ocr == nil {
		return nil, nil, apperr.New(apperr.Internal, op, "no OCR client configured for fallback")
	}
	res, err := d.ocr.DetectText(ctx, imageData)
	if err != nil {
		return nil, nil, err
	}
	det := matchTokens(res.Tokens, d.cfg.ProximityRadius)
	det.FallbackUsed = true
	return det, res.Tokens, nil
}

func dataURL(imageData []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData)
}

// IsRetryable reports whether a chat completion call hit a rate limit or a
// transient overload. Shared with the reconciler, which retries under the
// same policy.
func IsRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			529: // overloaded
			return true
		}
		return false
	}
	// Transport-level failures (timeouts, resets) are worth one more try.
	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}

// BackoffDelay computes base * 2^attempt plus up to one base of jitter.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt)
	return d + time.Duration(rand.Int63n(int64(base))) //nolint:gosec // jitter, not crypto
}
