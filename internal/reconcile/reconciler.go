package reconcile

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
	"github.com/BilalWohlig/labelwipe/internal/fields"
	"github.com/BilalWohlig/labelwipe/internal/ocr"
)

// ChatClient is the slice of the OpenAI client the reconciler needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config tunes the reconciler.
type Config struct {
	Model          string
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// DefaultConfig returns the reconciler defaults.
func DefaultConfig() Config {
	return Config{Model: openai.GPT4o, MaxRetries: 2, RetryBaseDelay: 500 * time.Millisecond}
}

// Reconciler matches detected fields to concrete OCR token IDs.
type Reconciler struct {
	chat ChatClient
	gate *fields.MinIntervalGate
	cfg  Config
}

// NewReconciler creates a reconciler sharing the process-wide analysis gate.
func NewReconciler(chat ChatClient, gate *fields.MinIntervalGate, cfg Config) *Reconciler {
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultConfig().RetryBaseDelay
	}
	return &Reconciler{chat: chat, gate: gate, cfg: cfg}
}

// Reconcile determines, for each detected field, the minimal-yet-complete
// set of OCR token IDs that reconstruct the text the unified strategy
// requires. The model path is tried first; on failure or an empty answer the
// deterministic word-overlap fallback runs.
func (r *Reconciler) Reconcile(ctx context.Context, imageData []byte, ocrRes *ocr.Result, det *fields.Detection) (*Result, error) {
	const op = "reconcile.Reconcile"

	if ocrRes == nil || len(ocrRes.Tokens) == 0 {
		return nil, apperr.New(apperr.ReconciliationFailed, op, "no OCR tokens to reconcile against")
	}
	targets := maskTargets(det)
	if len(targets) == 0 {
		return nil, apperr.New(apperr.ReconciliationFailed, op, "no maskable text for any detected field")
	}

	selected, err := r.reconcileWithModel(ctx, imageData, ocrRes, det, targets)
	if err != nil || len(selected) == 0 {
		if err != nil {
			slog.Warn("model reconciliation failed, using naive matching", "error", err)
		} else {
			slog.Debug("model reconciliation selected nothing, using naive matching")
		}
		selected = fallbackSelect(ocrRes, det, targets)
		if len(selected) == 0 {
			return nil, apperr.New(apperr.ReconciliationFailed, op, "no OCR tokens matched any detected field")
		}
		return newResult(selected, true), nil
	}
	return newResult(selected, false), nil
}

func newResult(selected []SelectedField, fallback bool) *Result {
	total := 0
	for _, s := range selected {
		total += len(s.SelectedTexts)
	}
	return &Result{
		Success:            true,
		SelectedFields:     selected,
		TotalSelectedTexts: total,
		FallbackUsed:       fallback,
	}
}

// maskTargets resolves each field's required mask text under the unified
// strategy, skipping fields that contribute nothing (the tax marker under
// the values-only strategy).
func maskTargets(det *fields.Detection) map[int]string {
	targets := make(map[int]string)
	for i, f := range det.Fields {
		text := f.TextToMask
		if text == "" {
			text = fields.MaskText(f, det.UnifiedStrategy)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		targets[i] = text
	}
	return targets
}

// selectionReply is the wire shape expected from the model.
type selectionReply struct {
	Selections []struct {
		FieldIndex int    `json:"fieldIndex"`
		OCRIDs     []int  `json:"ocrIds"`
		Reasoning  string `json:"reasoning"`
	} `json:"selections"`
}

func (r *Reconciler) reconcileWithModel(ctx context.Context, imageData []byte, ocrRes *ocr.Result, det *fields.Detection, targets map[int]string) ([]SelectedField, error) {
	const op = "reconcile.reconcileWithModel"

	raw, err := r.callSelection(ctx, imageData, ocrRes, det, targets)
	if err != nil {
		return nil, err
	}

	cleaned := stripCodeFences(raw)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, apperr.New(apperr.Unavailable, op, "selection reply contains no JSON object")
	}
	var reply selectionReply
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &reply); err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, op, "unparsable selection reply", err)
	}

	raws := make([]rawSelection, 0, len(reply.Selections))
	for _, s := range reply.Selections {
		raws = append(raws, rawSelection{FieldIndex: s.FieldIndex, OCRIDs: s.OCRIDs, Reasoning: s.Reasoning})
	}
	return enrichSelections(raws, det.Fields, ocrRes), nil
}

func (r *Reconciler) callSelection(ctx context.Context, imageData []byte, ocrRes *ocr.Result, det *fields.Detection, targets map[int]string) (string, error) {
	const op = "reconcile.callSelection"

	req := openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		Temperature: 0.1,
		MaxTokens:   2000,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: buildSelectionPrompt(ocrRes, det, targets)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}

	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		if err := r.gate.Wait(ctx); err != nil {
			return "", apperr.Wrap(apperr.Internal, op, "rate gate interrupted", err)
		}
		resp, err := r.chat.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", apperr.New(apperr.Unavailable, op, "no choices in selection response")
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err
		if !fields.IsRetryable(err) {
			break
		}
		delay := fields.BackoffDelay(r.cfg.RetryBaseDelay, attempt)
		slog.Debug("retrying selection call", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return "", apperr.Wrap(apperr.Internal, op, "canceled during retry wait", ctx.Err())
		case <-time.After(delay):
		}
	}
	return "", apperr.Wrap(apperr.Unavailable, op, "selection call failed", lastErr)
}

// buildSelectionPrompt lists every OCR token with its geometry and every
// field's required mask text, and asks for token IDs per field.
func buildSelectionPrompt(ocrRes *ocr.Result, det *fields.Detection, targets map[int]string) string {
	var b strings.Builder
	b.WriteString("OCR tokens detected on the image (id, text, center x/y, width x height):\n")
	for _, t := range ocrRes.Tokens {
		box := t.Box()
		c := t.Center()
		fmt.Fprintf(&b, "  #%d %q at (%.0f,%.0f) %.0fx%.0f\n", t.ID, t.Text, c.X, c.Y, box.Width(), box.Height())
	}

	b.WriteString("\nFields that must be masked (fieldIndex, type, text to mask):\n")
	for i, f := range det.Fields {
		text, ok := targets[i]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  [%d] %s: %q\n", i, f.FieldType, text)
	}

	b.WriteString(`
For every field, pick the exact set of OCR token IDs whose texts together
reconstruct the text to mask. OCR often splits one value into several tokens
(a date into day/separator/year, a price into currency symbol, integer and
decimal tokens); include every fragment, using spatial adjacency to decide
which tokens belong together. Never invent IDs that are not listed.

Reply with ONLY a JSON object:
{"selections":[{"fieldIndex":0,"ocrIds":[3,4,5],"reasoning":"..."}]}
`)
	return b.String()
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
