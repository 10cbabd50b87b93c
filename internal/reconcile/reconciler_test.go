package reconcile

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
	"github.com/BilalWohlig/labelwipe/internal/fields"
	"github.com/BilalWohlig/labelwipe/internal/ocr"
	"github.com/BilalWohlig/labelwipe/internal/utils"
)

type fakeChat struct {
	calls int
	fn    func(call int) (openai.ChatCompletionResponse, error)
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	return f.fn(f.calls)
}

func chatReply(content string) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}, nil
}

func tok(id int, text string, x, y, w, h float64) ocr.Token {
	return ocr.Token{
		ID:   id,
		Text: text,
		Polygon: []utils.Point{
			{X: x, Y: y},
			{X: x + w, Y: y},
			{X: x + w, Y: y + h},
			{X: x, Y: y + h},
		},
	}
}

func mrpDetection() *fields.Detection {
	return &fields.Detection{
		Found: true,
		Fields: []fields.DetectedField{
			{
				FieldType:    fields.MRP,
				FieldName:    "MRP",
				CompleteText: "MRP ₹95.00",
				FieldPart:    "MRP",
				ValuePart:    "₹95.00",
				Distance:     fields.DistanceLow,
				TextToMask:   "MRP ₹95.00",
			},
		},
		UnifiedStrategy: fields.StrategyAllFieldsAndValues,
	}
}

func testReconcilerConfig() Config {
	return Config{Model: "test-model", MaxRetries: 2, RetryBaseDelay: time.Millisecond}
}

func TestReconcile_ModelPath(t *testing.T) {
	chat := &fakeChat{fn: func(int) (openai.ChatCompletionResponse, error) {
		return chatReply("```json\n{\"selections\":[{\"fieldIndex\":0,\"ocrIds\":[2,1],\"reasoning\":\"label and value\"}]}\n```")
	}}
	r := NewReconciler(chat, fields.NewMinIntervalGate(0), testReconcilerConfig())

	ocrRes := &ocr.Result{Tokens: []ocr.Token{
		tok(1, "MRP", 0, 0, 40, 20),
		tok(2, "₹95.00", 45, 0, 60, 20),
	}}

	res, err := r.Reconcile(context.Background(), []byte("img"), ocrRes, mrpDetection())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, 2, res.TotalSelectedTexts)
	require.Len(t, res.SelectedFields, 1)

	sf := res.SelectedFields[0]
	// IDs come back sorted regardless of reply order.
	assert.Equal(t, []int{1, 2}, sf.SelectedOCRIDs)
	require.Len(t, sf.SelectedTexts, 2)
	assert.Equal(t, "MRP", sf.SelectedTexts[0].Text)
	assert.Equal(t, "label and value", sf.Reasoning)

	// Combined geometry is the minimal box over both token polygons.
	assert.Equal(t, []utils.Point{
		{X: 0, Y: 0}, {X: 105, Y: 0}, {X: 105, Y: 20}, {X: 0, Y: 20},
	}, sf.CombinedCoordinates)
}

func TestReconcile_RetriesRateLimitThenSucceeds(t *testing.T) {
	chat := &fakeChat{fn: func(call int) (openai.ChatCompletionResponse, error) {
		if call == 1 {
			return openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}
		}
		return chatReply(`{"selections":[{"fieldIndex":0,"ocrIds":[1]}]}`)
	}}
	r := NewReconciler(chat, fields.NewMinIntervalGate(0), testReconcilerConfig())

	ocrRes := &ocr.Result{Tokens: []ocr.Token{tok(1, "MRP", 0, 0, 40, 20)}}
	res, err := r.Reconcile(context.Background(), []byte("img"), ocrRes, mrpDetection())
	require.NoError(t, err)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, 2, chat.calls)
}

func TestReconcile_NonRetryableErrorFallsBackEarly(t *testing.T) {
	chat := &fakeChat{fn: func(int) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}
	}}
	r := NewReconciler(chat, fields.NewMinIntervalGate(0), testReconcilerConfig())

	ocrRes := &ocr.Result{Tokens: []ocr.Token{
		tok(1, "MRP", 0, 0, 40, 20),
		tok(2, "₹95.00", 45, 0, 60, 20),
	}}

	res, err := r.Reconcile(context.Background(), []byte("img"), ocrRes, mrpDetection())
	require.NoError(t, err)
	assert.True(t, res.FallbackUsed)
	// A hard rejection is not worth a second round trip.
	assert.Equal(t, 1, chat.calls)
}

func TestReconcile_FallbackOnModelFailure(t *testing.T) {
	chat := &fakeChat{fn: func(int) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, errors.New("connection refused")
	}}
	r := NewReconciler(chat, fields.NewMinIntervalGate(0), testReconcilerConfig())

	// OCR split the price into currency, integer and decimal tokens.
	ocrRes := &ocr.Result{Tokens: []ocr.Token{
		tok(1, "MRP", 0, 0, 40, 20),
		tok(2, "₹", 45, 0, 12, 20),
		tok(3, "95", 59, 0, 24, 20),
		tok(4, "00", 86, 0, 24, 20),
		tok(5, "unrelated", 0, 200, 80, 20),
	}}

	res, err := r.Reconcile(context.Background(), []byte("img"), ocrRes, mrpDetection())
	require.NoError(t, err)

	assert.True(t, res.FallbackUsed)
	require.Len(t, res.SelectedFields, 1)
	assert.Equal(t, []int{1, 2, 3, 4}, res.SelectedFields[0].SelectedOCRIDs)
}

func TestReconcile_FallbackOnEmptyModelSelection(t *testing.T) {
	chat := &fakeChat{fn: func(int) (openai.ChatCompletionResponse, error) {
		return chatReply(`{"selections":[]}`)
	}}
	r := NewReconciler(chat, fields.NewMinIntervalGate(0), testReconcilerConfig())

	ocrRes := &ocr.Result{Tokens: []ocr.Token{
		tok(1, "MRP", 0, 0, 40, 20),
		tok(2, "₹95.00", 45, 0, 60, 20),
	}}

	res, err := r.Reconcile(context.Background(), []byte("img"), ocrRes, mrpDetection())
	require.NoError(t, err)
	assert.True(t, res.FallbackUsed)
	assert.NotEmpty(t, res.SelectedFields)
}

func TestReconcile_NoTokens(t *testing.T) {
	r := NewReconciler(&fakeChat{}, fields.NewMinIntervalGate(0), testReconcilerConfig())

	_, err := r.Reconcile(context.Background(), nil, &ocr.Result{}, mrpDetection())
	require.Error(t, err)
	assert.Equal(t, apperr.ReconciliationFailed, apperr.KindOf(err))
}

func TestReconcile_NoMaskableText(t *testing.T) {
	r := NewReconciler(&fakeChat{}, fields.NewMinIntervalGate(0), testReconcilerConfig())

	// The tax marker contributes nothing under values-only, leaving no
	// target at all.
	det := &fields.Detection{
		Found: true,
		Fields: []fields.DetectedField{
			{FieldType: fields.InclusiveOfTaxes, CompleteText: "Incl. of all taxes"},
		},
		UnifiedStrategy: fields.StrategyValuesOnly,
	}
	ocrRes := &ocr.Result{Tokens: []ocr.Token{tok(1, "Incl.", 0, 0, 40, 20)}}

	_, err := r.Reconcile(context.Background(), []byte("img"), ocrRes, det)
	require.Error(t, err)
	assert.Equal(t, apperr.ReconciliationFailed, apperr.KindOf(err))
}

func TestReconcile_NothingMatches(t *testing.T) {
	chat := &fakeChat{fn: func(int) (openai.ChatCompletionResponse, error) {
		return chatReply("no JSON here, sorry")
	}}
	r := NewReconciler(chat, fields.NewMinIntervalGate(0), testReconcilerConfig())

	ocrRes := &ocr.Result{Tokens: []ocr.Token{tok(1, "zzz", 0, 0, 40, 20)}}
	_, err := r.Reconcile(context.Background(), []byte("img"), ocrRes, mrpDetection())
	require.Error(t, err)
	assert.Equal(t, apperr.ReconciliationFailed, apperr.KindOf(err))
}

func TestEnrichSelections(t *testing.T) {
	detected := mrpDetection().Fields
	ocrRes := &ocr.Result{Tokens: []ocr.Token{
		tok(1, "MRP", 0, 0, 40, 20),
		tok(2, "₹95.00", 45, 0, 60, 20),
	}}

	t.Run("dangling IDs dropped silently", func(t *testing.T) {
		out := enrichSelections([]rawSelection{
			{FieldIndex: 0, OCRIDs: []int{1, 99, 2, 1}},
		}, detected, ocrRes)
		require.Len(t, out, 1)
		assert.Equal(t, []int{1, 2}, out[0].SelectedOCRIDs)
	})

	t.Run("selection with no valid ID discarded", func(t *testing.T) {
		out := enrichSelections([]rawSelection{
			{FieldIndex: 0, OCRIDs: []int{98, 99}},
		}, detected, ocrRes)
		assert.Empty(t, out)
	})

	t.Run("out-of-range field index discarded", func(t *testing.T) {
		out := enrichSelections([]rawSelection{
			{FieldIndex: 5, OCRIDs: []int{1}},
			{FieldIndex: -1, OCRIDs: []int{1}},
		}, detected, ocrRes)
		assert.Empty(t, out)
	})
}

func TestMaskTargets(t *testing.T) {
	det := &fields.Detection{
		Fields: []fields.DetectedField{
			{FieldType: fields.MRP, CompleteText: "MRP ₹95.00", ValuePart: "₹95.00", TextToMask: "₹95.00"},
			{FieldType: fields.InclusiveOfTaxes, CompleteText: "Incl. of all taxes"},
			{FieldType: fields.PackSize, CompleteText: "Net Qty 10 tablets", ValuePart: "10 tablets"},
		},
		UnifiedStrategy: fields.StrategyValuesOnly,
	}

	targets := maskTargets(det)
	// The tax marker is skipped under values-only; the pack size falls
	// back to MaskText when TextToMask was never filled.
	assert.Equal(t, map[int]string{0: "₹95.00", 2: "10 tablets"}, targets)
}

func TestNormalizeMaskText(t *testing.T) {
	assert.Equal(t, "₹9500", normalizeMaskText("₹95.00"))
	assert.Equal(t, "batchnos24k016", normalizeMaskText("Batch No. S24K016"))
	assert.Equal(t, "", normalizeMaskText(" .:,- "))
}

func TestSelectTokensForText_ClusterGrowth(t *testing.T) {
	tokens := []ocr.Token{
		tok(1, "₹", 0, 0, 12, 20),
		tok(2, "95", 14, 0, 24, 20),
		tok(3, "00", 41, 0, 24, 20),
		// Same fragment text but far away; must not join the cluster.
		tok(4, "95", 0, 500, 24, 20),
	}

	ids := selectTokensForText("₹95.00", tokens)
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestGap1D(t *testing.T) {
	assert.Equal(t, 0.0, gap1D(0, 10, 5, 15))
	assert.Equal(t, 5.0, gap1D(0, 10, 15, 25))
	assert.Equal(t, 5.0, gap1D(15, 25, 0, 10))
}
