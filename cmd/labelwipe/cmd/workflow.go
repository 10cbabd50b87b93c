package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/BilalWohlig/labelwipe/internal/config"
	"github.com/BilalWohlig/labelwipe/internal/fields"
	"github.com/BilalWohlig/labelwipe/internal/inpaint"
	"github.com/BilalWohlig/labelwipe/internal/ocr"
	"github.com/BilalWohlig/labelwipe/internal/pipeline"
	"github.com/BilalWohlig/labelwipe/internal/reconcile"
	"github.com/BilalWohlig/labelwipe/internal/storage"
)

// buildWorkflow assembles the full pipeline from configuration. The returned
// cleanup function releases the OCR and storage clients.
func buildWorkflow(ctx context.Context, cfg *config.Config, store storage.ObjectStore) (*pipeline.Workflow, func(), error) {
	ocrClient, err := ocr.NewGoogleVisionClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create vision client: %w", err)
	}

	apiKey := cfg.OpenAI.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	chat := openai.NewClient(apiKey)

	gate := fields.NewMinIntervalGate(time.Duration(cfg.OpenAI.MinIntervalMs) * time.Millisecond)

	detector := fields.NewDetector(chat, ocrClient, gate, fields.Config{
		Model:           cfg.OpenAI.Model,
		MaxRetries:      cfg.OpenAI.MaxRetries,
		ProximityRadius: cfg.OpenAI.ProximityRadius,
	})
	reconciler := reconcile.NewReconciler(chat, gate, reconcile.Config{
		Model: cfg.OpenAI.Model,
	})
	inpainter := inpaint.NewDriver(inpaint.Config{
		Endpoint:     cfg.Inpaint.Endpoint,
		APIKey:       cfg.Inpaint.APIKey,
		SampleCount:  cfg.Inpaint.SampleCount,
		MaskDilation: cfg.Inpaint.MaskDilation,
		Timeout:      time.Duration(cfg.Inpaint.TimeoutSec) * time.Second,
	})

	workflow := pipeline.NewWorkflow(store, detector, ocrClient, reconciler, inpainter, pipeline.Config{
		DefaultPadding: cfg.Pipeline.Padding,
		TempRoot:       cfg.Pipeline.TempDir,
		KeepTempFiles:  cfg.Pipeline.KeepTempFiles,
	})

	cleanup := func() {
		_ = ocrClient.Close()
		_ = store.Close()
	}
	return workflow, cleanup, nil
}
