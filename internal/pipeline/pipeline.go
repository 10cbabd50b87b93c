package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
	"github.com/BilalWohlig/labelwipe/internal/fields"
	"github.com/BilalWohlig/labelwipe/internal/maskgen"
	"github.com/BilalWohlig/labelwipe/internal/ocr"
	"github.com/BilalWohlig/labelwipe/internal/reconcile"
	"github.com/BilalWohlig/labelwipe/internal/storage"
	"github.com/BilalWohlig/labelwipe/internal/utils"
)

// Config tunes the workflow.
type Config struct {
	// DefaultPadding is applied when a request does not set its own.
	DefaultPadding int

	// TempRoot is where per-invocation scratch directories are created.
	// Empty means the system temp dir.
	TempRoot string

	// KeepTempFiles disables scratch cleanup, for debugging.
	KeepTempFiles bool
}

// DefaultConfig returns the workflow defaults.
func DefaultConfig() Config {
	return Config{DefaultPadding: maskgen.DefaultPadding}
}

// FieldDetector finds regulated label fields on an image.
// *fields.Detector satisfies it.
type FieldDetector interface {
	Detect(ctx context.Context, imageData []byte) (*fields.Detection, []ocr.Token, error)
}

// TokenReconciler matches detected fields to OCR token IDs.
// *reconcile.Reconciler satisfies it.
type TokenReconciler interface {
	Reconcile(ctx context.Context, imageData []byte, ocrRes *ocr.Result, det *fields.Detection) (*reconcile.Result, error)
}

// Inpainter produces sample images with the masked regions removed.
// *inpaint.Driver satisfies it.
type Inpainter interface {
	Inpaint(ctx context.Context, imageData, maskData []byte, prompt string) ([][]byte, error)
}

// Workflow wires the stages of the label-masking pipeline together.
type Workflow struct {
	store      storage.ObjectStore
	detector   FieldDetector
	ocr        ocr.Client
	reconciler TokenReconciler
	inpainter  Inpainter
	cfg        Config
}

// NewWorkflow assembles a workflow from its stage implementations.
func NewWorkflow(store storage.ObjectStore, detector FieldDetector, ocrClient ocr.Client,
	reconciler TokenReconciler, inpainter Inpainter, cfg Config,
) *Workflow {
	if cfg.DefaultPadding <= 0 {
		cfg.DefaultPadding = DefaultConfig().DefaultPadding
	}
	return &Workflow{
		store:      store,
		detector:   detector,
		ocr:        ocrClient,
		reconciler: reconciler,
		inpainter:  inpainter,
		cfg:        cfg,
	}
}

// Run executes the full workflow for one request. Every error it returns is
// already classified; the scratch directory is removed on all exit paths.
func (w *Workflow) Run(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	const op = "pipeline.Run"
	started := time.Now()

	if strings.TrimSpace(req.InputFileName) == "" {
		return nil, apperr.New(apperr.Validation, op, "inputFileName is required")
	}
	padding := req.Padding
	if padding <= 0 {
		padding = w.cfg.DefaultPadding
	}

	invocationID := uuid.New().String()
	log := slog.With("invocation", invocationID, "input", req.InputFileName)

	tempDir, err := w.makeTempDir(invocationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to create scratch directory", err)
	}
	defer w.cleanup(tempDir, log)

	var steps []string
	step := func(name string) {
		steps = append(steps, name)
		if progress != nil {
			progress(name)
		}
		log.Info("workflow step", "step", name)
	}

	// Fetch.
	step(StepFetch)
	imageData, err := w.store.Fetch(ctx, req.InputFileName)
	if err != nil {
		return nil, err
	}

	// Validate.
	step(StepValidate)
	width, height, err := w.validate(req.InputFileName, imageData, tempDir)
	if err != nil {
		return nil, err
	}

	// Detect fields. The detector's local fallback performs its own OCR
	// and hands the tokens forward so the OCR step can skip the call.
	step(StepDetectFields)
	detection, fallbackTokens, err := w.detector.Detect(ctx, imageData)
	if err != nil {
		return nil, err
	}
	log.Info("fields detected",
		"count", len(detection.Fields),
		"strategy", detection.UnifiedStrategy,
		"fallback", detection.FallbackUsed)

	// OCR.
	step(StepOCR)
	ocrRes, err := w.resolveOCR(ctx, imageData, fallbackTokens)
	if err != nil {
		return nil, err
	}

	// Reconcile.
	step(StepReconcile)
	recRes, err := w.reconciler.Reconcile(ctx, imageData, ocrRes, detection)
	if err != nil {
		return nil, err
	}
	log.Info("fields reconciled",
		"selected", len(recRes.SelectedFields),
		"tokens", recRes.TotalSelectedTexts,
		"fallback", recRes.FallbackUsed)

	// Build mask.
	step(StepBuildMask)
	mask := maskgen.BuildMask(width, height, recRes.SelectedFields, padding)
	maskData, err := utils.EncodePNG(mask)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to encode mask", err)
	}
	w.spill(tempDir, "mask.png", maskData, log)

	// Build highlight.
	step(StepBuildHighlight)
	img, _, err := utils.DecodeImageBytes(imageData)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, op, "failed to decode input image", err)
	}
	highlightData, err := utils.EncodePNG(maskgen.BuildHighlight(img, recRes.SelectedFields, padding))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to encode highlight", err)
	}
	w.spill(tempDir, "highlighted.png", highlightData, log)

	// Inpaint.
	step(StepInpaint)
	samples, err := w.inpainter.Inpaint(ctx, imageData, maskData, req.InpaintPrompt)
	if err != nil {
		return nil, err
	}
	log.Info("inpainting done", "samples", len(samples))

	// Upload.
	step(StepUpload)
	outputs, err := w.uploadArtifacts(ctx, req, imageData, maskData, highlightData, samples)
	if err != nil {
		return nil, err
	}

	// Respond.
	step(StepRespond)
	return &Result{
		Success:            true,
		OutputFiles:        outputs,
		AutoDetectedFields: detection.Fields,
		DistanceAnalysis:   summarizeDistances(detection),
		MaskingStrategy:    detection.UnifiedStrategy,
		SelectedFields:     recRes.SelectedFields,
		Steps:              steps,
		ProcessingTimeMs:   time.Since(started).Milliseconds(),
	}, nil
}

// validate checks format and size and returns the pixel dimensions.
func (w *Workflow) validate(name string, data []byte, tempDir string) (int, int, error) {
	const op = "pipeline.validate"

	if !utils.IsSupportedImage(name) {
		return 0, 0, apperr.New(apperr.Validation, op,
			fmt.Sprintf("unsupported image format %q", filepath.Ext(name)))
	}
	if len(data) > ocr.MaxImageSizeBytes {
		return 0, 0, apperr.New(apperr.Validation, op,
			fmt.Sprintf("image is %d bytes, limit is %d", len(data), ocr.MaxImageSizeBytes))
	}
	width, height, err := utils.ImageDimensions(data)
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.Validation, op, "undecodable image", err)
	}
	w.spill(tempDir, "original"+filepath.Ext(name), data, slog.Default())
	return width, height, nil
}

// resolveOCR reuses tokens the detector fallback already produced, otherwise
// runs text detection now.
func (w *Workflow) resolveOCR(ctx context.Context, imageData []byte, fallbackTokens []ocr.Token) (*ocr.Result, error) {
	if len(fallbackTokens) > 0 {
		return &ocr.Result{Tokens: fallbackTokens}, nil
	}
	return w.ocr.DetectText(ctx, imageData)
}

// uploadArtifacts stores the produced files concurrently. Inpainted samples
// are always uploaded; original, mask and highlight only when requested.
func (w *Workflow) uploadArtifacts(ctx context.Context, req Request,
	imageData, maskData, highlightData []byte, samples [][]byte,
) ([]OutputFile, error) {
	base, ext := splitName(req.InputFileName)

	type artifact struct {
		out         OutputFile
		data        []byte
		contentType string
	}
	var artifacts []artifact
	if req.ReturnOriginal {
		artifacts = append(artifacts, artifact{
			out:         OutputFile{Type: "original", FileName: base + "_original" + ext},
			data:        imageData,
			contentType: contentTypeFor(ext),
		})
	}
	if req.ReturnMask {
		artifacts = append(artifacts, artifact{
			out:         OutputFile{Type: "mask", FileName: base + "_mask.png"},
			data:        maskData,
			contentType: "image/png",
		})
	}
	if req.ReturnHighlighted {
		artifacts = append(artifacts, artifact{
			out:         OutputFile{Type: "highlighted", FileName: base + "_highlighted.png"},
			data:        highlightData,
			contentType: "image/png",
		})
	}
	for i, sample := range samples {
		artifacts = append(artifacts, artifact{
			out: OutputFile{
				Type:         "inpainted",
				FileName:     fmt.Sprintf("%s_%d.png", base, i+1),
				SampleNumber: i + 1,
			},
			data:        sample,
			contentType: "image/png",
		})
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	outputs := make([]OutputFile, len(artifacts))
	for i, a := range artifacts {
		wg.Add(1)
		go func(i int, a artifact) {
			defer wg.Done()
			if err := w.store.Upload(ctx, a.out.FileName, a.data, a.contentType); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			a.out.URL = w.store.URL(a.out.FileName)
			outputs[i] = a.out
		}(i, a)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return outputs, nil
}

func (w *Workflow) makeTempDir(invocationID string) (string, error) {
	root := w.cfg.TempRoot
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, "labelwipe-"+invocationID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	return dir, nil
}

// spill writes an intermediate artifact to the scratch dir, best effort.
func (w *Workflow) spill(tempDir, name string, data []byte, log *slog.Logger) {
	if err := utils.WriteFileAtomic(filepath.Join(tempDir, name), data); err != nil {
		log.Warn("failed to spill intermediate file", "file", name, "error", err)
	}
}

func (w *Workflow) cleanup(tempDir string, log *slog.Logger) {
	if w.cfg.KeepTempFiles {
		log.Debug("keeping scratch directory", "dir", tempDir)
		return
	}
	if err := os.RemoveAll(tempDir); err != nil {
		log.Warn("failed to remove scratch directory", "dir", tempDir, "error", err)
	}
}

func summarizeDistances(det *fields.Detection) []DistanceSummary {
	out := make([]DistanceSummary, 0, len(det.Fields))
	for _, f := range det.Fields {
		out = append(out, DistanceSummary{
			FieldType: string(f.FieldType),
			FieldName: f.FieldName,
			Distance:  string(f.Distance),
			Reason:    f.DistanceReason,
		})
	}
	return out
}

func splitName(name string) (base, ext string) {
	name = filepath.Base(name)
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

func contentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
