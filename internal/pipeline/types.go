// Package pipeline orchestrates the full label-masking workflow: fetch the
// input photo from object storage, detect regulated label fields, reconcile
// them to OCR tokens, rasterize mask and highlight, drive inpainting, and
// upload every artifact.
package pipeline

import (
	"github.com/BilalWohlig/labelwipe/internal/fields"
	"github.com/BilalWohlig/labelwipe/internal/reconcile"
)

// Workflow step names, reported in execution order in every result.
const (
	StepFetch          = "fetch"
	StepValidate       = "validate"
	StepDetectFields   = "detect_fields"
	StepOCR            = "ocr"
	StepReconcile      = "reconcile"
	StepBuildMask      = "build_mask"
	StepBuildHighlight = "build_highlight"
	StepInpaint        = "inpaint"
	StepUpload         = "upload"
	StepRespond        = "respond"
)

// Request describes one processImage invocation.
type Request struct {
	// InputFileName is the object name of the photo in the bucket.
	InputFileName string `json:"inputFileName"`

	// InpaintPrompt overrides the default removal prompt when set.
	InpaintPrompt string `json:"inpaintPrompt,omitempty"`

	// Padding is the pixel padding around each masked box. Zero means the
	// configured default.
	Padding int `json:"padding,omitempty"`

	ReturnOriginal    bool `json:"returnOriginal,omitempty"`
	ReturnMask        bool `json:"returnMask,omitempty"`
	ReturnHighlighted bool `json:"returnHighlighted,omitempty"`
}

// OutputFile describes one uploaded artifact.
type OutputFile struct {
	// Type is one of original, mask, highlighted, inpainted.
	Type string `json:"type"`

	FileName string `json:"fileName"`
	URL      string `json:"url"`

	// SampleNumber is set for inpainted samples, starting at 1.
	SampleNumber int `json:"sampleNumber,omitempty"`
}

// DistanceSummary reports one field's label-to-value distance judgment.
type DistanceSummary struct {
	FieldType string `json:"fieldType"`
	FieldName string `json:"fieldName"`
	Distance  string `json:"distance"`
	Reason    string `json:"reason,omitempty"`
}

// Result is the successful workflow outcome.
type Result struct {
	Success            bool                      `json:"success"`
	OutputFiles        []OutputFile              `json:"outputFiles"`
	AutoDetectedFields []fields.DetectedField    `json:"autoDetectedFields"`
	DistanceAnalysis   []DistanceSummary         `json:"distanceAnalysis"`
	MaskingStrategy    fields.Strategy           `json:"maskingStrategy"`
	SelectedFields     []reconcile.SelectedField `json:"selectedFields"`

	// Steps lists the step names that ran, in order.
	Steps []string `json:"steps"`

	ProcessingTimeMs int64 `json:"processingTimeMs"`
}

// ProgressFunc receives each step name as it starts. Used by the websocket
// endpoint to stream workflow progress; may be nil.
type ProgressFunc func(step string)
