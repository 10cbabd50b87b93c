// Package reconcile resolves which OCR token IDs must be masked for each
// detected field, reconciling the model's free-text field analysis with the
// vision OCR's token geometry. OCR routinely fragments one semantic value
// across several tokens; selection has to reassemble those fragments.
package reconcile

import (
	"github.com/BilalWohlig/labelwipe/internal/fields"
	"github.com/BilalWohlig/labelwipe/internal/ocr"
	"github.com/BilalWohlig/labelwipe/internal/utils"
)

// SelectedField is the reconciliation result for one detected field.
type SelectedField struct {
	Field fields.DetectedField `json:"field"`

	// SelectedOCRIDs are the token IDs to mask; every ID is guaranteed to
	// exist in the OCR token set the selection was enriched against.
	SelectedOCRIDs []int `json:"selectedOCRIds"`

	// CombinedCoordinates is the minimal axis-aligned bounding polygon
	// (4 points, clockwise) covering all selected token polygons.
	CombinedCoordinates []utils.Point `json:"combinedCoordinates"`

	// SelectedTexts are the resolved tokens, in ID order.
	SelectedTexts []ocr.Token `json:"selectedTexts"`

	Reasoning string `json:"reasoning,omitempty"`
}

// Result is the output of one reconciliation pass.
type Result struct {
	Success            bool            `json:"success"`
	SelectedFields     []SelectedField `json:"selectedFields"`
	TotalSelectedTexts int             `json:"totalSelectedTexts"`

	// FallbackUsed marks that naive token matching produced the result
	// rather than the model.
	FallbackUsed bool `json:"fallbackUsed,omitempty"`
}

// rawSelection is one field's token choice before enrichment.
type rawSelection struct {
	FieldIndex int
	OCRIDs     []int
	Reasoning  string
}

// enrichSelections validates raw selections against the OCR token set and
// derives geometry. IDs absent from the token set are dropped silently;
// selections left with no valid ID are discarded entirely.
func enrichSelections(raws []rawSelection, detected []fields.DetectedField, ocrRes *ocr.Result) []SelectedField {
	var out []SelectedField
	for _, raw := range raws {
		if raw.FieldIndex < 0 || raw.FieldIndex >= len(detected) {
			continue
		}
		var toks []ocr.Token
		var ids []int
		seen := make(map[int]bool)
		for _, id := range raw.OCRIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			tok, ok := ocrRes.TokenByID(id)
			if !ok {
				continue
			}
			ids = append(ids, id)
			toks = append(toks, tok)
		}
		if len(ids) == 0 {
			continue
		}
		sortTokensByID(ids, toks)

		var pts []utils.Point
		for _, t := range toks {
			pts = append(pts, t.Polygon...)
		}
		out = append(out, SelectedField{
			Field:               detected[raw.FieldIndex],
			SelectedOCRIDs:      ids,
			CombinedCoordinates: utils.BoundingBox(pts).Corners(),
			SelectedTexts:       toks,
			Reasoning:           raw.Reasoning,
		})
	}
	return out
}

func sortTokensByID(ids []int, toks []ocr.Token) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
			toks[j], toks[j-1] = toks[j-1], toks[j]
		}
	}
}
