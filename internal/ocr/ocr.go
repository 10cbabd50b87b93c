// Package ocr wraps cloud text detection. It produces the token set every
// later workflow stage references by ID; tokens are immutable once returned.
package ocr

import (
	"context"

	"github.com/BilalWohlig/labelwipe/internal/utils"
)

// Token is one detected text fragment with its bounding polygon.
// IDs are 1-based and stable within a single detection call.
type Token struct {
	ID         int           `json:"id"`
	Text       string        `json:"text"`
	Polygon    []utils.Point `json:"coordinates"`
	Confidence *float64      `json:"confidence,omitempty"`
}

// Box returns the minimal axis-aligned bounding box of the token polygon.
func (t Token) Box() utils.Box {
	return utils.BoundingBox(t.Polygon)
}

// Center returns the centroid of the token polygon.
func (t Token) Center() utils.Point {
	return utils.Centroid(t.Polygon)
}

// Result is the output of one text-detection call.
type Result struct {
	FullText string  `json:"fullText"`
	Tokens   []Token `json:"tokens"`
}

// TokenByID returns the token with the given ID, if present.
func (r *Result) TokenByID(id int) (Token, bool) {
	for _, t := range r.Tokens {
		if t.ID == id {
			return t, true
		}
	}
	return Token{}, false
}

// IDSet returns the set of token IDs present in the result.
func (r *Result) IDSet() map[int]bool {
	ids := make(map[int]bool, len(r.Tokens))
	for _, t := range r.Tokens {
		ids[t.ID] = true
	}
	return ids
}

// Client performs text detection on raw image bytes.
type Client interface {
	DetectText(ctx context.Context, imageData []byte) (*Result, error)
	Close() error
}
