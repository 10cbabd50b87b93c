package fields

import (
	"sort"
	"strings"
	"unicode"

	"github.com/BilalWohlig/labelwipe/internal/ocr"
	"github.com/BilalWohlig/labelwipe/internal/utils"
)

// maxLabelWindow bounds how many consecutive tokens may form one label
// ("Inclusive of all taxes" is five tokens after OCR splitting).
const maxLabelWindow = 5

// labelMatch is a label variant located in the token stream.
type labelMatch struct {
	fieldType Type
	variant   string
	box       utils.Box
	tokenIDs  map[int]bool
	line      int
	lastIdx   int // index within its line of the label's last token
}

// matchTokens is the last detection tier: match OCR tokens directly against
// the enumerated label variants, associating the nearest plausible token as
// the value within the proximity radius.
func matchTokens(tokens []ocr.Token, radius float64) *Detection {
	det := &Detection{}
	if len(tokens) == 0 {
		return det
	}

	lines := groupIntoLines(tokens)
	labels := findLabels(lines)

	labelTokenIDs := make(map[int]bool)
	for _, lm := range labels {
		for id := range lm.tokenIDs {
			labelTokenIDs[id] = true
		}
	}

	packSizeCovered := false
	for _, lm := range labels {
		f, ok := buildFieldFromLabel(lm, lines, labelTokenIDs, radius)
		if !ok {
			continue
		}
		if f.FieldType == PackSize {
			packSizeCovered = true
		}
		det.Fields = append(det.Fields, f)
	}

	// Standalone pack-size values carry no label at all; they are still
	// always masked, so hunt for the value pattern directly.
	if !packSizeCovered {
		if f, ok := findStandalonePackSize(lines, labelTokenIDs); ok {
			det.Fields = append(det.Fields, f)
		}
	}

	if len(det.Fields) == 0 {
		return det
	}
	det.Found = true
	det.Confidence = ConfidenceMedium
	finishDetection(det)
	return det
}

// groupIntoLines clusters tokens into visual lines by vertical center
// proximity, each line sorted left to right.
func groupIntoLines(tokens []ocr.Token) [][]ocr.Token {
	sorted := append([]ocr.Token(nil), tokens...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Center().Y < sorted[j].Center().Y
	})

	var lines [][]ocr.Token
	for _, t := range sorted {
		h := t.Box().Height()
		if h <= 0 {
			h = 10
		}
		placed := false
		if len(lines) > 0 {
			last := lines[len(lines)-1]
			refY := last[0].Center().Y
			if absFloat(t.Center().Y-refY) <= h*0.6 {
				lines[len(lines)-1] = append(last, t)
				placed = true
			}
		}
		if !placed {
			lines = append(lines, []ocr.Token{t})
		}
	}
	for _, line := range lines {
		sort.Slice(line, func(i, j int) bool {
			return line[i].Box().MinX < line[j].Box().MinX
		})
	}
	return lines
}

// findLabels slides a window over each line and matches the joined text
// against every label variant, preferring the longest variant at a position.
func findLabels(lines [][]ocr.Token) []labelMatch {
	var matches []labelMatch
	consumed := make(map[int]bool)

	for lineIdx, line := range lines {
		for start := range line {
			if consumed[line[start].ID] {
				continue
			}
			best := labelMatch{}
			bestLen := 0
			for width := 1; width <= maxLabelWindow && start+width <= len(line); width++ {
				window := line[start : start+width]
				joined := joinTokenTexts(window)
				for _, t := range AllTypes {
					for _, variant := range LabelVariants[t] {
						if normalizeLabel(joined) != normalizeLabel(variant) {
							continue
						}
						if len(variant) > bestLen {
							ids := make(map[int]bool, width)
							box := window[0].Box()
							for _, tok := range window {
								ids[tok.ID] = true
								box = box.Union(tok.Box())
							}
							best = labelMatch{
								fieldType: t,
								variant:   variant,
								box:       box,
								tokenIDs:  ids,
								line:      lineIdx,
								lastIdx:   start + width - 1,
							}
							bestLen = len(variant)
						}
					}
				}
			}
			if bestLen > 0 {
				matches = append(matches, best)
				for id := range best.tokenIDs {
					consumed[id] = true
				}
			}
		}
	}
	return matches
}

// buildFieldFromLabel associates a value with a located label and classifies
// the gap. Same-line tokens to the right are preferred; the line below is
// the vertically-stacked case.
func buildFieldFromLabel(lm labelMatch, lines [][]ocr.Token, labelTokenIDs map[int]bool, radius float64) (DetectedField, bool) {
	f := DetectedField{
		FieldType:    lm.fieldType,
		FieldName:    lm.variant,
		FieldPart:    lm.variant,
		CompleteText: lm.variant,
		Confidence:   ConfidenceMedium,
	}
	if containsDevanagari(lm.variant) {
		f.HindiText = lm.variant
	}

	// The tax-inclusive marker is a label-only field: no value to find,
	// and its distance must not drive the unified strategy.
	if lm.fieldType == InclusiveOfTaxes {
		f.Distance = DistanceStandalone
		f.DistanceReason = "marker text has no separate value"
		return f, true
	}

	value, gap, ok := findValueNear(lm, lines, labelTokenIDs, radius)
	if !ok {
		return DetectedField{}, false
	}
	f.ValuePart = value
	f.CompleteText = strings.TrimSpace(lm.variant + " " + value)
	if gap <= radius*0.5 {
		f.Distance = DistanceLow
		f.DistanceReason = "value within half the proximity radius of the label"
	} else {
		f.Distance = DistanceHigh
		f.DistanceReason = "value separated from the label by a significant gap"
	}
	return f, true
}

// findValueNear locates value tokens for a label: the remainder of the same
// line first, then the line below, both bounded by the proximity radius.
// Returns the joined value text and the pixel gap from the label.
func findValueNear(lm labelMatch, lines [][]ocr.Token, labelTokenIDs map[int]bool, radius float64) (string, float64, bool) {
	line := lines[lm.line]

	// Same line, to the right of the label.
	var parts []string
	gap := -1.0
	prevMaxX := lm.box.MaxX
	for _, tok := range line[lm.lastIdx+1:] {
		if labelTokenIDs[tok.ID] {
			break
		}
		g := tok.Box().MinX - prevMaxX
		if gap < 0 {
			if g > radius {
				break
			}
			gap = maxFloat(g, 0)
		} else if g > radius*0.5 {
			break
		}
		parts = append(parts, tok.Text)
		prevMaxX = tok.Box().MaxX
	}
	if len(parts) > 0 {
		return strings.Join(parts, " "), gap, true
	}

	// Vertically stacked: first unconsumed tokens on the next line that
	// overlap the label horizontally.
	if lm.line+1 < len(lines) {
		below := lines[lm.line+1]
		var belowParts []string
		vGap := -1.0
		for _, tok := range below {
			if labelTokenIDs[tok.ID] {
				continue
			}
			b := tok.Box()
			if b.MaxX < lm.box.MinX-radius || b.MinX > lm.box.MaxX+radius {
				continue
			}
			g := b.MinY - lm.box.MaxY
			if g > radius {
				continue
			}
			if vGap < 0 {
				vGap = maxFloat(g, 0)
			}
			belowParts = append(belowParts, tok.Text)
		}
		if len(belowParts) > 0 {
			return strings.Join(belowParts, " "), vGap, true
		}
	}
	return "", 0, false
}

// findStandalonePackSize scans for a bare quantity-plus-unit value with no
// pack-size label anywhere near it.
func findStandalonePackSize(lines [][]ocr.Token, labelTokenIDs map[int]bool) (DetectedField, bool) {
	for _, line := range lines {
		for start := range line {
			if labelTokenIDs[line[start].ID] {
				continue
			}
			for width := 1; width <= 3 && start+width <= len(line); width++ {
				window := line[start : start+width]
				joined := joinTokenTexts(window)
				if v, ok := MatchPackSizeValue(joined); ok && len(v) >= len(joined)-1 {
					return DetectedField{
						FieldType:      PackSize,
						CompleteText:   joined,
						ValuePart:      joined,
						Distance:       DistanceStandalone,
						DistanceReason: "pack-size value with no adjacent label",
						Confidence:     ConfidenceMedium,
					}, true
				}
			}
		}
	}
	return DetectedField{}, false
}

func joinTokenTexts(tokens []ocr.Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// normalizeLabel lowercases and strips spaces, dots and colons so OCR
// punctuation splits do not defeat variant matching.
func normalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '.', ':', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func containsDevanagari(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Devanagari, r) {
			return true
		}
	}
	return false
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
