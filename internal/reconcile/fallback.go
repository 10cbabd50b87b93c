package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BilalWohlig/labelwipe/internal/fields"
	"github.com/BilalWohlig/labelwipe/internal/ocr"
)

// candidate is a token whose normalized text is a fragment of the target.
type candidate struct {
	tok  ocr.Token
	norm string
}

// fallbackSelect is the deterministic tier: for each field, pick tokens by
// word overlap with the mask text, then grow the spatial cluster to pick up
// fragments of values the OCR split apart.
func fallbackSelect(ocrRes *ocr.Result, det *fields.Detection, targets map[int]string) []SelectedField {
	var raws []rawSelection
	for i := range det.Fields {
		target, ok := targets[i]
		if !ok {
			continue
		}
		ids := selectTokensForText(target, ocrRes.Tokens)
		if len(ids) == 0 {
			continue
		}
		raws = append(raws, rawSelection{
			FieldIndex: i,
			OCRIDs:     ids,
			Reasoning:  fmt.Sprintf("naive match against %q", target),
		})
	}
	return enrichSelections(raws, det.Fields, ocrRes)
}

// selectTokensForText picks the token IDs whose texts reconstruct target.
// Seeds are tokens whose normalized text is a substantial fragment of the
// normalized target; the cluster then grows to spatially adjacent tokens
// that are also fragments, so "₹", "95" and "00" all join for "₹95.00".
func selectTokensForText(target string, tokens []ocr.Token) []int {
	normTarget := normalizeMaskText(target)
	if normTarget == "" {
		return nil
	}

	var cands []candidate
	for _, t := range tokens {
		n := normalizeMaskText(t.Text)
		if n == "" || !strings.Contains(normTarget, n) {
			continue
		}
		cands = append(cands, candidate{tok: t, norm: n})
	}
	if len(cands) == 0 {
		return nil
	}

	// Seed with the longest fragment; ties go to the earlier token.
	sort.SliceStable(cands, func(i, j int) bool {
		return len(cands[i].norm) > len(cands[j].norm)
	})
	seed := cands[0]

	cluster := []candidate{seed}
	inCluster := map[int]bool{seed.tok.ID: true}
	totalLen := len(seed.norm)

	// Grow greedily: admit adjacent fragments while the combined length
	// still fits inside the target.
	for grown := true; grown; {
		grown = false
		for _, c := range cands {
			if inCluster[c.tok.ID] {
				continue
			}
			if totalLen+len(c.norm) > len(normTarget) {
				continue
			}
			if !adjacentToCluster(c.tok, cluster) {
				continue
			}
			cluster = append(cluster, c)
			inCluster[c.tok.ID] = true
			totalLen += len(c.norm)
			grown = true
		}
	}

	ids := make([]int, 0, len(cluster))
	for _, c := range cluster {
		ids = append(ids, c.tok.ID)
	}
	sort.Ints(ids)
	return ids
}

// adjacentToCluster reports whether tok sits next to any cluster member,
// with the allowance scaled by token height so it tracks font size.
func adjacentToCluster(tok ocr.Token, cluster []candidate) bool {
	b := tok.Box()
	allow := b.Height() * 1.5
	if allow < 10 {
		allow = 10
	}
	for _, m := range cluster {
		mb := m.tok.Box()
		dx := gap1D(b.MinX, b.MaxX, mb.MinX, mb.MaxX)
		dy := gap1D(b.MinY, b.MaxY, mb.MinY, mb.MaxY)
		if dx <= allow && dy <= allow {
			return true
		}
	}
	return false
}

// gap1D returns the gap between two 1-D intervals, zero when they overlap.
func gap1D(aMin, aMax, bMin, bMax float64) float64 {
	if aMax < bMin {
		return bMin - aMax
	}
	if bMax < aMin {
		return aMin - bMax
	}
	return 0
}

// normalizeMaskText lowercases and strips whitespace and joining punctuation
// so fragment containment survives OCR splitting.
func normalizeMaskText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '\n', '.', ',', ':', ';', '-', '/':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
