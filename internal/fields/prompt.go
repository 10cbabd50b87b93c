package fields

import (
	"fmt"
	"strings"
)

// buildAnalysisPrompt constructs the structured instruction sent with the
// packaging photo. The model must reply with a single JSON object so the
// parser can decode it without scraping prose.
func buildAnalysisPrompt() string {
	var b strings.Builder

	b.WriteString("You are analyzing a product packaging photo for regulated label fields.\n")
	b.WriteString("Find every instance of these field types (labels may be English or Hindi):\n\n")

	for _, t := range AllTypes {
		b.WriteString(fmt.Sprintf("- %s: labels such as %s\n", t, strings.Join(LabelVariants[t], ", ")))
	}

	b.WriteString(`
For each field found, classify the VISUAL DISTANCE between the field label and its value:
- "low": label and value are adjacent or connected with no separating gap. This includes
  vertically stacked label/value with no gap (e.g. "MFG.Dt.03/2024").
- "high": label and value are separated by significant whitespace or appear in separate
  columns (e.g. "Batch No." in one column and "S24K016" in another).
- "standalone": a pack-size value with no label nearby (e.g. "per 10 tablets").

Pack-size values must always be reported, even without a label. The tax-inclusive marker
("Incl. of all taxes" or similar) must be reported when present.

Reply with ONLY a JSON object, no prose, no markdown fences:
{
  "found": true,
  "confidence": "high",
  "fields": [
    {
      "fieldType": "manufacturing_date",
      "fieldName": "MFG.Dt.",
      "completeText": "MFG.Dt.03/2024",
      "fieldPart": "MFG.Dt.",
      "valuePart": "03/2024",
      "hindiText": "",
      "distance": "low",
      "distanceReason": "label and value are directly connected with no gap",
      "confidence": "high"
    }
  ]
}

Set "found": false with an empty "fields" array when no field of any listed type is visible.
`)
	return b.String()
}
