package fields

import (
	"encoding/json"
	"errors"
	"strings"
)

// errUnparsable marks a model reply that could not be decoded at all, as
// opposed to a well-formed reply that reports no fields.
var errUnparsable = errors.New("analysis response is not parsable")

// analysisReply is the wire shape expected from the model.
type analysisReply struct {
	Found      bool   `json:"found"`
	Confidence string `json:"confidence"`
	Fields     []struct {
		FieldType      string `json:"fieldType"`
		FieldName      string `json:"fieldName"`
		CompleteText   string `json:"completeText"`
		FieldPart      string `json:"fieldPart"`
		ValuePart      string `json:"valuePart"`
		HindiText      string `json:"hindiText"`
		Distance       string `json:"distance"`
		DistanceReason string `json:"distanceReason"`
		Confidence     string `json:"confidence"`
	} `json:"fields"`
}

// parseAnalysisResponse decodes the model reply into a Detection.
// "Model said no fields" and "could not parse the answer" are kept distinct:
// the former returns Found=false with a nil error, the latter errUnparsable.
func parseAnalysisResponse(raw string) (*Detection, error) {
	cleaned := stripCodeFences(raw)
	cleaned = extractJSONObject(cleaned)
	if cleaned == "" {
		return nil, errUnparsable
	}

	var reply analysisReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, errUnparsable
	}

	det := &Detection{
		Found:      reply.Found,
		Confidence: normalizeConfidence(reply.Confidence),
	}
	for _, f := range reply.Fields {
		ft, ok := normalizeType(f.FieldType)
		if !ok {
			continue
		}
		det.Fields = append(det.Fields, DetectedField{
			FieldType:      ft,
			FieldName:      f.FieldName,
			CompleteText:   f.CompleteText,
			FieldPart:      f.FieldPart,
			ValuePart:      f.ValuePart,
			HindiText:      f.HindiText,
			Distance:       normalizeDistance(f.Distance),
			DistanceReason: f.DistanceReason,
			Confidence:     normalizeConfidence(f.Confidence),
		})
	}

	if !det.Found || len(det.Fields) == 0 {
		det.Found = false
		det.Fields = nil
		return det, nil
	}

	finishDetection(det)
	return det, nil
}

// extractFromFreeText is the secondary parse tier: scan the reply line by
// line for known label variants and reconstruct fields from the surrounding
// text. Used when the reply contains no decodable JSON object.
func extractFromFreeText(raw string) *Detection {
	det := &Detection{}
	seen := make(map[Type]map[string]bool)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, t := range AllTypes {
			for _, variant := range LabelVariants[t] {
				idx := indexFold(line, variant)
				if idx < 0 {
					continue
				}
				value := strings.TrimLeft(line[idx+len(variant):], " :.-\t")
				complete := strings.TrimSpace(line[idx:])
				if seen[t] == nil {
					seen[t] = make(map[string]bool)
				}
				if seen[t][complete] {
					continue
				}
				seen[t][complete] = true
				det.Fields = append(det.Fields, DetectedField{
					FieldType:      t,
					FieldName:      variant,
					CompleteText:   complete,
					FieldPart:      variant,
					ValuePart:      value,
					Distance:       DistanceLow,
					DistanceReason: "recovered from free-text model reply; assuming connected layout",
					Confidence:     ConfidenceLow,
				})
				break
			}
		}
		if v, ok := MatchPackSizeValue(line); ok && seen[PackSize] == nil {
			seen[PackSize] = map[string]bool{v: true}
			det.Fields = append(det.Fields, DetectedField{
				FieldType:      PackSize,
				CompleteText:   v,
				ValuePart:      v,
				Distance:       DistanceStandalone,
				DistanceReason: "standalone pack-size value in free-text reply",
				Confidence:     ConfidenceLow,
			})
		}
	}

	if len(det.Fields) == 0 {
		return det
	}
	det.Found = true
	det.Confidence = ConfidenceLow
	finishDetection(det)
	return det
}

// finishDetection fills the derived members: the unified strategy and each
// field's TextToMask under that strategy.
func finishDetection(det *Detection) {
	det.UnifiedStrategy = ResolveStrategy(det.Fields)
	for i := range det.Fields {
		det.Fields[i].TextToMask = MaskText(det.Fields[i], det.UnifiedStrategy)
	}
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

// extractJSONObject returns the outermost {...} span of s, or "" when the
// text contains no braces.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func normalizeType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTypes {
		if t == known {
			return known, true
		}
	}
	return "", false
}

func normalizeDistance(s string) Distance {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return DistanceHigh
	case "standalone":
		return DistanceStandalone
	default:
		// Unknown classifications degrade to low so masking stays
		// conservative (labels and values both covered).
		return DistanceLow
	}
}

func normalizeConfidence(s string) ConfidenceLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// indexFold is a case-insensitive strings.Index.
func indexFold(s, substr string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(substr))
}
