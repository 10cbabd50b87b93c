// Package fields locates regulated label fields on packaging photos and
// classifies the visual distance between each field label and its value.
// The primary path asks a vision-language model; two deterministic fallback
// tiers cover unparsable replies and outright call failure.
package fields

// Type identifies one of the regulated field categories.
type Type string

const (
	ManufacturingDate Type = "manufacturing_date"
	ExpiryDate        Type = "expiry_date"
	BatchNumber       Type = "batch_number"
	MRP               Type = "mrp"
	PackSize          Type = "pack_size"
	InclusiveOfTaxes  Type = "inclusive_of_taxes"
)

// AllTypes lists the supported field types in stable order.
var AllTypes = []Type{
	ManufacturingDate,
	ExpiryDate,
	BatchNumber,
	MRP,
	PackSize,
	InclusiveOfTaxes,
}

// Distance classifies the visual gap between a field label and its value.
type Distance string

const (
	// DistanceLow: label and value are adjacent or connected with no
	// separating gap, including vertically stacked with no gap.
	DistanceLow Distance = "low"
	// DistanceHigh: label and value are separated by significant
	// whitespace or a columnar layout.
	DistanceHigh Distance = "high"
	// DistanceStandalone: a value with no label nearby (pack sizes only).
	DistanceStandalone Distance = "standalone"
)

// Strategy is the masking strategy applied to the whole image.
type Strategy string

const (
	// StrategyAllFieldsAndValues masks every field's label and value, the
	// pack-size value, and the tax-inclusive marker.
	StrategyAllFieldsAndValues Strategy = "unified_all_fields_and_values"
	// StrategyValuesOnly masks values only across all fields plus the
	// pack-size value; the tax-inclusive marker is excluded.
	StrategyValuesOnly Strategy = "values_only"
)

// PossibleStrategies lists the strategies the API can report.
var PossibleStrategies = []Strategy{StrategyAllFieldsAndValues, StrategyValuesOnly}

// ConfidenceLevel grades how sure the detector is about a field.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// DetectedField is one candidate regulated field instance. It is produced
// once per image and read-only downstream.
type DetectedField struct {
	FieldType      Type            `json:"fieldType"`
	FieldName      string          `json:"fieldName"`
	CompleteText   string          `json:"completeText"`
	FieldPart      string          `json:"fieldPart"`
	ValuePart      string          `json:"valuePart"`
	HindiText      string          `json:"hindiText,omitempty"`
	Distance       Distance        `json:"distance"`
	DistanceReason string          `json:"distanceReason,omitempty"`
	TextToMask     string          `json:"textToMask"`
	Confidence     ConfidenceLevel `json:"confidence"`
}

// Detection is the detector output for one image.
type Detection struct {
	Found           bool            `json:"found"`
	Fields          []DetectedField `json:"fields"`
	UnifiedStrategy Strategy        `json:"unifiedStrategy"`
	Confidence      ConfidenceLevel `json:"confidence"`

	// FallbackUsed marks that the local OCR-matching tier produced the
	// result rather than the model.
	FallbackUsed bool `json:"fallbackUsed,omitempty"`
}

// ResolveStrategy computes the unified whole-image strategy from per-field
// distances: any low-distance field forces the all-fields strategy; only
// when every field is high-distance (or standalone) do values-only apply.
func ResolveStrategy(fields []DetectedField) Strategy {
	for _, f := range fields {
		if f.Distance == DistanceLow {
			return StrategyAllFieldsAndValues
		}
	}
	return StrategyValuesOnly
}

// MaskText returns the text that must be masked for f under the unified
// strategy. Pack sizes always contribute their value regardless of strategy;
// the tax-inclusive marker contributes only under the all-fields strategy.
func MaskText(f DetectedField, unified Strategy) string {
	switch f.FieldType {
	case PackSize:
		if unified == StrategyAllFieldsAndValues && f.CompleteText != "" {
			return f.CompleteText
		}
		if f.ValuePart != "" {
			return f.ValuePart
		}
		return f.CompleteText
	case InclusiveOfTaxes:
		if unified != StrategyAllFieldsAndValues {
			return ""
		}
		return f.CompleteText
	default:
		if unified == StrategyAllFieldsAndValues {
			return f.CompleteText
		}
		return f.ValuePart
	}
}
