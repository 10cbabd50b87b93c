package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveStrategy(t *testing.T) {
	tests := []struct {
		name   string
		fields []DetectedField
		want   Strategy
	}{
		{
			name:   "no fields",
			fields: nil,
			want:   StrategyValuesOnly,
		},
		{
			name: "all high",
			fields: []DetectedField{
				{FieldType: MRP, Distance: DistanceHigh},
				{FieldType: BatchNumber, Distance: DistanceHigh},
			},
			want: StrategyValuesOnly,
		},
		{
			name: "one low forces all fields",
			fields: []DetectedField{
				{FieldType: MRP, Distance: DistanceHigh},
				{FieldType: ManufacturingDate, Distance: DistanceLow},
				{FieldType: BatchNumber, Distance: DistanceHigh},
			},
			want: StrategyAllFieldsAndValues,
		},
		{
			name: "standalone does not force all fields",
			fields: []DetectedField{
				{FieldType: PackSize, Distance: DistanceStandalone},
				{FieldType: ExpiryDate, Distance: DistanceHigh},
			},
			want: StrategyValuesOnly,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveStrategy(tt.fields))
		})
	}
}

func TestMaskText(t *testing.T) {
	mrp := DetectedField{
		FieldType:    MRP,
		CompleteText: "MRP ₹95.00",
		FieldPart:    "MRP",
		ValuePart:    "₹95.00",
	}
	pack := DetectedField{
		FieldType:    PackSize,
		CompleteText: "Net Qty 10 tablets",
		FieldPart:    "Net Qty",
		ValuePart:    "10 tablets",
	}
	taxes := DetectedField{
		FieldType:    InclusiveOfTaxes,
		CompleteText: "Inclusive of all taxes",
	}

	tests := []struct {
		name    string
		field   DetectedField
		unified Strategy
		want    string
	}{
		{"regular field all-fields", mrp, StrategyAllFieldsAndValues, "MRP ₹95.00"},
		{"regular field values-only", mrp, StrategyValuesOnly, "₹95.00"},
		{"pack size all-fields masks label too", pack, StrategyAllFieldsAndValues, "Net Qty 10 tablets"},
		{"pack size values-only still masked", pack, StrategyValuesOnly, "10 tablets"},
		{"taxes marker all-fields", taxes, StrategyAllFieldsAndValues, "Inclusive of all taxes"},
		{"taxes marker excluded under values-only", taxes, StrategyValuesOnly, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskText(tt.field, tt.unified))
		})
	}
}

func TestMaskText_StandalonePackSize(t *testing.T) {
	f := DetectedField{
		FieldType:    PackSize,
		CompleteText: "per 10 tablets",
		ValuePart:    "per 10 tablets",
		Distance:     DistanceStandalone,
	}
	assert.Equal(t, "per 10 tablets", MaskText(f, StrategyValuesOnly))
	assert.Equal(t, "per 10 tablets", MaskText(f, StrategyAllFieldsAndValues))
}
