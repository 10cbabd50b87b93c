package fields

import "regexp"

// LabelVariants enumerates the English and Hindi label spellings matched for
// each field type. The lists drive both the model prompt and the local
// fallback matcher, so keep them in sync with the prompt wording.
var LabelVariants = map[Type][]string{
	ManufacturingDate: {
		"MFG", "MFG.", "MFG.Dt.", "MFG Date", "Mfg Date", "Mfd.", "Mfd",
		"Manufacturing Date", "Date of Manufacture", "Mfg. Dt.",
		"निर्माण तिथि", "उत्पादन तिथि",
	},
	ExpiryDate: {
		"EXP", "EXP.", "EXP.Dt.", "Exp Date", "Expiry Date", "Expiry",
		"Use By", "Use Before", "Best Before", "Exp. Dt.",
		"समाप्ति तिथि", "उपयोग अवधि",
	},
	BatchNumber: {
		"Batch No.", "Batch No", "Batch", "B.No.", "B. No.", "Lot No.",
		"Lot No", "Lot",
		"बैच नं.", "बैच संख्या",
	},
	MRP: {
		"MRP", "M.R.P.", "M.R.P", "MRP.", "Max Retail Price",
		"Maximum Retail Price", "Retail Price", "Price",
		"अधिकतम खुदरा मूल्य", "मूल्य",
	},
	PackSize: {
		"Net Qty", "Net Qty.", "Net Quantity", "Net Wt.", "Net Weight",
		"Pack Size", "Contents", "Qty",
		"शुद्ध मात्रा", "मात्रा",
	},
	InclusiveOfTaxes: {
		"Incl. of all taxes", "Inclusive of all taxes", "Incl. of taxes",
		"Inclusive of taxes", "Incl of all taxes",
		"सभी करों सहित", "करों सहित",
	},
}

// packSizeValuePattern matches standalone pack-size values such as
// "per 10 tablets" or "200 ml" that appear without any field label.
var packSizeValuePattern = regexp.MustCompile(
	`(?i)(?:per\s+)?\d+(?:\.\d+)?\s*(?:tablets?|tabs?|capsules?|caps\b|strips?|sachets?|pcs\b|pieces?|units?|kg\b|gms?\b|gm\b|g\b|mg\b|ltr\b|ml\b|l\b|टैबलेट|गोलियां)`,
)

// MatchPackSizeValue reports whether text looks like a bare pack-size value
// and returns the matched fragment.
func MatchPackSizeValue(text string) (string, bool) {
	m := packSizeValuePattern.FindString(text)
	return m, m != ""
}
