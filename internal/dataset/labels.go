package dataset

// sourceLabels maps upstream donation source codes to human-readable labels
// for display fields.
var sourceLabels = map[string]string{
	"LSPSWP": "Lottery Play money",
	"LSPRDD": "Lottery Play money",
	"LSPLDD": "Lottery Play money",
	"LSPBBP": "Lottery Play money",
	"REGSOL": "Regular Giving (campaign solicited)",
	"REGOLD": "Regular Giving (legacy agreement)",
	"IMOGEN": "In Memory (general donation)",
	"IMOMTR": "Memory Tree",
	"LOTDON": "Lottery donation",
	"GDRTKT": "Grand Prize Draw ticket sales",
	"LOLSOL": "Lights of Love campaign",
	"CFADON": "Community fundraising donations",
	"TWIREG": "Twilight registration fee",
	"TWISPO": "Twilight sponsorship money",
	"APLSOL": "Appeal donations",
	"APLXMS": "Christmas Appeal donations",
}

// SourceLabel returns the display label for a source code. Unknown codes pass
// through unchanged.
func SourceLabel(code string) string {
	if label, ok := sourceLabels[code]; ok {
		return label
	}
	return code
}
