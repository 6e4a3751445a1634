package postcode

// UK region groupings by postcode area, used for coarse regional filtering on
// the coverage map. Some areas legitimately sit in more than one group (S, SK,
// DN, SY span region boundaries); the first region in regionOrder wins so the
// mapping stays deterministic.
var regionGroups = map[string][]string{
	"London":             {"EC", "WC", "E", "N", "NW", "SE", "SW", "W"},
	"South East":         {"BN", "BR", "CR", "CT", "DA", "GU", "HP", "KT", "ME", "OX", "PO", "RG", "RH", "SL", "SM", "SO", "TN", "TW"},
	"South West":         {"BA", "BH", "BS", "EX", "GL", "PL", "SN", "SP", "TA", "TQ", "TR"},
	"East of England":    {"AL", "CB", "CM", "CO", "EN", "IP", "LU", "NR", "PE", "SG"},
	"West Midlands":      {"B", "CV", "DY", "HR", "ST", "SY", "TF", "WR", "WS", "WV"},
	"East Midlands":      {"DE", "DN", "LE", "LN", "NG", "NN", "SK", "S"},
	"North West":         {"BB", "BL", "CA", "CH", "CW", "FY", "LA", "L", "M", "OL", "PR", "WA", "WN"},
	"Yorkshire & Humber": {"BD", "HD", "HG", "HU", "HX", "LS", "WF", "YO"},
	"North East":         {"DH", "DL", "NE", "SR", "TS"},
	"Wales":              {"CF", "LD", "LL", "NP", "SA"},
	"Scotland":           {"AB", "DD", "DG", "EH", "FK", "G", "HS", "IV", "KA", "KW", "KY", "ML", "PA", "PH", "TD", "ZE"},
	"Northern Ireland":   {"BT"},
}

var regionOrder = []string{
	"London", "South East", "South West", "East of England", "West Midlands",
	"East Midlands", "North West", "Yorkshire & Humber", "North East",
	"Wales", "Scotland", "Northern Ireland",
}

var areaToRegion = func() map[string]string {
	m := make(map[string]string)
	for _, region := range regionOrder {
		for _, area := range regionGroups[region] {
			if _, seen := m[area]; !seen {
				m[area] = region
			}
		}
	}
	return m
}()

// Region maps a postcode area to its UK region, or "Unknown" for areas outside
// the grouping table.
func Region(area string) string {
	if r, ok := areaToRegion[area]; ok {
		return r
	}
	return "Unknown"
}

// Regions returns the region names in display order.
func Regions() []string {
	out := make([]string, len(regionOrder))
	copy(out, regionOrder)
	return out
}

// RegionAreas returns the postcode areas belonging to a region, or nil for an
// unknown region name.
func RegionAreas(region string) []string {
	areas, ok := regionGroups[region]
	if !ok {
		return nil
	}
	out := make([]string, len(areas))
	copy(out, areas)
	return out
}

// Hospice catchment outward codes, east and west of the coverage area.
var (
	catchmentEast = []string{"DA3", "DA11", "DA12", "DA13", "TN15"}
	catchmentWest = []string{
		"DA1", "DA2", "DA4", "DA5", "DA6", "DA7", "DA8", "DA9", "DA10",
		"DA14", "DA15", "DA16", "DA17", "DA18", "BR8",
	}
)

var outwardToCatchment = func() map[string]string {
	m := make(map[string]string)
	for _, o := range catchmentEast {
		m[o] = "East"
	}
	for _, o := range catchmentWest {
		m[o] = "West"
	}
	return m
}()

// Catchment classifies a canonical postcode against the hospice catchment
// area by its outward code: "East", "West", or "" when outside the catchment.
func Catchment(canonical string) string {
	return outwardToCatchment[Outward(canonical)]
}
