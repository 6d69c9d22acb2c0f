package reforms

import "strings"

// Top-level division tables: US states and territories plus Canadian
// provinces and territories. Places reference divisions by code.

var divisionCodeToName = map[string]string{
	// US states
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "FL": "Florida", "GA": "Georgia",
	"HI": "Hawaii", "ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi", "MO": "Missouri",
	"MT": "Montana", "NE": "Nebraska", "NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey",
	"NM": "New Mexico", "NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont",
	"VA": "Virginia", "WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
	"DC": "District of Columbia",
	// US territories
	"PR": "Puerto Rico", "VI": "US Virgin Islands", "GU": "Guam",
	"AS": "American Samoa", "MP": "Northern Mariana Islands",
	// Canadian provinces and territories
	"AB": "Alberta", "BC": "British Columbia", "MB": "Manitoba", "NB": "New Brunswick",
	"NL": "Newfoundland and Labrador", "NS": "Nova Scotia", "NT": "Northwest Territories",
	"NU": "Nunavut", "ON": "Ontario", "PE": "Prince Edward Island",
	"QC": "Quebec", "SK": "Saskatchewan", "YT": "Yukon",
}

var canadianDivisions = map[string]struct{}{
	"AB": {}, "BC": {}, "MB": {}, "NB": {}, "NL": {}, "NS": {}, "NT": {},
	"NU": {}, "ON": {}, "PE": {}, "QC": {}, "SK": {}, "YT": {},
}

var divisionNameToCode = func() map[string]string {
	m := make(map[string]string, len(divisionCodeToName))
	for code, name := range divisionCodeToName {
		m[strings.ToLower(name)] = code
	}
	return m
}()

// DivisionName returns the full division name for a code.
func DivisionName(code string) (string, bool) {
	name, ok := divisionCodeToName[strings.ToUpper(code)]
	return name, ok
}

// DivisionCountry returns "US" or "CA" for a division code.
func DivisionCountry(code string) (string, bool) {
	c := strings.ToUpper(code)
	if _, ok := canadianDivisions[c]; ok {
		return "CA", true
	}
	if _, ok := divisionCodeToName[c]; ok {
		return "US", true
	}
	return "", false
}

// NormalizeDivision resolves caller input (a two-letter code in any casing,
// or a full division name) to a canonical division code. The second return
// is false for anything unrecognized.
func NormalizeDivision(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if len(s) == 2 {
		code := strings.ToUpper(s)
		if _, ok := divisionCodeToName[code]; ok {
			return code, true
		}
	}
	if code, ok := divisionNameToCode[strings.ToLower(s)]; ok {
		return code, true
	}
	return "", false
}

// AllDivisions materializes the code table as model rows for seeding.
func AllDivisions() []TopLevelDivision {
	out := make([]TopLevelDivision, 0, len(divisionCodeToName))
	for code, name := range divisionCodeToName {
		country, _ := DivisionCountry(code)
		region := ""
		if r, ok := regionForDivision(code); ok {
			region = r
		}
		out = append(out, TopLevelDivision{
			Code:    code,
			Name:    name,
			Country: country,
			Region:  region,
		})
	}
	return out
}
