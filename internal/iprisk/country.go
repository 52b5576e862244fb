package iprisk

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var regionNames = display.English.Regions()

// CountryName returns the English name for an ISO 3166-1 alpha-2 code, or
// "" when the code is not a known region.
func CountryName(code string) string {
	code = strings.TrimSpace(code)
	if len(code) != 2 {
		return ""
	}
	region, err := language.ParseRegion(code)
	if err != nil || !region.IsCountry() {
		return ""
	}
	return regionNames.Name(region)
}
