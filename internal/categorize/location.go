package categorize

import (
	"regexp"
	"strings"
)

var (
	locationCodePattern   = regexp.MustCompile(`\[([^\]]+)\]`)
	locationPrefixPattern = regexp.MustCompile(`^\s*\[[^\]]*\]\s*`)
	intersectionPattern   = regexp.MustCompile(`\s*\+\s*`)
	spaceRunPattern       = regexp.MustCompile(`\s{2,}`)
)

// LocationCode extracts the bracketed internal code, e.g. "REV 24865" from
// "[REV 24865] REVERE BEACH PKWY". It returns nil when no code is present.
func LocationCode(location string) *string {
	m := locationCodePattern.FindStringSubmatch(location)
	if m == nil {
		return nil
	}
	code := strings.TrimSpace(m[1])
	if code == "" {
		return nil
	}
	return &code
}

// StreetName strips the bracketed code and normalizes "A+B" intersections to "A + B".
// It returns nil when nothing remains.
func StreetName(location string) *string {
	street := locationPrefixPattern.ReplaceAllString(location, "")
	street = intersectionPattern.ReplaceAllString(street, " + ")
	street = spaceRunPattern.ReplaceAllString(street, " ")
	street = strings.TrimSpace(street)
	street = strings.Trim(street, "+ ")
	if street == "" {
		return nil
	}
	return &street
}
