package catalog

import (
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Reasons attached to excluded catalog elements.
const (
	ReasonEmptyID        = "empty id"
	ReasonMalformedID    = "id is not a lowercase slug"
	ReasonDuplicateID    = "duplicate id within parent"
	ReasonOutsideRegion  = "state code outside target region"
	ReasonSuffixMismatch = "id does not carry the region suffix"
)

// IsSlug reports whether s is a non-empty lowercase hyphenated slug and can be
// used verbatim as a URL path segment.
func IsSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// CheckID returns an empty string when id is usable as a path segment, or the
// reason it is not.
func CheckID(id string) string {
	switch {
	case strings.TrimSpace(id) == "":
		return ReasonEmptyID
	case !IsSlug(id):
		return ReasonMalformedID
	default:
		return ""
	}
}

// Region is the service region public output is restricted to.
type Region struct {
	Code   string
	Suffix string
}

// NewRegion normalizes the state code and derives the slug suffix ("-oh")
// when suffix is empty.
func NewRegion(code, suffix string) Region {
	code = strings.ToUpper(strings.TrimSpace(code))
	suffix = strings.ToLower(strings.TrimSpace(suffix))
	if suffix == "" && code != "" {
		suffix = "-" + strings.ToLower(code)
	}
	return Region{Code: code, Suffix: suffix}
}

// Check returns an empty string when loc is eligible for public output in the
// region, otherwise the exclusion reason.
func (r Region) Check(loc Location) string {
	if reason := CheckID(loc.ID); reason != "" {
		return reason
	}
	if strings.ToUpper(strings.TrimSpace(loc.StateCode)) != r.Code {
		return ReasonOutsideRegion
	}
	if r.Suffix != "" && !strings.HasSuffix(loc.ID, r.Suffix) {
		return ReasonSuffixMismatch
	}
	return ""
}

// Eligible reports whether loc passes Check.
func (r Region) Eligible(loc Location) bool {
	return r.Check(loc) == ""
}

// HasEmptyItemID reports whether any item of the service type has a blank id.
// One such item disqualifies the whole type from detail pages.
func (t ServiceType) HasEmptyItemID() bool {
	for _, item := range t.Items {
		if strings.TrimSpace(item.ID) == "" {
			return true
		}
	}
	return false
}
