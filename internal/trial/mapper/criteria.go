package mapper

import "strings"

// exclusionMarker is the case-sensitive substring the registry uses to divide
// the single criteria blob. The split happens on the FIRST occurrence only; a
// blob containing the marker twice still produces exactly two segments.
const exclusionMarker = "Exclusion Criteria"

// inclusionLabel is stripped from the head of the inclusion segment when the
// registry included it.
const inclusionLabel = "Inclusion Criteria:"

// SplitCriteria divides one free-text eligibility blob into inclusion and
// exclusion segments. Absent blob yields both absent; a blob without the
// marker becomes inclusion text in full.
func SplitCriteria(blob string) (inclusion, exclusion *string) {
	if strings.TrimSpace(blob) == "" {
		return nil, nil
	}

	idx := strings.Index(blob, exclusionMarker)
	if idx < 0 {
		return nonEmpty(strings.TrimSpace(blob)), nil
	}

	left := strings.TrimSpace(blob[:idx])
	left = strings.TrimSpace(strings.TrimPrefix(left, inclusionLabel))
	right := strings.TrimSpace(blob[idx+len(exclusionMarker):])

	return nonEmpty(left), nonEmpty(right)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
