package models

type SortBy string

const (
	SortRelevant SortBy = "relevant"
	SortReported SortBy = "reported"
	SortNewest   SortBy = "newest"
	SortOldest   SortBy = "oldest"
)

// ParseSortBy falls back to relevant for anything unknown.
func ParseSortBy(s string) SortBy {
	switch SortBy(s) {
	case SortReported, SortNewest, SortOldest:
		return SortBy(s)
	default:
		return SortRelevant
	}
}

// SortOrder is what the backend expects alongside sortBy.
func (s SortBy) SortOrder() string {
	if s == SortOldest {
		return "asc"
	}
	return "desc"
}

// FilterState lives only in the feed view; zero ranges mean unbounded.
type FilterState struct {
	SortBy        SortBy   `json:"sortBy"`
	IncidentTypes []string `json:"incidentTypes"`
	TimeRangeDays int      `json:"timeRange"`
	DistanceKm    int      `json:"distance"`
}

func DefaultFilters() FilterState {
	return FilterState{SortBy: SortRelevant}
}

// Normalize clamps negatives and drops incident types outside the vocabulary.
func (f FilterState) Normalize() FilterState {
	out := FilterState{SortBy: ParseSortBy(string(f.SortBy))}
	if f.TimeRangeDays > 0 {
		out.TimeRangeDays = f.TimeRangeDays
	}
	if f.DistanceKm > 0 {
		out.DistanceKm = f.DistanceKm
	}
	seen := make(map[string]bool, len(f.IncidentTypes))
	for _, t := range f.IncidentTypes {
		if seen[t] || !isIncidentType(t) {
			continue
		}
		seen[t] = true
		out.IncidentTypes = append(out.IncidentTypes, t)
	}
	return out
}

func isIncidentType(t string) bool {
	for _, v := range IncidentTypes {
		if v == t {
			return true
		}
	}
	return false
}
