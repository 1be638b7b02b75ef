package feed

import (
	"sort"
	"time"

	"tourprism/internal/geo"
	"tourprism/internal/models"
)

const recentWindow = 24 * time.Hour

// Filter re-applies the filters on the client side, in order: status, time range,
// distance, incident types. basis is the point distances are measured from.
func Filter(alerts []models.Alert, f models.FilterState, basis models.Coords, now time.Time) []models.Alert {
	out := make([]models.Alert, 0, len(alerts))
	var cutoff time.Time
	if f.TimeRangeDays > 0 {
		cutoff = now.AddDate(0, 0, -f.TimeRangeDays)
	}
	types := make(map[string]bool, len(f.IncidentTypes))
	for _, t := range f.IncidentTypes {
		types[t] = true
	}

	for i := range alerts {
		a := &alerts[i]
		if !a.Visible() {
			continue
		}
		if f.TimeRangeDays > 0 && a.CreatedAt.Before(cutoff) {
			continue
		}
		if f.DistanceKm > 0 {
			if !a.HasCoords() {
				continue
			}
			d := geo.DistanceKm(basis, models.Coords{Latitude: *a.Latitude, Longitude: *a.Longitude})
			if d > float64(f.DistanceKm) {
				continue
			}
		}
		if len(types) > 0 && !types[a.IncidentType] {
			continue
		}
		out = append(out, *a)
	}
	return out
}

// Sort orders alerts in place; the order is stable for ties.
func Sort(alerts []models.Alert, by models.SortBy, now time.Time) {
	var less func(a, b *models.Alert) bool
	switch by {
	case models.SortReported:
		less = func(a, b *models.Alert) bool { return len(a.FlaggedBy) > len(b.FlaggedBy) }
	case models.SortNewest:
		since := now.Add(-recentWindow)
		less = func(a, b *models.Alert) bool {
			ar, br := a.CreatedAt.After(since), b.CreatedAt.After(since)
			if ar != br {
				return ar
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
	case models.SortOldest:
		less = func(a, b *models.Alert) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		less = func(a, b *models.Alert) bool { return a.Likes > b.Likes }
	}
	sort.SliceStable(alerts, func(i, j int) bool { return less(&alerts[i], &alerts[j]) })
}
