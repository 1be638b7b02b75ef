package models

// Coords 经纬度（度）
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationContext scopes the feed: a city label, or coordinates which take precedence.
type LocationContext struct {
	Label    string   `json:"label"`
	City     string   `json:"city,omitempty"`
	Coords   *Coords  `json:"coords,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// CityContext is a label-only context; the label doubles as the city query.
func CityContext(city string) LocationContext {
	return LocationContext{Label: city, City: city}
}

func (l LocationContext) HasCoords() bool { return l.Coords != nil }

// QualityLabel 精度分级：<100m high，<500m moderate，其余 low
func QualityLabel(accuracyMeters float64) string {
	switch {
	case accuracyMeters < 100:
		return "high"
	case accuracyMeters < 500:
		return "moderate"
	default:
		return "low"
	}
}

// LowAccuracyThreshold is the accuracy in meters above which the user is asked to confirm.
const LowAccuracyThreshold = 500.0
