package feed

import (
	geojson "github.com/paulmach/go.geojson"
)

// GeoJSON exports the visible alerts that have coordinates as a FeatureCollection.
func (c *Controller) GeoJSON() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fc := geojson.NewFeatureCollection()
	for i := range c.visible {
		a := &c.visible[i]
		if !a.HasCoords() {
			continue
		}
		f := geojson.NewPointFeature([]float64{*a.Longitude, *a.Latitude})
		f.ID = a.ID
		f.SetProperty("incidentType", a.DisplayType())
		f.SetProperty("location", a.Location)
		f.SetProperty("description", a.Description)
		f.SetProperty("likes", a.Likes)
		f.SetProperty("createdAt", a.CreatedAt)
		fc.AddFeature(f)
	}
	return fc.MarshalJSON()
}
