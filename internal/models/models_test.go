package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertAcceptsBothIDs(t *testing.T) {
	var a, b Alert
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"m1","incidentType":"Scam","latitude":55.9,"longitude":-3.1}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"id":"p2","status":"pending"}`), &b))
	assert.Equal(t, "m1", a.ID)
	assert.True(t, a.HasCoords())
	assert.True(t, a.Visible())
	assert.Equal(t, "p2", b.ID)
	assert.False(t, b.Visible())
	assert.False(t, b.HasCoords())
}

func TestActionResponseApply(t *testing.T) {
	a := Alert{ID: "a1", Likes: 3, LikedBy: []string{"x"}, FlaggedBy: []string{"u"}}

	likes, liked := 4, true
	(&ActionResponse{Likes: &likes, Liked: &liked}).Apply(&a, "u")
	assert.Equal(t, 4, a.Likes)
	assert.True(t, a.LikedByUser("u"))
	assert.True(t, a.LikedByUser("x"))

	flagged := false
	(&ActionResponse{Flagged: &flagged}).Apply(&a, "u")
	assert.False(t, a.FlaggedByUser("u"))
	// counts are not recomputed locally
	assert.Equal(t, 4, a.Likes)

	whole := &Alert{Likes: 10, Description: "replaced"}
	(&ActionResponse{Alert: whole}).Apply(&a, "u")
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, 10, a.Likes)
	assert.Equal(t, "replaced", a.Description)
}

func TestFilterNormalize(t *testing.T) {
	f := FilterState{SortBy: "bogus", IncidentTypes: []string{"Scam", "Scam", "Aliens"}, TimeRangeDays: -1, DistanceKm: 5}.Normalize()
	assert.Equal(t, SortRelevant, f.SortBy)
	assert.Equal(t, []string{"Scam"}, f.IncidentTypes)
	assert.Equal(t, 0, f.TimeRangeDays)
	assert.Equal(t, 5, f.DistanceKm)

	assert.Equal(t, "asc", SortOldest.SortOrder())
	assert.Equal(t, "desc", SortNewest.SortOrder())
	assert.Equal(t, "desc", SortReported.SortOrder())
}

func TestQualityLabel(t *testing.T) {
	assert.Equal(t, "high", QualityLabel(20))
	assert.Equal(t, "moderate", QualityLabel(100))
	assert.Equal(t, "moderate", QualityLabel(499))
	assert.Equal(t, "low", QualityLabel(500))
}

func TestUserDisplayName(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","email":"a@b.co"}`), &u))
	assert.Equal(t, "1", u.ID)
	assert.Equal(t, "a@b.co", u.DisplayName())
}
