package postalert

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourprism/internal/api"
	"tourprism/internal/geo"
	"tourprism/internal/models"
	"tourprism/pkg/errors"
)

type fakePoster struct {
	got []api.NewAlert
	err error
}

func (p *fakePoster) CreateAlert(_ context.Context, a api.NewAlert) (*models.Alert, error) {
	p.got = append(p.got, a)
	if p.err != nil {
		return nil, p.err
	}
	return &models.Alert{ID: "new", Status: models.StatusPending}, nil
}

type fakeSession struct {
	expired bool
	cleared bool
}

func (s *fakeSession) Expired(context.Context) bool { return s.expired }

func (s *fakeSession) Clear(context.Context) error {
	s.cleared = true
	s.expired = true
	return nil
}

type placeFunc func(string) (*geo.Place, error)

func (f placeFunc) Details(_ context.Context, id string) (*geo.Place, error) { return f(id) }

func royalMile(string) (*geo.Place, error) {
	return &geo.Place{Address: "Royal Mile, Edinburgh", City: "Edinburgh", Coords: models.Coords{Latitude: 55.95, Longitude: -3.19}}, nil
}

func TestUnauthenticatedIsBlocked(t *testing.T) {
	p := &fakePoster{}
	c := NewController(p, placeFunc(royalMile), &fakeSession{expired: true})

	assert.ErrorIs(t, c.Mount(context.Background()), ErrLoginRequired)
	assert.ErrorIs(t, c.Submit(context.Background()), ErrLoginRequired)
	assert.Empty(t, p.got)
}

func TestValidation(t *testing.T) {
	p := &fakePoster{}
	c := NewController(p, placeFunc(royalMile), &fakeSession{})
	ctx := context.Background()

	err := c.Submit(ctx)
	fields := errors.GetFields(err)
	assert.Equal(t, "alert.type_required", fields["incidentType"])
	assert.Equal(t, "alert.location_required", fields["location"])
	assert.Equal(t, "alert.description_required", fields["description"])

	require.NoError(t, c.Update(func(f *Form) error {
		f.SetIncidentType(models.IncidentOther)
		f.SetLocationText("somewhere typed")
		f.SetDescription("   ")
		return nil
	}))
	fields = errors.GetFields(c.Submit(ctx))
	assert.Equal(t, "alert.other_required", fields["otherType"])
	assert.Equal(t, "alert.location_required", fields["location"], "text without coordinates is not enough")
	assert.Empty(t, p.got)
}

func TestTruncationAndMediaCap(t *testing.T) {
	var f Form
	f.SetOtherType(strings.Repeat("é", 200))
	f.SetDescription(strings.Repeat("x", 600))
	assert.Equal(t, MaxOtherType, len([]rune(f.OtherType)))
	assert.Len(t, f.Description, MaxDescription)

	up := api.Upload{Filename: "a.jpg"}
	require.NoError(t, f.AddMedia(up, up, up))
	err := f.AddMedia(up, up, up)
	assert.Equal(t, "alert.media_limit", errors.GetFields(err)["media"])
	assert.Len(t, f.Media, 3)
	require.NoError(t, f.AddMedia(up, up))
	f.RemoveMedia(0)
	assert.Len(t, f.Media, 4)
}

func TestSubmitAndPostAnother(t *testing.T) {
	p := &fakePoster{}
	c := NewController(p, placeFunc(royalMile), &fakeSession{})
	ctx := context.Background()

	require.NoError(t, c.PickPlace(ctx, "p1"))
	require.NoError(t, c.Update(func(f *Form) error {
		f.SetIncidentType("Scam")
		f.SetDescription("Fake ticket sellers near the castle")
		return f.AddMedia(api.Upload{Filename: "a.jpg", Data: []byte("x")})
	}))
	require.NoError(t, c.Submit(ctx))

	require.Len(t, p.got, 1)
	assert.Equal(t, "Edinburgh", p.got[0].City)
	assert.InDelta(t, 55.95, p.got[0].Latitude, 1e-9)
	assert.Empty(t, p.got[0].OtherType)
	assert.Len(t, p.got[0].Media, 1)

	done, created := c.Submitted()
	assert.True(t, done)
	assert.Equal(t, "new", created.ID)

	c.PostAnother()
	done, _ = c.Submitted()
	assert.False(t, done)
	assert.Equal(t, Form{}, c.Form())
}

func TestInvalidTokenRejectionRedirects(t *testing.T) {
	p := &fakePoster{err: errors.WithCode(400, "Invalid token").WithMsgID(api.KnownMessageID("Invalid token"))}
	s := &fakeSession{}
	c := NewController(p, placeFunc(royalMile), s)
	ctx := context.Background()

	require.NoError(t, c.PickPlace(ctx, "p1"))
	require.NoError(t, c.Update(func(f *Form) error {
		f.SetIncidentType("Theft")
		f.SetDescription("Bag snatched")
		return nil
	}))
	assert.ErrorIs(t, c.Submit(ctx), ErrLoginRequired)
	assert.True(t, s.cleared)
}

func TestSubmitFailureMessage(t *testing.T) {
	p := &fakePoster{err: errors.WithCode(500, "")}
	c := NewController(p, placeFunc(royalMile), &fakeSession{})
	ctx := context.Background()
	require.NoError(t, c.PickPlace(ctx, "p1"))
	require.NoError(t, c.Update(func(f *Form) error {
		f.SetIncidentType("Weather")
		f.SetDescription("Flooding")
		return nil
	}))
	err := c.Submit(ctx)
	assert.Equal(t, "alert.submit_failed", errors.GetMsgID(err))
	done, _ := c.Submitted()
	assert.False(t, done)
}
