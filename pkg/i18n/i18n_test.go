package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	s, err := NewI18nSupport("en")
	require.NoError(t, err)

	assert.Equal(t, "OTP must be 6 digits", s.T("en", "otp.invalid", nil))
	assert.Equal(t, "Le code doit contenir 6 chiffres", s.T("fr", "otp.invalid", nil))
	assert.Equal(t, "No alerts found in Edinburgh", s.TWithDefaultLang("feed.empty_city", map[string]interface{}{"City": "Edinburgh"}))
	// unknown keys come back verbatim
	assert.Equal(t, "no.such.key", s.T("en", "no.such.key", nil))
	assert.True(t, s.Has("guard.login_required"))
	assert.False(t, s.Has("no.such.key"))
}

func TestMatch(t *testing.T) {
	s, err := NewI18nSupport("en")
	require.NoError(t, err)

	assert.Equal(t, "fr", s.Match("fr-CA,fr;q=0.9,en;q=0.5"))
	assert.Equal(t, "en", s.Match("de-DE"))
	assert.Equal(t, "en", s.Match(""))
	assert.Equal(t, "fr", s.Match("", "fr"))
}
