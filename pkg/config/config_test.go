package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"DEFAULT_CITY", "DEFAULT_CENTER_LAT", "DEFAULT_CENTER_LON", "OTP_COOLDOWN_SECONDS", "NOTIFICATION_REFRESH_SECONDS", "STORAGE_DRIVER"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, "Edinburgh", cfg.DefaultCity)
	assert.InDelta(t, 55.9533, cfg.DefaultCenterLat, 1e-9)
	assert.InDelta(t, -3.1883, cfg.DefaultCenterLon, 1e-9)
	assert.Equal(t, 60*time.Second, cfg.OTPCooldown)
	assert.Equal(t, 30*time.Second, cfg.NotificationRefresh)
	assert.Equal(t, "memory", cfg.StorageDriver)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DEFAULT_CITY", "Glasgow")
	t.Setenv("DEFAULT_CENTER_LAT", "55.8642")
	t.Setenv("OTP_COOLDOWN_SECONDS", "5")
	t.Setenv("FEED_PAGE_SIZE", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, "Glasgow", cfg.DefaultCity)
	assert.InDelta(t, 55.8642, cfg.DefaultCenterLat, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.OTPCooldown)
	assert.Equal(t, 20, cfg.FeedPageSize)
}
