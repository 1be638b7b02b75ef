package config

import (
	"log"
	"os"
	"time"

	"tourprism/pkg/logger"
	"tourprism/pkg/util"
)

// Default centre used by the distance filter when no coordinates are active (Edinburgh).
const (
	DefaultCity      = "Edinburgh"
	DefaultCenterLat = 55.9533
	DefaultCenterLon = -3.1883
)

// RedisConfig 共享存储连接参数
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

// Config 全局配置
type Config struct {
	Addr          string `env:"ADDR"`
	Mode          string `env:"MODE"`
	BackendURL    string `env:"BACKEND_URL"`
	PublicURL     string `env:"PUBLIC_URL"`
	SessionSecret string `env:"SESSION_SECRET"`

	DefaultCity      string  `env:"DEFAULT_CITY"`
	DefaultCenterLat float64 `env:"DEFAULT_CENTER_LAT"`
	DefaultCenterLon float64 `env:"DEFAULT_CENTER_LON"`
	FeedPageSize     int     `env:"FEED_PAGE_SIZE"`

	NotificationRefresh time.Duration `env:"NOTIFICATION_REFRESH_SECONDS"`
	OTPCooldown         time.Duration `env:"OTP_COOLDOWN_SECONDS"`

	GeocoderURL  string `env:"GEOCODER_URL"`
	PlacesURL    string `env:"PLACES_URL"`
	PlacesAPIKey string `env:"PLACES_API_KEY"`
	GeoIPDB      string `env:"GEOIP_DB"`

	StorageDriver string `env:"STORAGE_DRIVER"`
	StorageDSN    string `env:"STORAGE_DSN"`
	Redis         RedisConfig

	RateLimit       string `env:"RATE_LIMIT"`
	LanguageDefault string `env:"LANGUAGE_DEFAULT"`

	Log logger.LogConfig
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = FromEnv()
	return nil
}

// FromEnv reads every key from the process environment, applying defaults.
func FromEnv() *Config {
	return &Config{
		Addr:             util.GetEnvDefault("ADDR", ":8080"),
		Mode:             util.GetEnvDefault("MODE", "debug"),
		BackendURL:       util.GetEnvDefault("BACKEND_URL", "http://localhost:5000"),
		PublicURL:        util.GetEnvDefault("PUBLIC_URL", "http://localhost:8080"),
		SessionSecret:    util.GetEnvDefault("SESSION_SECRET", "tourprism-dev-secret"),
		DefaultCity:      util.GetEnvDefault("DEFAULT_CITY", DefaultCity),
		DefaultCenterLat: util.GetFloatEnvDefault("DEFAULT_CENTER_LAT", DefaultCenterLat),
		DefaultCenterLon: util.GetFloatEnvDefault("DEFAULT_CENTER_LON", DefaultCenterLon),
		FeedPageSize:     int(util.GetIntEnvDefault("FEED_PAGE_SIZE", 20)),

		NotificationRefresh: time.Duration(util.GetIntEnvDefault("NOTIFICATION_REFRESH_SECONDS", 30)) * time.Second,
		OTPCooldown:         time.Duration(util.GetIntEnvDefault("OTP_COOLDOWN_SECONDS", 60)) * time.Second,

		GeocoderURL:  util.GetEnvDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		PlacesURL:    util.GetEnvDefault("PLACES_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesAPIKey: util.GetEnv("PLACES_API_KEY"),
		GeoIPDB:      util.GetEnv("GEOIP_DB"),

		StorageDriver: util.GetEnvDefault("STORAGE_DRIVER", "memory"),
		StorageDSN:    util.GetEnv("STORAGE_DSN"),
		Redis: RedisConfig{
			Addr:     util.GetEnvDefault("REDIS_ADDR", "localhost:6379"),
			Password: util.GetEnv("REDIS_PASSWORD"),
			DB:       int(util.GetIntEnv("REDIS_DB")),
		},

		RateLimit:       util.GetEnvDefault("RATE_LIMIT", "20-M"),
		LanguageDefault: util.GetEnvDefault("LANGUAGE_DEFAULT", "en"),

		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
	}
}
