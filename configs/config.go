package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultBusinessTimezone = "America/Bogota"

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Facebook struct {
	GraphURL   string
	VideoURL   string
	APIVersion string
}

type LinkedIn struct {
	APIURL       string
	Version      string
	TokenURL     string // overrides the oauth2 endpoint when set
	ClientID     string
	ClientSecret string
}

type Google struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Scheduler struct {
	Interval     time.Duration
	Concurrency  int
	TickTimeout  time.Duration
	LeaseEnabled bool
}

type Email struct {
	Mode     string // "log" or "smtp"
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

type Config struct {
	Port             string
	PostgresURI      string
	RedisURI         string
	FrontendURL      string
	SecretKey        string
	CookieName       string
	BusinessTimezone string
	PlatformTimeout  time.Duration
	StorageTimeout   time.Duration
	PublishLease     time.Duration
	PlatformRate     float64
	LogLevel         string
	LogFormat        string
	R2               R2
	Facebook         Facebook
	LinkedIn         LinkedIn
	Google           Google
	Scheduler        Scheduler
	Email            Email
}

func LoadConfig() *Config {
	return &Config{
		Port:             getEnv("PORT", "3000"),
		PostgresURI:      getEnv("POSTGRES_URI", ""),
		RedisURI:         getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:        getEnv("SECRET_KEY", ""),
		CookieName:       getEnv("COOKIE_NAME", "brandpost_session"),
		BusinessTimezone: getEnv("BUSINESS_TIMEZONE", defaultBusinessTimezone),
		PlatformTimeout:  getEnvDuration("PLATFORM_TIMEOUT", 60*time.Second),
		StorageTimeout:   getEnvDuration("STORAGE_TIMEOUT", 30*time.Second),
		PublishLease:     getEnvDuration("PUBLISH_LEASE", 10*time.Minute),
		PlatformRate:     getEnvFloat("PLATFORM_RATE_PER_SECOND", 5),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  strings.TrimRight(getEnv("R2_PUBLIC_URL", ""), "/"),
		},
		Facebook: Facebook{
			GraphURL:   getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com"),
			VideoURL:   getEnv("FACEBOOK_VIDEO_URL", "https://graph-video.facebook.com"),
			APIVersion: getEnv("FACEBOOK_API_VERSION", "v21.0"),
		},
		LinkedIn: LinkedIn{
			APIURL:       getEnv("LINKEDIN_API_URL", "https://api.linkedin.com"),
			Version:      getEnv("LINKEDIN_VERSION", "202401"),
			TokenURL:     getEnv("LINKEDIN_TOKEN_URL", ""),
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
		},
		Google: Google{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:3000/login/callback"),
		},
		Scheduler: Scheduler{
			Interval:     getEnvDuration("SCHEDULER_INTERVAL", time.Minute),
			Concurrency:  getEnvInt("SCHEDULER_CONCURRENCY", 1),
			TickTimeout:  getEnvDuration("SCHEDULER_TICK_TIMEOUT", 50*time.Second),
			LeaseEnabled: getEnv("SCHEDULER_LEASE_ENABLED", "false") == "true",
		},
		Email: Email{
			Mode:     getEnv("EMAIL_MODE", "log"),
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "noreply@example.com"),
			FromName: getEnv("SMTP_FROM_NAME", "Brandpost"),
		},
	}
}

// Location returns the business timezone. Unknown zone names fall back to a
// fixed UTC-5 offset so due-time comparisons never drift to server local time.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		slog.Warn("unknown business timezone, using fixed UTC-5", "timezone", c.BusinessTimezone, "error", err)
		return time.FixedZone("UTC-5", -5*60*60)
	}
	return loc
}

func (c *Config) StorageConfigured() bool {
	return c.R2.AccountID != "" && c.R2.AccessKey != "" && c.R2.SecretKey != "" && c.R2.BucketName != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
