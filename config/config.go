package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Transfer TransferConfig
	OAuth    OAuthConfig
	Redis    RedisConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// TransferConfig tunes the relay pipeline and job retention.
type TransferConfig struct {
	MaxAttempts        int
	BackoffBaseMs      int
	BackoffCapMs       int
	ProbeTimeoutSec    int
	IdleTimeoutSec     int
	RetentionCap       int
	DefaultContentType string
}

// BackoffBase returns the first retry delay.
func (c TransferConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// BackoffCap returns the maximum retry delay.
func (c TransferConfig) BackoffCap() time.Duration {
	return time.Duration(c.BackoffCapMs) * time.Millisecond
}

// ProbeTimeout bounds the content-length probe.
func (c TransferConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec) * time.Second
}

// IdleTimeout bounds source-read inactivity during a transfer.
func (c TransferConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// OAuthConfig holds client credentials for the destination's token
// endpoint and the one-time browser consent flow.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

// RedisConfig holds optional Redis settings for the job store backend.
// Empty Addr keeps jobs in process memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 0), // 0: synchronous transfers may outlive any fixed write timeout
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Transfer: TransferConfig{
			MaxAttempts:        getEnvInt("TRANSFER_MAX_ATTEMPTS", 3),
			BackoffBaseMs:      getEnvInt("TRANSFER_BACKOFF_BASE_MS", 1000),
			BackoffCapMs:       getEnvInt("TRANSFER_BACKOFF_CAP_MS", 10000),
			ProbeTimeoutSec:    getEnvInt("TRANSFER_PROBE_TIMEOUT_SEC", 15),
			IdleTimeoutSec:     getEnvInt("TRANSFER_IDLE_TIMEOUT_SEC", 60),
			RetentionCap:       getEnvInt("JOB_RETENTION_CAP", 100),
			DefaultContentType: getEnv("TRANSFER_DEFAULT_CONTENT_TYPE", "video/webm"),
		},
		OAuth: OAuthConfig{
			ClientID:     getEnv("OAUTH_CLIENT_ID", ""),
			ClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
			RefreshToken: getEnv("OAUTH_REFRESH_TOKEN", ""),
			RedirectURL:  getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/auth/callback"),
			AuthURL:      getEnv("OAUTH_AUTH_URL", "https://accounts.google.com/o/oauth2/auth"),
			TokenURL:     getEnv("OAUTH_TOKEN_URL", "https://oauth2.googleapis.com/token"),
			Scopes:       splitTrim(getEnv("OAUTH_SCOPES", "https://www.googleapis.com/auth/youtube.upload"), ","),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
