package infra

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	StorageDriverS3         = "s3"
	StorageDriverFilesystem = "filesystem"

	GeminiTransportREST = "rest"
	GeminiTransportSDK  = "sdk"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string

	GeminiModel     string
	GeminiBaseURL   string
	GeminiTransport string
	GeminiTimeout   time.Duration

	StorageDriver       string
	StorageEndpoint     string
	StorageRegion       string
	StorageAccessKey    string
	StorageSecretKey    string
	StorageUseSSL       bool
	StoragePath         string
	StorageBaseURL      string
	Bucket              string
	SignedURLBuckets    []string
	SignedURLTTL        time.Duration
	SessionTTL          time.Duration
	SessionMax          int
	SessionCookieSecure bool
	DatabaseURL         string
	AMQPURL             string
	AMQPExchange        string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	driver := strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverFilesystem))
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash-image-preview"),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTransport: strings.ToLower(getEnv("GEMINI_TRANSPORT", GeminiTransportREST)),
		GeminiTimeout:   time.Second * time.Duration(getEnvInt("GEMINI_TIMEOUT_SECONDS", 120)),

		StorageDriver:       driver,
		StorageEndpoint:     getEnv("STORAGE_ENDPOINT", "storage.googleapis.com"),
		StorageRegion:       getEnv("STORAGE_REGION", "auto"),
		StorageAccessKey:    os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:    os.Getenv("STORAGE_SECRET_KEY"),
		StorageUseSSL:       getEnvBool("STORAGE_USE_SSL", true),
		StoragePath:         getEnv("STORAGE_PATH", "./data/objects"),
		StorageBaseURL:      os.Getenv("STORAGE_PUBLIC_BASE_URL"),
		Bucket:              getEnv("GCS_BUCKET", "make-my-outfit-outputs"),
		SignedURLTTL:        time.Minute * time.Duration(getEnvInt("SIGNED_URL_TTL_MINUTES", 15)),
		SessionTTL:          time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)),
		SessionMax:          getEnvInt("SESSION_MAX", 1000),
		SessionCookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		AMQPURL:             os.Getenv("AMQP_URL"),
		AMQPExchange:        getEnv("AMQP_EXCHANGE", "outfits"),
	}

	if cfg.StorageBaseURL == "" {
		if driver == StorageDriverFilesystem {
			cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", port)
		} else {
			cfg.StorageBaseURL = "https://" + cfg.StorageEndpoint
		}
	}
	cfg.StorageBaseURL = strings.TrimRight(cfg.StorageBaseURL, "/")
	if _, err := url.Parse(cfg.StorageBaseURL); err != nil {
		return nil, fmt.Errorf("STORAGE_PUBLIC_BASE_URL is invalid: %w", err)
	}

	cfg.SignedURLBuckets = mergeBuckets(cfg.Bucket, splitList(os.Getenv("SIGNED_URL_BUCKETS")))

	switch cfg.StorageDriver {
	case StorageDriverFilesystem:
	case StorageDriverS3:
		if cfg.StorageAccessKey == "" || cfg.StorageSecretKey == "" {
			return nil, fmt.Errorf("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required for the s3 storage driver")
		}
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER %q is not supported", cfg.StorageDriver)
	}

	switch cfg.GeminiTransport {
	case GeminiTransportREST, GeminiTransportSDK:
	default:
		return nil, fmt.Errorf("GEMINI_TRANSPORT %q is not supported", cfg.GeminiTransport)
	}

	if cfg.SignedURLTTL <= 0 || cfg.SignedURLTTL > 7*24*time.Hour {
		return nil, fmt.Errorf("SIGNED_URL_TTL_MINUTES must be between 1 and 10080")
	}

	return cfg, nil
}

// SignedUploadsEnabled reports whether the storage driver can presign direct
// uploads. The filesystem driver cannot.
func (c *Config) SignedUploadsEnabled() bool {
	return c.StorageDriver == StorageDriverS3
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// mergeBuckets always allows the managed bucket and returns a sorted,
// de-duplicated list.
func mergeBuckets(managed string, extra []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, b := range append([]string{managed}, extra...) {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}
