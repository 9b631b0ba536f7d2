package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"funnelboard/internal/models"
)

type Config struct {
	Port           string
	CRMBaseURL     string
	AdsBaseURL     string
	AdsAccessToken string
	CentersFile    string
	HTTPTimeout    time.Duration
	BatchTimeout   time.Duration
	CacheTTL       time.Duration
	LogLevel       slog.Level
}

func FromEnv() Config {
	lvl := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		lvl = slog.LevelDebug
	}
	return Config{
		Port:           envOr("PORT", "8080"),
		CRMBaseURL:     envOr("CRM_API_URL", "https://rest.gohighlevel.com"),
		AdsBaseURL:     envOr("ADS_API_URL", "https://graph.facebook.com"),
		AdsAccessToken: os.Getenv("ADS_ACCESS_TOKEN"),
		CentersFile:    envOr("CENTERS_FILE", "centers.json"),
		HTTPTimeout:    durOr("HTTP_TIMEOUT_SECONDS", 15*time.Second),
		BatchTimeout:   durOr("BATCH_TIMEOUT_SECONDS", 60*time.Second),
		CacheTTL:       durOr("CACHE_TTL_SECONDS", 5*time.Minute),
		LogLevel:       lvl,
	}
}

// LoadCenters reads the static center roster. Loaded once at startup and
// passed explicitly to the report service.
func LoadCenters(path string) ([]models.Center, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read centers file: %w", err)
	}
	var centers []models.Center
	if err := json.Unmarshal(b, &centers); err != nil {
		return nil, fmt.Errorf("parse centers file: %w", err)
	}
	for i, c := range centers {
		if c.CenterName == "" || c.APIKey == "" || c.LocationID == "" || c.PipelineName == "" {
			return nil, fmt.Errorf("center %d: centerName, apiKey, locationId and pipelineName are required", i)
		}
	}
	return centers, nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// durOr reads a duration env var given in seconds. A bare integer ("30") and
// a unit-suffixed duration ("30s", "2m") are both accepted.
func durOr(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
