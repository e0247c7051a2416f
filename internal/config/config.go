package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mtlprog/suihistory/internal/sui"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SuiNetwork            string
	SuiRPCURL             string
	SuiRetryMax           int
	SuiRetryBaseDelay     time.Duration
	CoinGeckoURL          string
	CoinGeckoDelay        time.Duration
	CoinGeckoRetryMax     int
	ReferenceCurrency     string
	DatabaseURL           string
	QuoteStaleThreshold   time.Duration
	QuoteWorkerInterval   time.Duration
	PriceCacheTTL         time.Duration
	UpstreamTimeout       time.Duration
	HTTPPort              string
	GoogleSpreadsheetID   string
	GoogleCredentialsJSON string
	APIKey                string
	SnapshotAccounts      []string
	SnapshotInterval      time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	network := envOrDefault("SUI_NETWORK", "mainnet")
	return Config{
		SuiNetwork:            network,
		SuiRPCURL:             envOrDefault("SUI_RPC_URL", fullnodeURL(network)),
		SuiRetryMax:           envOrDefaultInt("SUI_RETRY_MAX", 5),
		SuiRetryBaseDelay:     envOrDefaultDuration("SUI_RETRY_BASE_DELAY", 2*time.Second),
		CoinGeckoURL:          envOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoDelay:        envOrDefaultDuration("COINGECKO_DELAY", 6*time.Second),
		CoinGeckoRetryMax:     envOrDefaultInt("COINGECKO_RETRY_MAX", 5),
		ReferenceCurrency:     strings.ToLower(envOrDefault("REFERENCE_CURRENCY", "usd")),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		QuoteStaleThreshold:   envOrDefaultDuration("QUOTE_STALE_THRESHOLD", 5*time.Minute),
		QuoteWorkerInterval:   envOrDefaultDuration("QUOTE_WORKER_INTERVAL", 1*time.Minute),
		PriceCacheTTL:         envOrDefaultDuration("PRICE_CACHE_TTL", 10*time.Minute),
		UpstreamTimeout:       envOrDefaultDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		GoogleSpreadsheetID:   os.Getenv("GOOGLE_SPREADSHEET_ID"),
		GoogleCredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
		APIKey:                os.Getenv("API_KEY"),
		SnapshotAccounts:      envList("SNAPSHOT_ACCOUNTS"),
		SnapshotInterval:      envOrDefaultDuration("SNAPSHOT_WORKER_INTERVAL", 24*time.Hour),
	}
}

func fullnodeURL(network string) string {
	url, err := sui.FullnodeURL(network)
	if err != nil {
		slog.Warn("unknown SUI_NETWORK, using mainnet", "value", network)
		url, _ = sui.FullnodeURL("mainnet")
	}
	return url
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping blanks.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
