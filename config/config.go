// Package config loads process configuration from the environment,
// the same pattern every worker in this module shares.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything a worker process needs to run.
type Config struct {
	IsProd bool

	Database   DatabaseConfig
	Polymarket PolymarketConfig
	Ingestion  IngestionConfig
	Signals    SignalsConfig
	Profiler   ProfilerConfig
	Scoring    ScoringConfig
	Notifier   NotifierConfig
	Backoff    BackoffConfig
}

// DatabaseConfig holds the relational store connection.
type DatabaseConfig struct {
	DSN string
}

// PolymarketConfig holds the upstream HTTP API endpoints and client settings.
type PolymarketConfig struct {
	MarketsURL    string
	TradesURL     string
	EventsWSURL   string
	UserAgent     string
	ClientTimeout time.Duration
}

// IngestionConfig holds the ingestion worker's scheduling knobs.
type IngestionConfig struct {
	RefreshInterval time.Duration
	MinPollInterval time.Duration
	MaxPollInterval time.Duration
	UseEventsFeed   bool
}

// SignalsConfig holds the signal engine's batch size and detector thresholds.
type SignalsConfig struct {
	BatchSize int

	BigNotional            float64
	LowActivityWindow      time.Duration
	LowActivityMaxTrades   int
	RepeatWindow           time.Duration
	RepeatMinCount         int
	ImpactDeviation        float64
	ImpactMinNotional      float64
	ClusterWindow          time.Duration
	ClusterMinWallets      int
	ClusterMinNotional     float64
	SmartWalletMinAccuracy float64
	SmartWalletMinTrades   int
	SmartWalletMinNotional float64

	IdleSleep time.Duration
}

// ProfilerConfig holds the accuracy profiler's tuning knobs.
type ProfilerConfig struct {
	Interval       time.Duration
	MinNotional    float64
	FavorableDelta float64
	PriceTolerance time.Duration
	MinEvaluated   int
}

// ScoringConfig holds the scoring aggregator's window and thresholds.
type ScoringConfig struct {
	Window            time.Duration
	HighThreshold     float64
	WatchThreshold    float64
	BonusPerExtraType float64
	IdleSleep         time.Duration
}

// NotifierConfig holds the notifier dispatch's dry-run and pacing knobs.
type NotifierConfig struct {
	DiscordBotToken  string
	DiscordChannelID string
	ReasonsLimit     int
	WalletsLimit     int
	AlertLimit       int
	IdleSleep        time.Duration
}

// BackoffConfig holds the shared outer-loop backoff policy.
type BackoffConfig struct {
	Base time.Duration
	Max  time.Duration
}

// Load reads configuration from the environment, loading a local .env
// file first when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		IsProd: envBool("STAGE", "PROD"),

		Database: DatabaseConfig{
			DSN: envString("DATABASE_DSN", "postgres://localhost:5432/marketwatch?sslmode=disable"),
		},

		Polymarket: PolymarketConfig{
			MarketsURL:    envString("POLYMARKET_MARKETS_URL", "https://gamma-api.polymarket.com/markets"),
			TradesURL:     envString("POLYMARKET_TRADES_URL", "https://data-api.polymarket.com/trades"),
			EventsWSURL:   envString("POLYMARKET_EVENTS_WS_URL", ""),
			UserAgent:     envString("POLYMARKET_USER_AGENT", "polymarket-watch/0.1"),
			ClientTimeout: envDuration("POLYMARKET_CLIENT_TIMEOUT", 10*time.Second),
		},

		Ingestion: IngestionConfig{
			RefreshInterval: envDuration("INGESTION_REFRESH_INTERVAL", 1*time.Minute),
			MinPollInterval: envDuration("INGESTION_MIN_POLL_INTERVAL", 15*time.Second),
			MaxPollInterval: envDuration("INGESTION_MAX_POLL_INTERVAL", 45*time.Second),
			UseEventsFeed:   envBoolDefault("INGESTION_USE_EVENTS_FEED", false),
		},

		Signals: SignalsConfig{
			BatchSize: envInt("SIGNALS_BATCH_SIZE", 200),

			BigNotional:            envFloat("SIGNALS_BIG_NOTIONAL", 1000.0),
			LowActivityWindow:      envDuration("SIGNALS_LOW_ACTIVITY_WINDOW", 24*time.Hour),
			LowActivityMaxTrades:   envInt("SIGNALS_LOW_ACTIVITY_MAX_TRADES", 2),
			RepeatWindow:           envDuration("SIGNALS_REPEAT_WINDOW", 10*time.Minute),
			RepeatMinCount:         envInt("SIGNALS_REPEAT_MIN_COUNT", 3),
			ImpactDeviation:        envFloat("SIGNALS_IMPACT_DEVIATION", 0.05),
			ImpactMinNotional:      envFloat("SIGNALS_IMPACT_MIN_NOTIONAL", 500.0),
			ClusterWindow:          envDuration("SIGNALS_CLUSTER_WINDOW", 5*time.Minute),
			ClusterMinWallets:      envInt("SIGNALS_CLUSTER_MIN_WALLETS", 3),
			ClusterMinNotional:     envFloat("SIGNALS_CLUSTER_MIN_NOTIONAL", 200.0),
			SmartWalletMinAccuracy: envFloat("SIGNALS_SMART_WALLET_MIN_ACCURACY", 0.60),
			SmartWalletMinTrades:   envInt("SIGNALS_SMART_WALLET_MIN_TRADES", 5),
			SmartWalletMinNotional: envFloat("SIGNALS_SMART_WALLET_MIN_NOTIONAL", 100.0),

			IdleSleep: envDuration("SIGNALS_IDLE_SLEEP", 10*time.Second),
		},

		Profiler: ProfilerConfig{
			Interval:       envDuration("PROFILER_INTERVAL", 5*time.Minute),
			MinNotional:    envFloat("PROFILER_MIN_NOTIONAL", 100.0),
			FavorableDelta: envFloat("PROFILER_FAVORABLE_DELTA", 0.05),
			PriceTolerance: envDuration("PROFILER_PRICE_TOLERANCE", 5*time.Minute),
			MinEvaluated:   envInt("PROFILER_MIN_EVALUATED", 5),
		},

		Scoring: ScoringConfig{
			Window:            envDuration("SCORING_WINDOW", 2*time.Hour),
			HighThreshold:     envFloat("SCORING_HIGH_THRESHOLD", 12.0),
			WatchThreshold:    envFloat("SCORING_WATCH_THRESHOLD", 4.0),
			BonusPerExtraType: envFloat("SCORING_BONUS_PER_EXTRA_TYPE", 2.5),
			IdleSleep:         envDuration("SCORING_IDLE_SLEEP", 10*time.Second),
		},

		Notifier: NotifierConfig{
			DiscordBotToken:  envString("DISCORD_BOT_TOKEN", ""),
			DiscordChannelID: envString("DISCORD_CHANNEL_ID", ""),
			ReasonsLimit:     envInt("NOTIFIER_REASONS_LIMIT", 3),
			WalletsLimit:     envInt("NOTIFIER_WALLETS_LIMIT", 3),
			AlertLimit:       envInt("NOTIFIER_ALERT_LIMIT", 50),
			IdleSleep:        envDuration("NOTIFIER_IDLE_SLEEP", 15*time.Second),
		},

		Backoff: BackoffConfig{
			Base: envDuration("BACKOFF_BASE", 5*time.Second),
			Max:  envDuration("BACKOFF_MAX", 180*time.Second),
		},
	}
}

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBool(key, trueValue string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), trueValue)
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}
