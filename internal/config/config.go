package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventSubjectBase       string
	JWTSecret              string
	JWTRefreshSecret       string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	BalanceCacheTTL        time.Duration

	// Chain gateway settings. An empty node URL selects the in-process
	// gateway, which is intended for development and tests only.
	ChainNodeURL         string
	ChainID              int64
	ChainAuthorityKey    string
	CoinContractAddress  string
	RegistryContractAddr string
	ChainQueueCapacity   int
	ChainReceiptTimeout  time.Duration

	ReconcileSchedule string
	SettleGrace       time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CAMPUSCOIN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "CampusCoin API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "campuscoin/evidence")
	v.SetDefault("events.subject_base", "campuscoin")
	v.SetDefault("balance.cache_ttl", "30s")
	v.SetDefault("chain.id", 31337)
	v.SetDefault("chain.queue_capacity", 64)
	v.SetDefault("chain.receipt_timeout", "90s")
	v.SetDefault("reconcile.schedule", "@every 15m")
	v.SetDefault("settle.grace", "10m")

	cacheTTL, err := parseDuration(v, "balance.cache_ttl", "30s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid balance cache ttl: %w", err)
	}
	receiptTimeout, err := parseDuration(v, "chain.receipt_timeout", "90s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid chain receipt timeout: %w", err)
	}
	settleGrace, err := parseDuration(v, "settle.grace", "10m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid settle grace: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventSubjectBase:       v.GetString("events.subject_base"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTRefreshSecret:       v.GetString("jwt.refresh_secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		BalanceCacheTTL:        cacheTTL,
		ChainNodeURL:           v.GetString("chain.node_url"),
		ChainID:                v.GetInt64("chain.id"),
		ChainAuthorityKey:      v.GetString("chain.authority_key"),
		CoinContractAddress:    v.GetString("chain.coin_address"),
		RegistryContractAddr:   v.GetString("chain.registry_address"),
		ChainQueueCapacity:     v.GetInt("chain.queue_capacity"),
		ChainReceiptTimeout:    receiptTimeout,
		ReconcileSchedule:      v.GetString("reconcile.schedule"),
		SettleGrace:            settleGrace,
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.ChainNodeURL != "" && cfg.ChainAuthorityKey == "" {
		return Config{}, fmt.Errorf("chain authority key must be provided when a node url is set")
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		raw = fallback
	}

	return time.ParseDuration(raw)
}
