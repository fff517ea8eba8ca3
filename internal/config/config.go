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
	CORSAllowOrigins       string
	DatabaseURL            string
	SQLitePath             string
	RedisURL               string
	NATSURL                string
	NATSSubjectPrefix      string
	JWTSecret              string
	JWTPublicKeyPEM        string
	DashboardCacheTTL      time.Duration
	PlanCacheTTL           time.Duration
	ClerkSecretKey         string
	ClerkAPIURL            string
	ProPlanIDs             []string
	StarterPlanIDs         []string
	BillingTimeout         time.Duration
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxMB            int
	SweepInterval          time.Duration
	RateLimitMax           int
	RateLimitWindow        time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether photo storage credentials are present.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("STEWARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Steward API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.cors_origins", "*")
	v.SetDefault("database.sqlite_path", "steward.db")
	v.SetDefault("nats.subject_prefix", "steward")
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("plan.cache_ttl", "10m")
	v.SetDefault("billing.clerk_api_url", "https://api.clerk.com")
	v.SetDefault("billing.timeout", "5s")
	v.SetDefault("cloudinary.folder", "steward/incidents")
	v.SetDefault("upload.max_mb", 5)
	v.SetDefault("lifecycle.sweep_interval", "0")
	v.SetDefault("rate_limit.max", 120)
	v.SetDefault("rate_limit.window", "1m")

	durations := map[string]time.Duration{}
	for _, key := range []string{"dashboard.cache_ttl", "plan.cache_ttl", "billing.timeout", "lifecycle.sweep_interval", "rate_limit.window"} {
		parsed, err := parseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		CORSAllowOrigins:       v.GetString("app.cors_origins"),
		DatabaseURL:            v.GetString("database.url"),
		SQLitePath:             v.GetString("database.sqlite_path"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubjectPrefix:      v.GetString("nats.subject_prefix"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTPublicKeyPEM:        v.GetString("jwt.public_key_pem"),
		DashboardCacheTTL:      durations["dashboard.cache_ttl"],
		PlanCacheTTL:           durations["plan.cache_ttl"],
		ClerkSecretKey:         v.GetString("billing.clerk_secret_key"),
		ClerkAPIURL:            v.GetString("billing.clerk_api_url"),
		ProPlanIDs:             splitList(v.GetString("billing.pro_plan_ids")),
		StarterPlanIDs:         splitList(v.GetString("billing.starter_plan_ids")),
		BillingTimeout:         durations["billing.timeout"],
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		SweepInterval:          durations["lifecycle.sweep_interval"],
		RateLimitMax:           v.GetInt("rate_limit.max"),
		RateLimitWindow:        durations["rate_limit.window"],
	}

	if cfg.JWTSecret == "" && strings.TrimSpace(cfg.JWTPublicKeyPEM) == "" {
		return Config{}, fmt.Errorf("jwt secret or public key must be provided")
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 5
	}

	if cfg.DashboardCacheTTL <= 0 {
		cfg.DashboardCacheTTL = 5 * time.Minute
	}

	return cfg, nil
}

func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0" {
		return 0, nil
	}
	return time.ParseDuration(value)
}

func splitList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
