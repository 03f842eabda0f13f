package config

import (
	"os"

	"github.com/joho/godotenv"

	"goodspeech_backend/pkg/plan"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Lemon    LemonConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type LemonConfig struct {
	WebhookSecret string
	StoreSlug     string

	// SignatureOptional skips webhook signature checks. Never enabled in
	// production; Load forces it off there.
	SignatureOptional bool
}

func Load() *Config {
	godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Lemon: LemonConfig{
			WebhookSecret:     getEnv("LEMON_WEBHOOK_SECRET", ""),
			StoreSlug:         getEnv("LEMON_STORE_SLUG", "goodspeech"),
			SignatureOptional: getEnv("LEMON_SIGNATURE_OPTIONAL", "") == "true",
		},
	}

	if cfg.Server.Env == "production" {
		cfg.Lemon.SignatureOptional = false
	}

	registerVariantIDs()

	return cfg
}

// registerVariantIDs binds the deployment's Lemon Squeezy variant ids to the
// plan catalog so webhook events join on a stable key instead of the
// variant's display name.
func registerVariantIDs() {
	plan.RegisterVariantID(plan.Starter, plan.CycleMonthly, os.Getenv("LEMON_VARIANT_STARTER_MONTHLY"))
	plan.RegisterVariantID(plan.Starter, plan.CycleYearly, os.Getenv("LEMON_VARIANT_STARTER_YEARLY"))
	plan.RegisterVariantID(plan.Professional, plan.CycleMonthly, os.Getenv("LEMON_VARIANT_PROFESSIONAL_MONTHLY"))
	plan.RegisterVariantID(plan.Professional, plan.CycleYearly, os.Getenv("LEMON_VARIANT_PROFESSIONAL_YEARLY"))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
