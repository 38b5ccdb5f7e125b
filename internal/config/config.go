package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds clinicdesk configuration
type Config struct {
	Env      string
	LogLevel string

	// Clinic backend API
	APIBaseURL string
	APIToken   string
	APITimeout time.Duration

	// Payment callback listener
	CallbackPort string

	// Shared in-flight guard and pending-completion markers
	UseRedisGuard bool
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	BusyGuardTTL  time.Duration

	// Provider payment polling
	PaymentPollInterval    time.Duration
	PaymentPollMaxInterval time.Duration
	PaymentPollTimeout     time.Duration

	DefaultCurrency string
	PageSize        int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIBaseURL: strings.TrimSuffix(getEnv("CLINIC_API_BASE_URL", "http://localhost:3000"), "/"),
		APIToken:   getEnv("CLINIC_API_TOKEN", ""),
		APITimeout: getEnvAsDuration("CLINIC_API_TIMEOUT", 15*time.Second),

		CallbackPort: getEnv("CALLBACK_PORT", "8085"),

		UseRedisGuard: getEnvAsBool("USE_REDIS_GUARD", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		BusyGuardTTL:  getEnvAsDuration("BUSY_GUARD_TTL", 2*time.Minute),

		PaymentPollInterval:    getEnvAsDuration("PAYMENT_POLL_INTERVAL", 2*time.Second),
		PaymentPollMaxInterval: getEnvAsDuration("PAYMENT_POLL_MAX_INTERVAL", 15*time.Second),
		PaymentPollTimeout:     getEnvAsDuration("PAYMENT_POLL_TIMEOUT", 2*time.Minute),

		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "KES")),
		PageSize:        getEnvAsInt("PAGE_SIZE", 4),
	}
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding values already present in the environment. A missing
// file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
