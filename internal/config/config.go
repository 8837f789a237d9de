package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Billing   BillingConfig
	Scheduler SchedulerConfig

	Vendor VendorConfig
}

// BillingConfig controls how vendor-reported hits convert into debits.
type BillingConfig struct {
	// CreditsPerHit is the debit applied per newly observed hit.
	CreditsPerHit int64
	// ArchiveRetention is how long an archived campaign is kept before it
	// becomes eligible for deletion.
	ArchiveRetention time.Duration
	// PurgeRetention is the second grace window: how long a delete-eligible
	// campaign is kept before it is physically removed.
	PurgeRetention time.Duration
}

// SchedulerConfig controls the periodic jobs.
type SchedulerConfig struct {
	RunInterval   time.Duration
	SweepInterval time.Duration
	BatchSize     int
	JobTimeout    time.Duration
}

// VendorConfig points at the traffic vendor API.
type VendorConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "boostlane"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel: strings.ToLower(getenv("LOG_LEVEL", "info")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "boostlane"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Billing: BillingConfig{
			CreditsPerHit:    int64(getenvInt("BILLING_CREDITS_PER_HIT", 1)),
			ArchiveRetention: getenvDuration("BILLING_ARCHIVE_RETENTION", 7*24*time.Hour),
			PurgeRetention:   getenvDuration("BILLING_PURGE_RETENTION", 7*24*time.Hour),
		},
		Scheduler: SchedulerConfig{
			RunInterval:   getenvDuration("SCHEDULER_RUN_INTERVAL", 10*time.Minute),
			SweepInterval: getenvDuration("SCHEDULER_SWEEP_INTERVAL", 24*time.Hour),
			BatchSize:     getenvInt("SCHEDULER_BATCH_SIZE", 100),
			JobTimeout:    getenvDuration("SCHEDULER_JOB_TIMEOUT", 5*time.Minute),
		},
		Vendor: VendorConfig{
			Provider: strings.ToLower(getenv("VENDOR_PROVIDER", "clickmill")),
			BaseURL:  getenv("VENDOR_BASE_URL", "https://api.clickmill.example"),
			APIKey:   strings.TrimSpace(getenv("VENDOR_API_KEY", "")),
			Timeout:  getenvDuration("VENDOR_TIMEOUT", 15*time.Second),
		},
	}
}

// Module wires application config into the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
