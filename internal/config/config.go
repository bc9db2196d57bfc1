package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Scrape    ScrapeConfig
	Sync      SyncConfig
	Narrative NarrativeConfig
	Logger    LoggerConfig
	Security  SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DataConfig selects the initial order collection: a CSV file when set,
// otherwise SeedOrders synthesized orders.
type DataConfig struct {
	CSVFile    string
	SeedOrders int
}

type ScrapeConfig struct {
	BaseURL        string
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

type SyncConfig struct {
	DemoQRDelay      time.Duration
	DemoVerifyDelay  time.Duration
	DemoProgressStep time.Duration
	SettleDelay      time.Duration
	DemoBatchSize    int
}

type NarrativeConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

func Load() (*Config, error) {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			CSVFile:    getEnvString("ORDERS_CSV", ""),
			SeedOrders: getEnvInt("SEED_ORDERS", 50),
		},
		Scrape: ScrapeConfig{
			BaseURL:        getEnvString("SCRAPER_BASE_URL", "http://localhost:8000"),
			PollInterval:   getEnvDuration("SCRAPER_POLL_INTERVAL", 2*time.Second),
			RequestTimeout: getEnvDuration("SCRAPER_REQUEST_TIMEOUT", 10*time.Second),
		},
		Sync: SyncConfig{
			DemoQRDelay:      getEnvDuration("SYNC_DEMO_QR_DELAY", 1500*time.Millisecond),
			DemoVerifyDelay:  getEnvDuration("SYNC_DEMO_VERIFY_DELAY", 2*time.Second),
			DemoProgressStep: getEnvDuration("SYNC_DEMO_PROGRESS_STEP", 300*time.Millisecond),
			SettleDelay:      getEnvDuration("SYNC_SETTLE_DELAY", time.Second),
			DemoBatchSize:    getEnvInt("SYNC_DEMO_BATCH_SIZE", 5),
		},
		Narrative: NarrativeConfig{
			APIKey:  getEnvString("GEMINI_API_KEY", os.Getenv("API_KEY")),
			Model:   getEnvString("NARRATIVE_MODEL", "gemini-3-flash-preview"),
			Timeout: getEnvDuration("NARRATIVE_TIMEOUT", 60*time.Second),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Data.CSVFile == "" && c.Data.SeedOrders < 0 {
		return fmt.Errorf("seed order count cannot be negative")
	}

	if u, err := url.Parse(c.Scrape.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid scraper base URL %q", c.Scrape.BaseURL)
	}

	if c.Scrape.PollInterval <= 0 {
		return fmt.Errorf("scraper poll interval must be positive")
	}

	if c.Sync.DemoBatchSize <= 0 {
		return fmt.Errorf("demo batch size must be positive")
	}

	if c.Sync.DemoProgressStep <= 0 {
		return fmt.Errorf("demo progress step must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LogValue keeps credentials out of the startup log.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.Address()),
		slog.String("orders_csv", c.Data.CSVFile),
		slog.Int("seed_orders", c.Data.SeedOrders),
		slog.String("scraper_url", c.Scrape.BaseURL),
		slog.Duration("poll_interval", c.Scrape.PollInterval),
		slog.String("narrative_model", c.Narrative.Model),
		slog.Bool("narrative_enabled", c.Narrative.APIKey != ""),
		slog.String("log_level", c.Logger.Level),
	)
}
