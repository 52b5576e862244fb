package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	IPInfo       IPInfoConfig
	TextAnalysis TextAnalysisConfig
	Breaker      BreakerConfig
	Sentry       SentryConfig
	NATS         NATSConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int
	MinConns    int
	AutoMigrate bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// IPInfoConfig configures the IP geolocation lookup
type IPInfoConfig struct {
	Enabled       bool
	Provider      string // ipstack, ipinfo, ipapi or maxmind
	APIKey        string
	BaseURL       string
	MaxMindDBPath string
	CacheBackend  string // memory or redis
	CacheTTLHours int
	SweepMinutes  int
	TimeoutSecs   int
}

// TextAnalysisConfig configures the optional external NLP service
type TextAnalysisConfig struct {
	Enabled     bool
	Endpoint    string
	APIKey      string
	TimeoutSecs int
}

// BreakerConfig holds circuit breaker tuning for outbound calls
type BreakerConfig struct {
	IntervalSeconds  int
	TimeoutSeconds   int
	FailureThreshold int
	SuccessThreshold int
}

// SentryConfig holds Sentry error reporting configuration
type SentryConfig struct {
	DSN string
}

// NATSConfig holds event bus configuration
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "kelmah"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			MaxConns:    getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:    getEnvAsInt("DB_MIN_CONNS", 5),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		},
		IPInfo: IPInfoConfig{
			Enabled:       getEnvAsBool("IP_INFO_ENABLED", false),
			Provider:      getEnv("IP_INFO_PROVIDER", "ipapi"),
			APIKey:        getEnv("IP_INFO_API_KEY", ""),
			BaseURL:       getEnv("IP_INFO_BASE_URL", ""),
			MaxMindDBPath: getEnv("IP_INFO_MAXMIND_DB_PATH", ""),
			CacheBackend:  getEnv("IP_INFO_CACHE_BACKEND", "memory"),
			CacheTTLHours: getEnvAsInt("IP_INFO_CACHE_TTL_HOURS", 24),
			SweepMinutes:  getEnvAsInt("IP_INFO_SWEEP_MINUTES", 60),
			TimeoutSecs:   getEnvAsInt("IP_INFO_TIMEOUT_SECONDS", 4),
		},
		TextAnalysis: TextAnalysisConfig{
			Enabled:     getEnvAsBool("TEXT_ANALYSIS_ENABLED", false),
			Endpoint:    getEnv("TEXT_ANALYSIS_ENDPOINT", ""),
			APIKey:      getEnv("TEXT_ANALYSIS_API_KEY", ""),
			TimeoutSecs: getEnvAsInt("TEXT_ANALYSIS_TIMEOUT_SECONDS", 4),
		},
		Breaker: BreakerConfig{
			IntervalSeconds:  getEnvAsInt("BREAKER_INTERVAL_SECONDS", 60),
			TimeoutSeconds:   getEnvAsInt("BREAKER_TIMEOUT_SECONDS", 30),
			FailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
			SuccessThreshold: getEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 1),
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "reviews"),
		},
	}

	if cfg.IPInfo.Enabled && cfg.IPInfo.Provider == "maxmind" && cfg.IPInfo.MaxMindDBPath == "" {
		return nil, fmt.Errorf("IP_INFO_MAXMIND_DB_PATH is required for the maxmind provider")
	}
	if cfg.TextAnalysis.Enabled && cfg.TextAnalysis.Endpoint == "" {
		return nil, fmt.Errorf("TEXT_ANALYSIS_ENDPOINT is required when text analysis is enabled")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the database connection string in URL form, as expected by migrate
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// CacheTTL returns the IP info cache expiry
func (c *IPInfoConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// SweepInterval returns how often expired IP info entries are evicted
func (c *IPInfoConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepMinutes) * time.Minute
}

// Timeout returns the per-call timeout for geolocation providers
func (c *IPInfoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Timeout returns the per-call timeout for the NLP service
func (c *TextAnalysisConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
