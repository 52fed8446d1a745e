package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Env         string            `mapstructure:"env"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	HospitalAPI HospitalAPIConfig `mapstructure:"hospital_api"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Scheduling  SchedulingConfig  `mapstructure:"scheduling"`
	Security    SecurityConfig    `mapstructure:"security"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`

	MigrationsSource string `mapstructure:"migrations_source"`
	AutoMigrate      bool   `mapstructure:"auto_migrate"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig describes how bearer tokens from the identity provider are verified.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	Leeway    time.Duration `mapstructure:"leeway"`
}

// HospitalAPIConfig points at the hospital-data service.
type HospitalAPIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	HoursPath         string        `mapstructure:"hours_path"`
	AvailabilityPath  string        `mapstructure:"availability_path"`
	HolidaysPath      string        `mapstructure:"holidays_path"`
	OvertimePath      string        `mapstructure:"overtime_path"`
	BreakTimingsPath  string        `mapstructure:"break_timings_path"`
	FetchBreakTimings bool          `mapstructure:"fetch_break_timings"`
}

type LLMConfig struct {
	DefaultProvider string          `mapstructure:"default_provider"`
	Timeout         time.Duration   `mapstructure:"timeout"`
	Temperature     float64         `mapstructure:"temperature"`
	MaxTokens       int             `mapstructure:"max_tokens"`
	OpenAI          OpenAIConfig    `mapstructure:"openai"`
	Anthropic       AnthropicConfig `mapstructure:"anthropic"`
	Ollama          OllamaConfig    `mapstructure:"ollama"`
	DeepSeek        OpenAIConfig    `mapstructure:"deepseek"`
	Gemini          GeminiConfig    `mapstructure:"gemini"`
}

// OpenAIConfig also serves OpenAI-compatible endpoints such as DeepSeek.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Host         string `mapstructure:"host"`
	DefaultModel string `mapstructure:"default_model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// SchedulingConfig holds pipeline limits and policy fallbacks.
type SchedulingConfig struct {
	MaxAttempts            int           `mapstructure:"max_attempts"`
	DefaultSpanDays        int           `mapstructure:"default_span_days"`
	MaxSpanDays            int           `mapstructure:"max_span_days"`
	MinStaff               int           `mapstructure:"min_staff"`
	RequiredRoles          []string      `mapstructure:"required_roles"`
	HolidayOperating       bool          `mapstructure:"holiday_operating"`
	DefaultTimezone        string        `mapstructure:"default_timezone"`
	DailyMaxOvertimeHours  float64       `mapstructure:"daily_max_overtime_hours"`
	WeeklyMaxOvertimeHours float64       `mapstructure:"weekly_max_overtime_hours"`
	BreakThresholdMinutes  int           `mapstructure:"break_threshold_minutes"`
	MinBreakMinutes        int           `mapstructure:"min_break_minutes"`
	DefaultIntent          string        `mapstructure:"default_intent"`
	ResultTTL              time.Duration `mapstructure:"result_ttl"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// CacheEncryptionKey is a base64 AES key. Cached results are stored in
	// plaintext when it is empty.
	CacheEncryptionKey string `mapstructure:"cache_encryption_key"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   string        `mapstructure:"file"`
	MaxAge time.Duration `mapstructure:"max_age"`
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// viper reports a missing explicit file as a PathError, not ConfigFileNotFoundError
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Scheduling.MaxAttempts < 1 {
		return fmt.Errorf("scheduling.max_attempts must be at least 1")
	}
	if c.Scheduling.DefaultSpanDays < 1 {
		return fmt.Errorf("scheduling.default_span_days must be at least 1")
	}
	if c.Scheduling.MaxSpanDays < c.Scheduling.DefaultSpanDays {
		return fmt.Errorf("scheduling.max_span_days must not be below default_span_days")
	}
	if c.Scheduling.MinStaff < 0 {
		return fmt.Errorf("scheduling.min_staff must not be negative")
	}
	if _, err := time.LoadLocation(c.Scheduling.DefaultTimezone); err != nil {
		return fmt.Errorf("scheduling.default_timezone: %w", err)
	}
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required in production")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.middleware_timeout", "170s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "scheduler")
	v.SetDefault("database.database", "scheduler")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.migrations_source", "file://migrations")
	v.SetDefault("database.auto_migrate", true)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Auth
	v.SetDefault("auth.leeway", "30s")

	// Hospital API
	v.SetDefault("hospital_api.base_url", "http://localhost:5000")
	v.SetDefault("hospital_api.timeout", "30s")
	v.SetDefault("hospital_api.hours_path", "/api/v1/HospitalOperatingHours/location")
	v.SetDefault("hospital_api.availability_path", "/api/v1/EmployeeAvailability/search")
	v.SetDefault("hospital_api.holidays_path", "/api/v1/Holidays/location")
	v.SetDefault("hospital_api.overtime_path", "/api/v1/Overtime/location")
	v.SetDefault("hospital_api.break_timings_path", "/api/v1/BreakTimings/location")
	v.SetDefault("hospital_api.fetch_break_timings", false)

	// LLM
	v.SetDefault("llm.default_provider", "ollama")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.ollama.host", "http://localhost:11434")
	v.SetDefault("llm.ollama.default_model", "llama3.1")
	v.SetDefault("llm.deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("llm.deepseek.model", "deepseek-chat")

	// Scheduling
	v.SetDefault("scheduling.max_attempts", 3)
	v.SetDefault("scheduling.default_span_days", 14)
	v.SetDefault("scheduling.max_span_days", 31)
	v.SetDefault("scheduling.min_staff", 1)
	v.SetDefault("scheduling.holiday_operating", false)
	v.SetDefault("scheduling.default_timezone", "UTC")
	v.SetDefault("scheduling.daily_max_overtime_hours", 4)
	v.SetDefault("scheduling.weekly_max_overtime_hours", 12)
	v.SetDefault("scheduling.break_threshold_minutes", 0)
	v.SetDefault("scheduling.min_break_minutes", 0)
	v.SetDefault("scheduling.default_intent", DefaultIntent)
	v.SetDefault("scheduling.result_ttl", "24h")

	// Security
	v.SetDefault("security.rate_limit.requests_per_minute", 10)
	v.SetDefault("security.rate_limit.burst", 5)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_age", "168h")
}

// DefaultIntent is used when a request carries no instructions.
const DefaultIntent = "Create a balanced two-week schedule that covers every operating window, " +
	"respects each employee's availability, and keeps overtime to a minimum."

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("env", "ENV")

	// Server
	v.BindEnv("server.port", "SERVER_PORT")

	// Database
	v.BindEnv("database.host", "POSTGRES_HOST")
	v.BindEnv("database.password", "POSTGRES_PASSWORD")
	v.BindEnv("database.migrations_source", "MIGRATIONS_SOURCE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.issuer", "JWT_ISSUER")
	v.BindEnv("auth.audience", "JWT_AUDIENCE")
	v.BindEnv("security.cache_encryption_key", "CACHE_ENCRYPTION_KEY")

	// Hospital API
	v.BindEnv("hospital_api.base_url", "HOSPITAL_API_BASE_URL")

	// LLM API Keys
	v.BindEnv("llm.default_provider", "LLM_PROVIDER")
	v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.deepseek.api_key", "DEEPSEEK_API_KEY")
	v.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("llm.ollama.host", "OLLAMA_HOST")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.file", "LOG_FILE")
}
