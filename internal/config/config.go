// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	LLM       LLMConfig       `koanf:"llm"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	ConnectRetries  int           `koanf:"connect_retries"`
}

type RedisConfig struct {
	URL            string        `koanf:"url"`
	ClientName     string        `koanf:"client_name"`
	PoolSize       int           `koanf:"pool_size"`
	MinIdleConns   int           `koanf:"min_idle_conns"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	ConnectRetries int           `koanf:"connect_retries"`
}

type JWTConfig struct {
	PublicKeyPath     string        `koanf:"public_key_path"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests    int           `koanf:"requests"`
	Window      time.Duration `koanf:"window"`
	Burst       int           `koanf:"burst"`
	AnalyzeCost int           `koanf:"analyze_cost"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type LLMConfig struct {
	BaseURL          string        `koanf:"base_url"`
	APIKey           string        `koanf:"api_key"`
	Model            string        `koanf:"model"`
	Temperature      float32       `koanf:"temperature"`
	MaxTokens        int           `koanf:"max_tokens"`
	Timeout          time.Duration `koanf:"timeout"`
	InputPricePer1K  float64       `koanf:"input_price_per_1k"`
	OutputPricePer1K float64       `koanf:"output_price_per_1k"`
}

// AnalysisConfig tunes chunking, upstream pacing and fan-out.
type AnalysisConfig struct {
	MaxChunkSize    int           `koanf:"max_chunk_size"`
	CallInterval    time.Duration `koanf:"call_interval"`
	CallBurst       int           `koanf:"call_burst"`
	Pacing          string        `koanf:"pacing"`
	RuleConcurrency int           `koanf:"rule_concurrency"`
	MaxFiles        int           `koanf:"max_files"`
	MaxFileBytes    int64         `koanf:"max_file_bytes"`
	ExtractCacheTTL time.Duration `koanf:"extract_cache_ttl"`
}

const (
	PacingLocal = "local"
	PacingRedis = "redis"
)

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Document Analyzer",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.connect_retries":    5,

		"redis.client_name":     "doc-analyzer",
		"redis.pool_size":       10,
		"redis.min_idle_conns":  5,
		"redis.read_timeout":    "3s",
		"redis.write_timeout":   "3s",
		"redis.connect_retries": 5,

		"jwt.access_token_expire": "15m",
		"jwt.issuer":              "doc-analyzer",
		"jwt.audience":            "doc-analyzer-api",
		"jwt.public_key_path":     "keys/public.pem",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"rate_limit.analyze_cost": 5,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "doc-analyzer",

		"llm.base_url":            "https://api.openai.com/v1",
		"llm.model":               "gpt-3.5-turbo-16k",
		"llm.temperature":         0.2,
		"llm.max_tokens":          500,
		"llm.timeout":             "60s",
		"llm.input_price_per_1k":  0.0015,
		"llm.output_price_per_1k": 0.002,

		"analysis.max_chunk_size":    8000,
		"analysis.call_interval":     "1s",
		"analysis.call_burst":        1,
		"analysis.pacing":            PacingLocal,
		"analysis.rule_concurrency":  1,
		"analysis.max_files":         10,
		"analysis.max_file_bytes":    20 << 20,
		"analysis.extract_cache_ttl": "24h",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"RATE_LIMIT_ANALYZE_COST":     "rate_limit.analyze_cost",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"LLM_BASE_URL":                "llm.base_url",
	"LLM_API_KEY":                 "llm.api_key",
	"OPENAI_API_KEY":              "llm.api_key",
	"LLM_MODEL":                   "llm.model",
	"LLM_TEMPERATURE":             "llm.temperature",
	"LLM_MAX_TOKENS":              "llm.max_tokens",
	"LLM_TIMEOUT":                 "llm.timeout",
	"ANALYSIS_MAX_CHUNK_SIZE":     "analysis.max_chunk_size",
	"ANALYSIS_CALL_INTERVAL":      "analysis.call_interval",
	"ANALYSIS_CALL_BURST":         "analysis.call_burst",
	"ANALYSIS_PACING":             "analysis.pacing",
	"ANALYSIS_RULE_CONCURRENCY":   "analysis.rule_concurrency",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}

	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}

	if c.Analysis.MaxChunkSize <= 0 {
		return fmt.Errorf("analysis.max_chunk_size must be positive")
	}

	if c.Analysis.CallBurst <= 0 {
		return fmt.Errorf("analysis.call_burst must be positive")
	}

	if c.Analysis.RuleConcurrency <= 0 {
		return fmt.Errorf("analysis.rule_concurrency must be positive")
	}

	switch c.Analysis.Pacing {
	case PacingLocal, PacingRedis:
	default:
		return fmt.Errorf(
			"analysis.pacing must be %q or %q",
			PacingLocal,
			PacingRedis,
		)
	}

	if c.RateLimit.AnalyzeCost > c.RateLimit.Burst {
		return fmt.Errorf("rate_limit.analyze_cost cannot exceed rate_limit.burst")
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
