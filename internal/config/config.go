package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// GeminiBaseURL is the OpenAI-compatible endpoint used when only a Gemini key is present.
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	GeminiModel   = "gemini-2.0-flash"

	placeholderPrefix = "YOUR_"
)

type Config struct {
	Server struct {
		Port        int      `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
		RateLimit   struct {
			Capacity        int     `yaml:"capacity"`
			RefillPerSecond float64 `yaml:"refillPerSecond"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json | console
	} `yaml:"log"`

	LLM struct {
		APIKey         string  `yaml:"apiKey"`
		BaseURL        string  `yaml:"baseURL"`
		Model          string  `yaml:"model"`
		Temperature    float64 `yaml:"temperature"`
		MaxTokens      int     `yaml:"maxTokens"`
		MaxAttempts    int     `yaml:"maxAttempts"`
		TimeoutSeconds int     `yaml:"timeoutSeconds"`
	} `yaml:"llm"`

	Sources struct {
		Yahoo struct {
			BaseURL   string `yaml:"baseURL"`
			CookieURL string `yaml:"cookieURL"`
		} `yaml:"yahoo"`
		AlphaVantage struct {
			APIKey     string `yaml:"apiKey"`
			BaseURL    string `yaml:"baseURL"`
			DailyLimit int    `yaml:"dailyLimit"`
			PerMinute  int    `yaml:"perMinute"`
		} `yaml:"alphaVantage"`
		StockNews struct {
			APIKey     string `yaml:"apiKey"`
			BaseURL    string `yaml:"baseURL"`
			DailyLimit int    `yaml:"dailyLimit"`
		} `yaml:"stockNews"`
		Edgar struct {
			UserAgent  string  `yaml:"userAgent"`
			TickersURL string  `yaml:"tickersURL"`
			DataURL    string  `yaml:"dataURL"`
			PerSecond  float64 `yaml:"perSecond"`
		} `yaml:"edgar"`
	} `yaml:"sources"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | "" (no persistence)
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Enabled        bool   `yaml:"enabled"`
		Endpoint       string `yaml:"endpoint"`
		AccessKey      string `yaml:"accessKey"`
		SecretKey      string `yaml:"secretKey"`
		BucketName     string `yaml:"bucketName"`
		Region         string `yaml:"region"`
		UseSSL         bool   `yaml:"useSSL"`
		PresignMinutes int    `yaml:"presignMinutes"`
	} `yaml:"minio"`
}

// Load baca file config.yaml, lalu override secret dari environment
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOptional is Load, except a missing file yields the defaults plus environment.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return FromEnv(), nil
	}
	return cfg, err
}

// FromEnv builds a configuration from defaults and environment variables only.
func FromEnv() *Config {
	var cfg Config
	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	return &cfg
}

type lookupFunc func(string) (string, bool)

func firstEnv(lookup lookupFunc, keys ...string) (string, string) {
	for _, k := range keys {
		if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), k
		}
	}
	return "", ""
}

func (c *Config) applyEnv(lookup lookupFunc) {
	if v, key := firstEnv(lookup, "LLM_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
		// key Gemini tanpa base URL → endpoint OpenAI-compatible milik Gemini
		if key == "GEMINI_API_KEY" && c.LLM.BaseURL == "" {
			c.LLM.BaseURL = GeminiBaseURL
			if c.LLM.Model == "" {
				c.LLM.Model = GeminiModel
			}
		}
	}
	if v, _ := firstEnv(lookup, "LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v, _ := firstEnv(lookup, "LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v, _ := firstEnv(lookup, "ALPHA_VANTAGE_API_KEY"); v != "" {
		c.Sources.AlphaVantage.APIKey = v
	}
	if v, _ := firstEnv(lookup, "STOCK_NEWS_API_KEY"); v != "" {
		c.Sources.StockNews.APIKey = v
	}
	if v, _ := firstEnv(lookup, "DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v, _ := firstEnv(lookup, "MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit.Capacity == 0 {
		c.Server.RateLimit.Capacity = 60
	}
	if c.Server.RateLimit.RefillPerSecond == 0 {
		c.Server.RateLimit.RefillPerSecond = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.1
	}
	if c.LLM.MaxAttempts == 0 {
		c.LLM.MaxAttempts = 3
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.Sources.AlphaVantage.DailyLimit == 0 {
		c.Sources.AlphaVantage.DailyLimit = 500
	}
	if c.Sources.AlphaVantage.PerMinute == 0 {
		c.Sources.AlphaVantage.PerMinute = 5
	}
	if c.Sources.StockNews.DailyLimit == 0 {
		c.Sources.StockNews.DailyLimit = 100
	}
	if c.Sources.Edgar.PerSecond == 0 {
		c.Sources.Edgar.PerSecond = 10
	}
	if c.Sources.Edgar.UserAgent == "" {
		c.Sources.Edgar.UserAgent = "automaton-analyst admin@example.com"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "mysql":
			c.Database.Port = 3306
		case "postgres":
			c.Database.Port = 5432
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
}

// CallTimeout is the per-call bound applied to generation and data source calls.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func usable(key string) bool {
	return key != "" && !strings.HasPrefix(key, placeholderPrefix)
}

// IsConfigured reports whether the model key and the fundamentals key are both set.
func (c *Config) IsConfigured() bool {
	return usable(c.LLM.APIKey) && usable(c.Sources.AlphaVantage.APIKey)
}

// Status is the configuration readiness per integration, without network calls.
func (c *Config) Status() map[string]bool {
	return map[string]bool{
		"llm":           usable(c.LLM.APIKey),
		"alpha_vantage": usable(c.Sources.AlphaVantage.APIKey),
		"stock_news":    usable(c.Sources.StockNews.APIKey),
		"yahoo_finance": true,
		"sec_edgar":     c.Sources.Edgar.UserAgent != "",
		"database":      c.Database.Driver != "",
		"minio":         c.Minio.Enabled,
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres (URL form)
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}
