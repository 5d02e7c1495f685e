package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var pricesYAML []byte

type Config struct {
	Database DatabaseConfig
	LegacyDB LegacyDBConfig
	Storage  StorageConfig
	Auth     AuthConfig
	AI       AIConfig
	OpenAI   OpenAIConfig
	Gemini   GeminiConfig
	Groq     GroqConfig
	Geocoder GeocoderConfig
	Web      WebConfig
	Prices   PricesConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// LegacyDBConfig points at the MySQL database of the previous backend.
// Only the `iwt import` command reads it.
type LegacyDBConfig struct {
	URL string // MySQL DSN (e.g., user:pass@tcp(host:3306)/travelphotos)
}

type StorageConfig struct {
	Endpoint  string // S3-compatible endpoint (host[:port], scheme optional)
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool // defaults to true
}

// AuthConfig selects how bearer tokens are verified. When UserinfoURL is
// set, tokens are checked against that endpoint. Otherwise StaticToken
// enables a single fixed token for local development.
type AuthConfig struct {
	UserinfoURL     string // OIDC userinfo endpoint (e.g., https://tenant.auth0.com/userinfo)
	StaticToken     string
	StaticPrincipal string // principal reported for the static token (defaults to "dev")
}

type AIConfig struct {
	Provider string // groq, openai or gemini (defaults to groq)
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type GroqConfig struct {
	APIKey string
}

type GeocoderConfig struct {
	BaseURL   string // defaults to the public Nominatim instance
	UserAgent string // identifies this deployment to the geocoder
	Zoom      int    // reverse geocoding detail level (defaults to 10)
}

type WebConfig struct {
	Port int    // overrides the serve --port flag when set
	Host string // overrides the serve --host flag when set
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

// ModelPricing holds input/output token prices in USD per 1M tokens.
type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envBool reads an environment variable and parses it as a boolean.
// Returns the default value if the env var is unset, empty, or invalid.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		LegacyDB: LegacyDBConfig{
			URL: os.Getenv("LEGACY_DATABASE_URL"),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    os.Getenv("STORAGE_BUCKET"),
			Region:    os.Getenv("STORAGE_REGION"),
			UseSSL:    envBool("STORAGE_USE_SSL", true),
		},
		Auth: AuthConfig{
			UserinfoURL:     os.Getenv("AUTH_USERINFO_URL"),
			StaticToken:     os.Getenv("AUTH_STATIC_TOKEN"),
			StaticPrincipal: os.Getenv("AUTH_STATIC_PRINCIPAL"),
		},
		AI: AIConfig{
			Provider: os.Getenv("AI_PROVIDER"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Groq: GroqConfig{
			APIKey: os.Getenv("GROQ_API_KEY"),
		},
		Geocoder: GeocoderConfig{
			BaseURL:   os.Getenv("GEOCODER_URL"),
			UserAgent: os.Getenv("GEOCODER_USER_AGENT"),
			Zoom:      envInt("GEOCODER_ZOOM", 0),
		},
		Web: WebConfig{
			Port: envInt("WEB_PORT", 0),
			Host: os.Getenv("WEB_HOST"),
		},
		Prices: prices,
	}
}

// GetModelPricing returns pricing for a specific model, with fallback defaults
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	// Return zero pricing if model not found
	return ModelPricing{}
}
