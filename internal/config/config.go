package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or text

	// Model (OpenAI-compatible). Empty base URL runs the heuristic variants.
	LLMBaseURL     string        `yaml:"llm_base_url"`
	LLMAPIKey      string        `yaml:"llm_api_key"`
	LLMModel       string        `yaml:"llm_model"`
	LLMTimeout     time.Duration `yaml:"llm_timeout"`
	LLMMaxTokens   int           `yaml:"llm_max_tokens"`
	LLMTemperature float64       `yaml:"llm_temperature"`
	LLMMaxRetries  int           `yaml:"llm_max_retries"`

	// Research loop
	MaxIterations        int     `yaml:"max_iterations"`
	SufficiencyThreshold float64 `yaml:"sufficiency_threshold"`
	RelevanceThreshold   float64 `yaml:"relevance_threshold"`
	TopK                 int     `yaml:"top_k"`
	GlobalDedup          bool    `yaml:"global_dedup"`

	// Parsing
	MaxChunkLength          int     `yaml:"max_chunk_length"`
	OverlapThreshold        float64 `yaml:"overlap_threshold"`
	ParseConcurrency        int     `yaml:"parse_concurrency"`
	MaxConcurrentTranscribe int     `yaml:"max_concurrent_transcribe"`
	TranscriptionCacheSize  int     `yaml:"transcription_cache_size"`
	PDFFallbackPdftotext    bool    `yaml:"pdf_fallback_pdftotext"`

	// Sessions and uploads
	SessionTTL     time.Duration `yaml:"session_ttl"`
	MaxSessions    int           `yaml:"max_sessions"`
	UploadDir      string        `yaml:"upload_dir"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port: "8090",

		LogLevel:  "info",
		LogFormat: "json",

		LLMModel:       "gpt-4o-mini",
		LLMTimeout:     60 * time.Second,
		LLMMaxTokens:   2000,
		LLMTemperature: 0.3,
		LLMMaxRetries:  3,

		MaxIterations:        3,
		SufficiencyThreshold: 0.7,
		RelevanceThreshold:   0.1,
		TopK:                 10,

		MaxChunkLength:          512,
		OverlapThreshold:        0.95,
		ParseConcurrency:        4,
		MaxConcurrentTranscribe: 4,
		TranscriptionCacheSize:  1024,
		PDFFallbackPdftotext:    true,

		SessionTTL:     1 * time.Hour,
		MaxSessions:    100,
		UploadDir:      filepath.Join(os.TempDir(), "docresearch"),
		MaxUploadBytes: 52428800, // 50MB
	}
}

// Load layers the YAML file at path (if any) and then the environment over
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.APIKey = envOr("API_KEY", c.APIKey)

	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)

	c.LLMBaseURL = envOr("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMAPIKey = envOr("LLM_API_KEY", c.LLMAPIKey)
	c.LLMModel = envOr("LLM_MODEL", c.LLMModel)
	c.LLMTimeout = envDuration("LLM_TIMEOUT", c.LLMTimeout)
	c.LLMMaxTokens = envInt("LLM_MAX_TOKENS", c.LLMMaxTokens)
	c.LLMTemperature = envFloat("LLM_TEMPERATURE", c.LLMTemperature)
	c.LLMMaxRetries = envInt("LLM_MAX_RETRIES", c.LLMMaxRetries)

	c.MaxIterations = envInt("MAX_ITERATIONS", c.MaxIterations)
	c.SufficiencyThreshold = envFloat("SUFFICIENCY_THRESHOLD", c.SufficiencyThreshold)
	c.RelevanceThreshold = envFloat("RELEVANCE_THRESHOLD", c.RelevanceThreshold)
	c.TopK = envInt("TOP_K", c.TopK)
	c.GlobalDedup = envBool("GLOBAL_DEDUP", c.GlobalDedup)

	c.MaxChunkLength = envInt("MAX_CHUNK_LENGTH", c.MaxChunkLength)
	c.OverlapThreshold = envFloat("OVERLAP_THRESHOLD", c.OverlapThreshold)
	c.ParseConcurrency = envInt("PARSE_CONCURRENCY", c.ParseConcurrency)
	c.MaxConcurrentTranscribe = envInt("MAX_CONCURRENT_TRANSCRIBE", c.MaxConcurrentTranscribe)
	c.TranscriptionCacheSize = envInt("TRANSCRIPTION_CACHE_SIZE", c.TranscriptionCacheSize)
	c.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", c.PDFFallbackPdftotext)

	c.SessionTTL = envDuration("SESSION_TTL", c.SessionTTL)
	c.MaxSessions = envInt("MAX_SESSIONS", c.MaxSessions)
	c.UploadDir = envOr("UPLOAD_DIR", c.UploadDir)
	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
}

// ModelEnabled reports whether a model endpoint is configured.
func (c Config) ModelEnabled() bool { return c.LLMBaseURL != "" }

func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("MAX_ITERATIONS must be positive, got %d", c.MaxIterations)
	}
	if c.SufficiencyThreshold <= 0 || c.SufficiencyThreshold > 1 {
		return fmt.Errorf("SUFFICIENCY_THRESHOLD must be in (0, 1], got %g", c.SufficiencyThreshold)
	}
	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("RELEVANCE_THRESHOLD must be in [0, 1], got %g", c.RelevanceThreshold)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.MaxChunkLength <= 0 {
		return fmt.Errorf("MAX_CHUNK_LENGTH must be positive, got %d", c.MaxChunkLength)
	}
	if c.ParseConcurrency <= 0 {
		return fmt.Errorf("PARSE_CONCURRENCY must be positive, got %d", c.ParseConcurrency)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
