// Package config provides configuration management for asklens.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 37880

	// DefaultEmbeddingModel is the offline model used when nothing is configured.
	DefaultEmbeddingModel = "hashing"

	// DefaultGroupingThreshold is the minimum cosine similarity for two questions to share a cluster.
	DefaultGroupingThreshold = 0.85

	// DefaultMaxGroups caps the organization-wide question list in reports.
	DefaultMaxGroups = 10
)

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerHost   string  `json:"worker_host"`
	WorkerPort   int     `json:"worker_port"`
	AuthToken    string  `json:"-"`
	MaxBodyBytes int64   `json:"max_body_bytes"`
	RateLimit    float64 `json:"rate_limit"` // requests per second per client
	RateBurst    int     `json:"rate_burst"`
	LogLevel     string  `json:"log_level"`

	// Embedding settings
	EmbeddingModel       string `json:"embedding_model"` // registry version: "hashing" or "openai"
	EmbeddingBaseURL     string `json:"embedding_base_url"`
	EmbeddingAPIKey      string `json:"-"`
	EmbeddingModelName   string `json:"embedding_model_name"` // e.g. "text-embedding-3-small"
	EmbeddingDimensions  int    `json:"embedding_dimensions"`
	EmbeddingTimeoutSecs int    `json:"embedding_timeout_secs"`
	EmbeddingMaxTokens   int    `json:"embedding_max_tokens"`

	// Embedding cache: "" (disabled), "bolt" or "pgvector"
	EmbeddingCache     string `json:"embedding_cache"`
	EmbeddingCachePath string `json:"embedding_cache_path"`

	// Grouping settings
	GroupingThreshold    float64 `json:"grouping_threshold"`
	GroupingMaxGroups    int     `json:"grouping_max_groups"`
	TopDocuments         int     `json:"top_documents"`
	QuestionsPerDocument int     `json:"questions_per_document"`
	RedactQuestions      bool    `json:"redact_questions"`

	// Question source: "sqlite" or "postgres"
	QuestionSource string `json:"question_source"`
	DatabaseDSN    string `json:"-"`
	SQLitePath     string `json:"sqlite_path"`
	MaxConns       int    `json:"max_conns"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (~/.asklens), overridable with ASKLENS_DATA_DIR.
func DataDir() string {
	if dir := os.Getenv("ASKLENS_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".asklens")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings creates a default settings file if it doesn't exist.
func EnsureSettings() error {
	path := SettingsPath()

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	defaultSettings := `{
  "ASKLENS_WORKER_PORT": 37880,
  "ASKLENS_EMBEDDING_MODEL": "hashing",
  "ASKLENS_GROUPING_THRESHOLD": 0.85,
  "ASKLENS_GROUPING_MAX_GROUPS": 10
}
`
	return os.WriteFile(path, []byte(defaultSettings), 0600)
}

// EnsureAll ensures all required directories and files exist.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerHost:           "127.0.0.1",
		WorkerPort:           DefaultWorkerPort,
		MaxBodyBytes:         1 << 20,
		RateLimit:            20,
		RateBurst:            40,
		LogLevel:             "info",
		EmbeddingModel:       DefaultEmbeddingModel,
		EmbeddingBaseURL:     "https://api.openai.com/v1",
		EmbeddingModelName:   "text-embedding-3-small",
		EmbeddingDimensions:  1536,
		EmbeddingTimeoutSecs: 30,
		EmbeddingMaxTokens:   8191,
		EmbeddingCachePath:   filepath.Join(DataDir(), "embeddings.db"),
		GroupingThreshold:    DefaultGroupingThreshold,
		GroupingMaxGroups:    DefaultMaxGroups,
		TopDocuments:         5,
		QuestionsPerDocument: 20,
		RedactQuestions:      true,
		QuestionSource:       "sqlite",
		SQLitePath:           filepath.Join(DataDir(), "questions.db"),
		MaxConns:             4,
	}
}

// Load loads configuration from the settings file, merging with defaults.
// Environment variables take precedence over the settings file.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil {
		// Load settings into a map to preserve unknown fields
		var settings map[string]interface{}
		if jsonErr := json.Unmarshal(data, &settings); jsonErr == nil {
			applySettings(cfg, func(key string) (interface{}, bool) {
				v, ok := settings[key]
				return v, ok
			})
		}
	}

	applySettings(cfg, envLookup)

	return cfg, nil
}

// applySettings maps ASKLENS_* keys onto cfg. Values may be JSON-decoded
// (float64, bool, string) or raw environment strings.
func applySettings(cfg *Config, lookup func(string) (interface{}, bool)) {
	if v, ok := intSetting(lookup, "ASKLENS_WORKER_PORT"); ok && v > 0 {
		cfg.WorkerPort = v
	}
	if v, ok := stringSetting(lookup, "ASKLENS_WORKER_HOST"); ok && v != "" {
		cfg.WorkerHost = v
	}
	if v, ok := stringSetting(lookup, "ASKLENS_AUTH_TOKEN"); ok {
		cfg.AuthToken = v
	}
	if v, ok := intSetting(lookup, "ASKLENS_MAX_BODY_BYTES"); ok && v > 0 {
		cfg.MaxBodyBytes = int64(v)
	}
	if v, ok := floatSetting(lookup, "ASKLENS_RATE_LIMIT"); ok && v > 0 {
		cfg.RateLimit = v
	}
	if v, ok := intSetting(lookup, "ASKLENS_RATE_BURST"); ok && v > 0 {
		cfg.RateBurst = v
	}
	if v, ok := stringSetting(lookup, "ASKLENS_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}

	// Embedding settings
	if v, ok := stringSetting(lookup, "ASKLENS_EMBEDDING_MODEL"); ok && v != "" {
		cfg.EmbeddingModel = v
	}
	if v, ok := stringSetting(lookup, "ASKLENS_EMBEDDING_BASE_URL"); ok && v != "" {
		cfg.EmbeddingBaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := stringSetting(lookup, "ASKLENS_EMBEDDING_API_KEY"); ok && v != "" {
		cfg.EmbeddingAPIKey = v
	}
	if v, ok := stringSetting(lookup, "ASKLENS_EMBEDDING_MODEL_NAME"); ok && v != "" {
		cfg.EmbeddingModelName = v
	}
	if v, ok := intSetting(lookup, "ASKLENS_EMBEDDING_DIMENSIONS"); ok && v > 0 {
		cfg.EmbeddingDimensions = v
	}
	if v, ok := intSetting(lookup, "ASKLENS_EMBEDDING_TIMEOUT_SECS"); ok && v > 0 {
		cfg.EmbeddingTimeoutSecs = v
	}
	if v, ok := intSetting(lookup, "ASKLENS_EMBEDDING_MAX_TOKENS"); ok && v > 0 {
		cfg.EmbeddingMaxTokens = v
	}
	if v, ok := stringSetting(lookup, "ASKLENS_EMBEDDING_CACHE"); ok {
		cfg.EmbeddingCache = v
	}
	if v, ok := stringSetting(lookup, "ASKLENS_EMBEDDING_CACHE_PATH"); ok && v != "" {
		cfg.EmbeddingCachePath = v
	}

	// Grouping settings
	if v, ok := floatSetting(lookup, "ASKLENS_GROUPING_THRESHOLD"); ok && v > 0 && v <= 1 {
		cfg.GroupingThreshold = v
	}
	if v, ok := intSetting(lookup, "ASKLENS_GROUPING_MAX_GROUPS"); ok && v >= 0 {
		cfg.GroupingMaxGroups = v
	}
	if v, ok := intSetting(lookup, "ASKLENS_TOP_DOCUMENTS"); ok && v >= 0 {
		cfg.TopDocuments = v
	}
	if v, ok := intSetting(lookup, "ASKLENS_QUESTIONS_PER_DOCUMENT"); ok && v > 0 {
		cfg.QuestionsPerDocument = v
	}
	if v, ok := boolSetting(lookup, "ASKLENS_REDACT_QUESTIONS"); ok {
		cfg.RedactQuestions = v
	}

	// Question source
	if v, ok := stringSetting(lookup, "ASKLENS_QUESTION_SOURCE"); ok && v != "" {
		cfg.QuestionSource = v
	}
	if v, ok := stringSetting(lookup, "ASKLENS_DATABASE_DSN"); ok && v != "" {
		cfg.DatabaseDSN = v
	}
	if v, ok := stringSetting(lookup, "ASKLENS_SQLITE_PATH"); ok && v != "" {
		cfg.SQLitePath = v
	}
	if v, ok := intSetting(lookup, "ASKLENS_MAX_CONNS"); ok && v > 0 {
		cfg.MaxConns = v
	}
}

func envLookup(key string) (interface{}, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil, false
	}
	return v, true
}

func stringSetting(lookup func(string) (interface{}, bool), key string) (string, bool) {
	raw, ok := lookup(key)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func floatSetting(lookup func(string) (interface{}, bool), key string) (float64, bool) {
	raw, ok := lookup(key)
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func intSetting(lookup func(string) (interface{}, bool), key string) (int, bool) {
	f, ok := floatSetting(lookup, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func boolSetting(lookup func(string) (interface{}, bool), key string) (bool, bool) {
	raw, ok := lookup(key)
	if !ok {
		return false, false
	}
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		configMu.Lock()
		globalConfig = cfg
		configMu.Unlock()
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Reload re-reads the settings file and replaces the global configuration.
// On error the previous configuration stays in place.
func Reload() (*Config, error) {
	Get()

	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return cfg, nil
}
