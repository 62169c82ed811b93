package config

import (
	"os"
	"strconv"
	"time"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

type Config struct {
	Mode Mode

	Port     string
	LogLevel string

	// HTTP server timeouts.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Completion settings.
	ModelName  string
	UseMockLLM bool // true = use mock even with a real key (useful for dev)

	// Pipeline settings.
	MaxRounds int // generation/reflection iteration cap

	// Worker pool settings.
	Workers   int
	QueueSize int

	// Search settings.
	MaxSearchQueries  int           // per-session live query cap
	SearchMinInterval time.Duration // pacing between live provider queries
	SearchTimeout     time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Load reads all env vars and builds the config
func Load() *Config {
	modeStr := getEnv("NOESIS_MODE", "local")
	var mode Mode
	switch modeStr {
	case "cloud":
		mode = ModeCloud
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port:     getEnv("NOESIS_PORT", "8080"),
		LogLevel: getEnv("NOESIS_LOG_LEVEL", "info"),

		ReadTimeout:  getDurationEnv("NOESIS_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDurationEnv("NOESIS_WRITE_TIMEOUT", 60*time.Second),

		ModelName:  getEnv("NOESIS_MODEL_NAME", "gemini-2.5-flash"),
		UseMockLLM: getBoolEnv("NOESIS_USE_MOCK_LLM", mode == ModeLocal),

		MaxRounds: getIntEnv("NOESIS_MAX_ROUNDS", 3),

		Workers:   getIntEnv("NOESIS_WORKERS", 4),
		QueueSize: getIntEnv("NOESIS_QUEUE_SIZE", 64),

		MaxSearchQueries:  getIntEnv("NOESIS_MAX_SEARCH_QUERIES", 20),
		SearchMinInterval: getDurationEnv("NOESIS_SEARCH_MIN_INTERVAL", 2*time.Second),
		SearchTimeout:     getDurationEnv("NOESIS_SEARCH_TIMEOUT", 15*time.Second),
	}

	return cfg
}
