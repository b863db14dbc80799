package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Addr          string
	IdleWindow    time.Duration
	SweepInterval time.Duration
	PostgresURL   string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	LogLevel      zerolog.Level
	LogPretty     bool
	FrontendDir   string
	DefaultRegime string
}

// Load reads the environment. PORT wins over ADDR so hosted platforms can
// inject the listen port.
func Load() Config {
	addr := getEnv("ADDR", ":8080")
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	return Config{
		Addr:          addr,
		IdleWindow:    durationEnv("IDLE_WINDOW", 10*time.Minute),
		SweepInterval: durationEnv("SWEEP_INTERVAL", 5*time.Second),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		KafkaBrokers:  listEnv("KAFKA_BROKERS"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "game-events"),
		KafkaGroup:    getEnv("KAFKA_GROUP", "analytics-consumer"),
		LogLevel:      levelEnv("LOG_LEVEL", zerolog.InfoLevel),
		LogPretty:     boolEnv("LOG_PRETTY"),
		FrontendDir:   os.Getenv("FRONTEND_DIR"),
		DefaultRegime: getEnv("DEFAULT_REGIME", "classic"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// durationEnv accepts Go durations ("90s") or a bare number of seconds.
// Zero and negative values fall back.
func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		parsed, aerr := strconv.Atoi(v)
		if aerr != nil {
			return fallback
		}
		d = time.Duration(parsed) * time.Second
	}
	if d <= 0 {
		return fallback
	}
	return d
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func levelEnv(key string, fallback zerolog.Level) zerolog.Level {
	if v := os.Getenv(key); v != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			return lvl
		}
	}
	return fallback
}

func boolEnv(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
