package config

import (
	"os"
	"strconv"
	"time"
)

// Environment holds the process configuration read from env vars. Review and
// job policy constants live here so they are named and overridable rather
// than hardcoded at call sites.
type Environment struct {
	Port string

	// GoodResponseMs separates Good from Hard for a correct timed answer.
	GoodResponseMs int
	// DesiredRetention is the target recall probability used for intervals.
	DesiredRetention float64

	JobMaxAttempts  int
	JobBatchSize    int
	JobPollInterval time.Duration
	JobStaleAfter   time.Duration

	GeneratorURL  string
	SimilarityURL string
}

var Env Environment

func init() {
	Env = Environment{
		Port:             envString("PORT", "8080"),
		GoodResponseMs:   envInt("GOOD_RESPONSE_MS", 10_000),
		DesiredRetention: envFloat("DESIRED_RETENTION", 0.9),
		JobMaxAttempts:   envInt("JOB_MAX_ATTEMPTS", 3),
		JobBatchSize:     envInt("JOB_BATCH_SIZE", 10),
		JobPollInterval:  envDuration("JOB_POLL_INTERVAL", 5*time.Second),
		JobStaleAfter:    envDuration("JOB_STALE_AFTER", 5*time.Minute),
		GeneratorURL:     os.Getenv("GENERATOR_URL"),
		SimilarityURL:    os.Getenv("SIMILARITY_URL"),
	}
}

func envString(key, fallback string) string {
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
