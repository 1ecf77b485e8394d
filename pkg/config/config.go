package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ytscribe/ytscribe/pkg/utils"
)

const (
	envMinDelayMs        = "YTSCRIBE_MIN_DELAY_MS"
	envMaxRetries        = "YTSCRIBE_MAX_RETRIES"
	envBackoffMultiplier = "YTSCRIBE_BACKOFF_MULTIPLIER"
	envJitterFraction    = "YTSCRIBE_JITTER_FRACTION"
	envChunkSize         = "YTSCRIBE_CHUNK_SIZE"
	envProgressInterval  = "YTSCRIBE_PROGRESS_INTERVAL"
	envMaxBatchSize      = "YTSCRIBE_MAX_BATCH_SIZE"
	envOutputDir         = "YTSCRIBE_OUTPUT_DIR"
	envLogLevel          = "YTSCRIBE_LOG_LEVEL"

	defaultMinDelayMs        = 2000
	defaultMaxRetries        = 3
	defaultBackoffMultiplier = 2.0
	defaultJitterFraction    = 0.2
	defaultChunkSize         = 1000
	defaultProgressInterval  = 5000
	defaultMaxBatchSize      = 50
	defaultOutputDir         = "./transcripts"
	defaultLogLevel          = "info"
)

// Config is the process-wide configuration, read once at startup.
type Config struct {
	MinDelayMs        int
	MaxRetries        int
	BackoffMultiplier float64
	JitterFraction    float64
	ChunkSize         int
	ProgressInterval  int
	MaxBatchSize      int
	OutputDir         string
	LogLevel          string
}

func Default() Config {
	return Config{
		MinDelayMs:        defaultMinDelayMs,
		MaxRetries:        defaultMaxRetries,
		BackoffMultiplier: defaultBackoffMultiplier,
		JitterFraction:    defaultJitterFraction,
		ChunkSize:         defaultChunkSize,
		ProgressInterval:  defaultProgressInterval,
		MaxBatchSize:      defaultMaxBatchSize,
		OutputDir:         defaultOutputDir,
		LogLevel:          defaultLogLevel,
	}
}

// Load builds the configuration from the environment, after merging in a
// .env file when one exists in the working directory.
func Load() (Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := Default()

	var err error
	cfg.MinDelayMs, err = intFromEnv(envMinDelayMs, cfg.MinDelayMs)
	if err != nil {
		return Config{}, utils.WrapIfNotNil(err)
	}
	cfg.MaxRetries, err = intFromEnv(envMaxRetries, cfg.MaxRetries)
	if err != nil {
		return Config{}, utils.WrapIfNotNil(err)
	}
	cfg.BackoffMultiplier, err = floatFromEnv(envBackoffMultiplier, cfg.BackoffMultiplier)
	if err != nil {
		return Config{}, utils.WrapIfNotNil(err)
	}
	cfg.JitterFraction, err = floatFromEnv(envJitterFraction, cfg.JitterFraction)
	if err != nil {
		return Config{}, utils.WrapIfNotNil(err)
	}
	cfg.ChunkSize, err = intFromEnv(envChunkSize, cfg.ChunkSize)
	if err != nil {
		return Config{}, utils.WrapIfNotNil(err)
	}
	cfg.ProgressInterval, err = intFromEnv(envProgressInterval, cfg.ProgressInterval)
	if err != nil {
		return Config{}, utils.WrapIfNotNil(err)
	}
	cfg.MaxBatchSize, err = intFromEnv(envMaxBatchSize, cfg.MaxBatchSize)
	if err != nil {
		return Config{}, utils.WrapIfNotNil(err)
	}

	if dir := strings.TrimSpace(os.Getenv(envOutputDir)); dir != "" {
		cfg.OutputDir = dir
	}
	if level := strings.TrimSpace(os.Getenv(envLogLevel)); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, utils.WrapIfNotNil(err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MinDelayMs <= 0 {
		return errors.New("min delay must be positive")
	}
	if c.MaxRetries <= 0 {
		return errors.New("max retries must be positive")
	}
	if c.BackoffMultiplier <= 0 {
		return errors.New("backoff multiplier must be positive")
	}
	if c.JitterFraction < 0 || c.JitterFraction >= 1 {
		return errors.New("jitter fraction must be in [0, 1)")
	}
	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}
	if c.ProgressInterval <= 0 {
		return errors.New("progress interval must be positive")
	}
	if c.MaxBatchSize <= 0 {
		return errors.New("max batch size must be positive")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output dir is required")
	}
	return nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	return value, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, raw, err)
	}
	return value, nil
}
