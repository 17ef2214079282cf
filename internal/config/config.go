package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"guidance-chat/internal/dispatch"
	"guidance-chat/internal/integrations/paramstore"
	"guidance-chat/internal/logging"
)

// RedisURLParam is read under PARAM_PREFIX when REDIS_URL is unset.
const RedisURLParam = "config/redis_url"

type Config struct {
	StateTable  string
	ParamPrefix string
	RedisURL    string
	Concurrency int
	Queues      map[string]int
	LogLevel    slog.Level
}

// Load reads configuration from the environment, applying a .env file in
// the working directory first when one exists. Variables already set win.
func Load(ctx context.Context, params paramstore.Lookuper) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	var err error
	if cfg.StateTable, err = required("STATE_TABLE"); err != nil {
		return Config{}, err
	}
	if cfg.ParamPrefix, err = required("PARAM_PREFIX"); err != nil {
		return Config{}, err
	}
	if cfg.LogLevel, err = logLevel(os.Getenv("LOG_LEVEL")); err != nil {
		return Config{}, err
	}
	cfg.Concurrency = envInt("ASYNQ_CONCURRENCY", 10)
	cfg.Queues = dispatch.ParseQueueWeights(envString("ASYNQ_QUEUES", "guidance=1"))
	if len(cfg.Queues) == 0 {
		cfg.Queues = map[string]int{"guidance": 1}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if cfg.RedisURL == "" {
		if params == nil {
			return Config{}, errors.New("config: REDIS_URL is not set and no parameter store is available")
		}
		name := paramstore.Path(cfg.ParamPrefix, RedisURLParam)
		v, found, err := params.Lookup(ctx, name)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", name, err)
		}
		if !found || strings.TrimSpace(v) == "" {
			return Config{}, fmt.Errorf("config: REDIS_URL is not set and %s does not exist", name)
		}
		cfg.RedisURL = strings.TrimSpace(v)
	}
	return cfg, nil
}

// NewLogger returns a JSON logger at the configured level. Records logged
// with a request context carry its correlationId.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(logging.NewContextHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.LogLevel})))
}

func required(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("config: required environment variable %s is not set", key)
	}
	return v, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func logLevel(v string) (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(v) == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return 0, fmt.Errorf("config: invalid LOG_LEVEL %q: %w", v, err)
	}
	return lvl, nil
}
