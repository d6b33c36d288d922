// Package config loads the settings of the synopsys binaries from the
// environment and optional dotenv files.
package config

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/casualjim/synopsys/broker"
	"github.com/casualjim/synopsys/pkg/natsx"
	"github.com/casualjim/synopsys/pkg/redisx"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const (
	EnvBackend  = "SYNOPSYS_BACKEND"
	EnvLogLevel = "SYNOPSYS_LOG_LEVEL"
	EnvNATSURL  = "NATS_URL"
	EnvRedisURL = "REDIS_URL"

	// EnvMetricsAddr is the listen address of the Prometheus endpoint, empty disables it.
	EnvMetricsAddr = "SYNOPSYS_METRICS_ADDR"
)

// Backend names a broker implementation.
type Backend string

const (
	Memory Backend = "memory"
	NATS   Backend = "nats"
	Redis  Backend = "redis"
)

// ErrUnknownBackend is returned for a SYNOPSYS_BACKEND value that names no broker.
var ErrUnknownBackend = errors.New("unknown backend")

type Config struct {
	Backend     Backend
	NATSURL     string
	RedisURL    string
	LogLevel    slog.Level
	MetricsAddr string
}

// Load reads the dotenv files into the process environment, without overriding
// variables that are already set, and then parses it. Without files it reads
// .env when present.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env: %w", err)
		}
	}
	return FromEnv()
}

// FromEnv parses the process environment.
func FromEnv() (Config, error) {
	cfg := Config{
		Backend:     Backend(strings.ToLower(cmp.Or(os.Getenv(EnvBackend), string(Memory)))),
		NATSURL:     natsx.URL(),
		RedisURL:    redisx.URL(),
		MetricsAddr: os.Getenv(EnvMetricsAddr),
	}
	switch cfg.Backend {
	case Memory, NATS, Redis:
	default:
		return Config{}, fmt.Errorf("%s=%q: %w", EnvBackend, cfg.Backend, ErrUnknownBackend)
	}

	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}
	return cfg, nil
}

// Broker builds the configured backend. Start it with Connect. The returned
// function releases the clients the broker does not own.
func (c Config) Broker(ctx context.Context) (broker.Backend, func() error, error) {
	nop := func() error { return nil }

	switch c.Backend {
	case NATS:
		return broker.NATSURL(c.NATSURL, nats.Name(natsx.ClientName), nats.Compression(true)), nop, nil
	case Redis:
		opts, err := redisx.Options(c.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return broker.Redis(client), client.Close, nil
	default:
		return broker.Local(), nop, nil
	}
}
