// Package redisx builds Redis clients from the environment.
package redisx

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultURL is used when REDIS_URL is not set.
const DefaultURL = "redis://localhost:6379/0"

// URL returns the REDIS_URL environment variable, or DefaultURL.
func URL() string {
	return cmp.Or(os.Getenv("REDIS_URL"), DefaultURL)
}

// Options parses a redis:// URL and applies the connection timeouts used by
// every client of this module.
func Options(url string) (*redis.Options, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return opts, nil
}

// NewClient connects to the server named by REDIS_URL and checks it answers.
func NewClient(ctx context.Context) (*redis.Client, error) {
	opts, err := Options(URL())
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
