package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names and prefixes.
const (
	EnvConfigFile = "INGEST_CONFIG"
	envPrefix     = "INGEST_"
	neo4jPrefix   = "NEO4J_"
	redisPrefix   = "INGEST_REDIS_"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if INGEST_CONFIG is set
//  3. env (prefix INGEST_, INGEST_REDIS_ nests under redis.)
//  4. env (prefix NEO4J_, nested under neo4j.)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// INGEST_BATCH_MAX_ITEMS -> batch_max_items, INGEST_REDIS_ADDR -> redis.addr.
	// Underscores are preserved to match koanf tags on the struct.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		if strings.HasPrefix(s, redisPrefix) {
			return "redis." + strings.ToLower(strings.TrimPrefix(s, redisPrefix))
		}
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	// NEO4J_URI -> neo4j.uri, NEO4J_MAX_POOL_SIZE -> neo4j.max_pool_size.
	neo4jProvider := env.Provider(neo4jPrefix, ".", func(s string) string {
		return "neo4j." + strings.ToLower(strings.TrimPrefix(s, neo4jPrefix))
	})
	if err := k.Load(neo4jProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return &cfg, nil
}
