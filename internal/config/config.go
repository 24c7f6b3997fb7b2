// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - All functions accept context.Context as the first parameter.
// - Load errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"strings"
)

// Metric node policies, see graph.MetricPolicy.
const (
	MetricPolicyAppend = "append"
	MetricPolicyMerge  = "merge"
)

// Store backends.
const (
	StoreNeo4j  = "neo4j"
	StoreMemory = "memory"
)

// Credential backends.
const (
	CredentialsStatic = "static"
	CredentialsRedis  = "redis"
)

// Config contains process configuration shared by the server and the CLI.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// OntologyPath points at the unit definition document (.ttl, .yaml, .json).
	OntologyPath string `koanf:"ontology_path"`

	// MappingDir is the root of the per-coach mapping files.
	MappingDir string `koanf:"mapping_dir"`

	// MetricPolicy is append (one Metric node per observation) or merge.
	MetricPolicy string `koanf:"metric_policy"`

	// StoreBackend selects neo4j or the in-process memory store.
	StoreBackend string `koanf:"store_backend"`

	// CredentialsBackend selects the API key lookup: static or redis.
	CredentialsBackend string `koanf:"credentials_backend"`

	// APIKeys maps API keys to coach ids for the static backend.
	APIKeys map[string]string `koanf:"api_keys"`

	// AllowedOrigins is the CORS origin allow-list.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// BatchMaxItems caps POST /ingest/batch.
	BatchMaxItems int `koanf:"batch_max_items"`

	// WriteWorkers is the number of concurrent graph writes per batch.
	WriteWorkers int `koanf:"write_workers"`

	Redis RedisConfig `koanf:"redis"`
	Neo4j Neo4jConfig `koanf:"neo4j"`
}

// RedisConfig configures the redis credential backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	// HashKey is the redis hash holding api key -> coach id.
	HashKey string `koanf:"hash_key"`
}

// Neo4jConfig carries the graph store connection settings. They come from
// NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD and friends.
type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	// Pass is the legacy NEO4J_PASS spelling, used when Password is empty.
	Pass           string `koanf:"pass"`
	Database       string `koanf:"database"`
	MaxPoolSize    int    `koanf:"max_pool_size"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// Secret returns the password, falling back to the legacy key.
func (n Neo4jConfig) Secret() string {
	if n.Password != "" {
		return n.Password
	}
	return n.Pass
}

// Missing lists the NEO4J_* variables that are not set. Presence only.
func (n Neo4jConfig) Missing() []string {
	var missing []string
	if strings.TrimSpace(n.URI) == "" {
		missing = append(missing, "NEO4J_URI")
	}
	if strings.TrimSpace(n.User) == "" {
		missing = append(missing, "NEO4J_USER")
	}
	if strings.TrimSpace(n.Secret()) == "" {
		missing = append(missing, "NEO4J_PASSWORD")
	}
	return missing
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":8000",
		OntologyPath:       "core/ontology.ttl",
		MappingDir:         "mappings",
		MetricPolicy:       MetricPolicyAppend,
		StoreBackend:       StoreNeo4j,
		CredentialsBackend: CredentialsStatic,
		APIKeys:            map[string]string{},
		AllowedOrigins:     []string{"http://localhost:3000"},
		BatchMaxItems:      1000,
		WriteWorkers:       1,
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			HashKey: "ingest:api_keys",
		},
		Neo4j: Neo4jConfig{
			MaxPoolSize:    50,
			TimeoutSeconds: 10,
		},
	}
}

// Validate checks enumerations and required values.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MetricPolicy != MetricPolicyAppend && c.MetricPolicy != MetricPolicyMerge:
		return fmt.Errorf("%w: metric_policy must be %q or %q, got %q", ErrInvalidConfig, MetricPolicyAppend, MetricPolicyMerge, c.MetricPolicy)
	case c.StoreBackend != StoreNeo4j && c.StoreBackend != StoreMemory:
		return fmt.Errorf("%w: store_backend must be %q or %q, got %q", ErrInvalidConfig, StoreNeo4j, StoreMemory, c.StoreBackend)
	case c.CredentialsBackend != CredentialsStatic && c.CredentialsBackend != CredentialsRedis:
		return fmt.Errorf("%w: credentials_backend must be %q or %q, got %q", ErrInvalidConfig, CredentialsStatic, CredentialsRedis, c.CredentialsBackend)
	case c.BatchMaxItems <= 0:
		return fmt.Errorf("%w: batch_max_items must be positive", ErrInvalidConfig)
	case c.WriteWorkers <= 0:
		return fmt.Errorf("%w: write_workers must be positive", ErrInvalidConfig)
	case strings.TrimSpace(c.OntologyPath) == "":
		return fmt.Errorf("%w: ontology_path must not be empty", ErrInvalidConfig)
	}
	return nil
}
