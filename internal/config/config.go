package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix of every environment variable read by Load.
	EnvPrefix = "FACEGATE_"
	// EnvConfigFile names an optional YAML file layered between defaults and env.
	EnvConfigFile = "FACEGATE_CONFIG"
)

// Store backends
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Face engines
const (
	EngineDlib   = "dlib"
	EngineRemote = "remote"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Mongo    MongoConfig    `koanf:"mongo"`
	Postgres PostgresConfig `koanf:"postgres"`
	Face     FaceConfig     `koanf:"face"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	RateLimit       float64       `koanf:"rate_limit"` // requests per second per client IP, 0 disables
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	TrustProxy      bool          `koanf:"trust_proxy"` // take the client IP from X-Forwarded-For / X-Real-IP
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for the HTTP listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StoreConfig struct {
	Backend string `koanf:"backend"` // mongo or postgres
}

type MongoConfig struct {
	URI            string        `koanf:"uri"`
	Database       string        `koanf:"database"`
	Collection     string        `koanf:"collection"`
	MinPoolSize    uint64        `koanf:"min_pool_size"`
	MaxPoolSize    uint64        `koanf:"max_pool_size"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

type PostgresConfig struct {
	URL          string `koanf:"url"` // PostgreSQL connection URL
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
}

type FaceConfig struct {
	Engine    string `koanf:"engine"`     // dlib or remote
	ModelsDir string `koanf:"models_dir"` // dlib model files
	Detector  string `koanf:"detector"`   // hog or cnn
	RemoteURL string `koanf:"remote_url"` // embedding server for the remote engine

	// Tolerance is a Euclidean distance and applies to the dlib engine.
	Tolerance       float64 `koanf:"tolerance"`
	// RemoteTolerance is a cosine distance (1 - similarity) and applies to the remote engine.
	RemoteTolerance float64 `koanf:"remote_tolerance"`

	MaxImageSize int `koanf:"max_image_size"` // 0 keeps images at original size
	MaxPixels    int `koanf:"max_pixels"`     // larger images are rejected before decoding
}

// EngineTolerance returns the match tolerance for the configured engine.
func (c FaceConfig) EngineTolerance() float64 {
	if c.Engine == EngineRemote {
		return c.RemoteTolerance
	}
	return c.Tolerance
}

// SetEngineTolerance overrides the match tolerance of the configured engine.
func (c *FaceConfig) SetEngineTolerance(tol float64) {
	if c.Engine == EngineRemote {
		c.RemoteTolerance = tol
		return
	}
	c.Tolerance = tol
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5001,
			MaxBodyBytes:    20 << 20,
			RateLimit:       25,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Backend: StoreMongo,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "intelliface",
			Collection:     "users",
			MinPoolSize:    5,
			MaxPoolSize:    10,
			ConnectTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Face: FaceConfig{
			Engine:          EngineDlib,
			ModelsDir:       "models",
			Detector:        "hog",
			RemoteURL:       "http://localhost:8000",
			Tolerance:       0.55,
			RemoteTolerance: 0.5,
			MaxPixels:       40_000_000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envKey maps FACEGATE_MONGO_MAX_POOL_SIZE to mongo.max_pool_size.
// The first underscore after the prefix separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Load builds a Config by layering defaults, an optional YAML file and env vars.
// Order of precedence (low -> high):
//  1. Default()
//  2. file named by FACEGATE_CONFIG
//  3. FACEGATE_* environment variables
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server max_body_bytes must be positive")
	}
	if c.Server.RateLimit < 0 {
		return errors.New("server rate_limit must not be negative")
	}

	switch c.Store.Backend {
	case StoreMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" || c.Mongo.Collection == "" {
			return errors.New("mongo uri, database and collection are required")
		}
	case StorePostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres url is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Face.Engine {
	case EngineDlib:
		if c.Face.Detector != "hog" && c.Face.Detector != "cnn" {
			return fmt.Errorf("unknown face detector %q", c.Face.Detector)
		}
	case EngineRemote:
		if c.Face.RemoteURL == "" {
			return errors.New("face remote_url is required for the remote engine")
		}
		if c.Face.RemoteTolerance <= 0 || c.Face.RemoteTolerance > 2 {
			return fmt.Errorf("face remote_tolerance must be in (0, 2], got %v", c.Face.RemoteTolerance)
		}
	default:
		return fmt.Errorf("unknown face engine %q", c.Face.Engine)
	}

	if c.Face.Tolerance <= 0 {
		return fmt.Errorf("face tolerance must be positive, got %v", c.Face.Tolerance)
	}
	if c.Face.MaxImageSize < 0 {
		return errors.New("face max_image_size must not be negative")
	}
	if c.Face.MaxPixels <= 0 {
		return errors.New("face max_pixels must be positive")
	}
	return nil
}

// PortFromEnv returns the plain PORT variable used by most PaaS platforms,
// or defaultVal if it is unset or invalid.
func PortFromEnv(defaultVal int) int {
	s := os.Getenv("PORT")
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}
