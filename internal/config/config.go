// Package config loads livestore settings from YAML and validates them
// against an embedded CUE schema.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/livestore/internal/cachepool"
	"github.com/roach88/livestore/internal/record"
	"github.com/roach88/livestore/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full livestore configuration.
type Config struct {
	Store   Store   `yaml:"store" json:"store"`
	Workers Workers `yaml:"workers" json:"workers"`
	Cache   Cache   `yaml:"cache" json:"cache"`
	Log     Log     `yaml:"log" json:"log"`
}

type Store struct {
	Dir              string         `yaml:"dir" json:"dir"`
	BusyTimeoutMS    int            `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
	DefaultCopyDepth int            `yaml:"default_copy_depth" json:"default_copy_depth"`
	CopyDepth        map[string]int `yaml:"copy_depth,omitempty" json:"copy_depth,omitempty"`
}

// Workers sizes the worker pool. Size 0 runs every submission on its own
// goroutine.
type Workers struct {
	Size int `yaml:"size" json:"size"`
}

type Cache struct {
	DefaultCapacity int            `yaml:"default_capacity" json:"default_capacity"`
	Pools           map[string]int `yaml:"pools,omitempty" json:"pools,omitempty"`
}

type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Store: Store{
			Dir:              "./data",
			BusyTimeoutMS:    5000,
			DefaultCopyDepth: record.Unlimited,
		},
		Workers: Workers{Size: 2},
		Cache:   Cache{DefaultCapacity: cachepool.DefaultCapacity},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// ValidationError reports the first schema violation.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Path, e.Message)
}

// Load reads a YAML file over Default and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result. Keys the
// document omits keep their defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the #Config schema.
func Validate(cfg Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(cfg))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	return &ValidationError{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
}

// StoreConfig converts the store section for store.Open.
func (c Config) StoreConfig() store.Config {
	depths := make(map[record.Type]int, len(c.Store.CopyDepth))
	for rt, d := range c.Store.CopyDepth {
		depths[record.Type(rt)] = d
	}
	return store.Config{
		Dir:              c.Store.Dir,
		BusyTimeout:      time.Duration(c.Store.BusyTimeoutMS) * time.Millisecond,
		DefaultCopyDepth: c.Store.DefaultCopyDepth,
		CopyDepth:        depths,
	}
}

// CacheOptions converts the cache section for cachepool.New.
func (c Config) CacheOptions() []cachepool.Option {
	opts := []cachepool.Option{cachepool.WithDefaultCapacity(c.Cache.DefaultCapacity)}
	for name, n := range c.Cache.Pools {
		opts = append(opts, cachepool.WithCapacity(name, n))
	}
	return opts
}

// Level maps log.level to a slog level; unknown values mean info.
func (c Config) Level() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
