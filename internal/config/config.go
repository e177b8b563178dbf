// Package config loads skipbench settings from a YAML file, the environment
// and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/metailurini/arenaskip"
)

// DefaultEnvPrefix is the environment variable prefix. Nested keys are
// separated by a double underscore: SKIPBENCH_LIST__MAX_LEVEL=8 sets
// list.max_level.
const DefaultEnvPrefix = "SKIPBENCH_"

var (
	ErrInvalidWorkers = errors.New("config: workload.workers must be positive")
	ErrInvalidOps     = errors.New("config: workload.ops_per_worker must not be negative")
	ErrInvalidKeys    = errors.New("config: workload.key_space must be positive")
	ErrInvalidMix     = errors.New("config: workload.mix weights must be non-negative with a positive sum")
	ErrInvalidRate    = errors.New("config: workload.rate must not be negative")
)

type List struct {
	MaxLevel    int   `koanf:"max_level"`
	BlockSize   int   `koanf:"block_size"`
	WorkerCache int   `koanf:"worker_cache"`
	MaxNodes    int64 `koanf:"max_nodes"`
}

// Mix holds relative operation weights.
type Mix struct {
	Insert int `koanf:"insert"`
	Remove int `koanf:"remove"`
	Find   int `koanf:"find"`
	Upsert int `koanf:"upsert"`
}

// Total returns the sum of all weights.
func (m Mix) Total() int {
	return m.Insert + m.Remove + m.Find + m.Upsert
}

type Workload struct {
	Workers      int     `koanf:"workers"`
	OpsPerWorker int     `koanf:"ops_per_worker"`
	KeySpace     int     `koanf:"key_space"`
	Mix          Mix     `koanf:"mix"`
	Rate         float64 `koanf:"rate"`
	Seed         uint64  `koanf:"seed"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type Metrics struct {
	Addr string `koanf:"addr"`
}

// Config is the full skipbench configuration.
type Config struct {
	List     List     `koanf:"list"`
	Workload Workload `koanf:"workload"`
	Log      Log      `koanf:"log"`
	Metrics  Metrics  `koanf:"metrics"`
}

// Default returns the configuration used when no source overrides a key.
func Default() Config {
	return Config{
		List: List{
			MaxLevel:    arenaskip.DefaultMaxLevel,
			BlockSize:   arenaskip.DefaultBlockSize,
			WorkerCache: arenaskip.DefaultWorkerCacheSize,
		},
		Workload: Workload{
			Workers:      4,
			OpsPerWorker: 100_000,
			KeySpace:     1 << 16,
			Mix:          Mix{Insert: 40, Remove: 20, Find: 30, Upsert: 10},
			Seed:         1,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Validate checks the workload section. List options are validated by
// arenaskip.New.
func (c Config) Validate() error {
	w := c.Workload
	switch {
	case w.Workers <= 0:
		return ErrInvalidWorkers
	case w.OpsPerWorker < 0:
		return ErrInvalidOps
	case w.KeySpace <= 0:
		return ErrInvalidKeys
	case w.Mix.Insert < 0 || w.Mix.Remove < 0 || w.Mix.Find < 0 || w.Mix.Upsert < 0 || w.Mix.Total() <= 0:
		return ErrInvalidMix
	case w.Rate < 0:
		return ErrInvalidRate
	}
	return nil
}

// ListOptions converts the list section into constructor options.
func (c Config) ListOptions() []arenaskip.Option {
	opts := []arenaskip.Option{
		arenaskip.WithMaxLevel(c.List.MaxLevel),
		arenaskip.WithBlockSize(c.List.BlockSize),
		arenaskip.WithWorkerCacheSize(c.List.WorkerCache),
		arenaskip.WithMaxNodes(c.List.MaxNodes),
	}
	if c.Workload.Seed != 0 {
		opts = append(opts, arenaskip.WithSeed(c.Workload.Seed))
	}
	return opts
}

// Loader merges configuration sources on top of Default.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

type Option func(*Loader)

// WithEnvPrefix overrides DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML file to read. An empty path skips the file.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file and the environment, applies flags last and returns
// the validated result. Keys in flags use the same dotted form as the file.
func (l *Loader) Load(flags map[string]any) (Config, error) {
	cfg := Default()

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}

	if len(flags) > 0 {
		if err := l.k.Load(mapProvider(flags), nil); err != nil {
			return cfg, fmt.Errorf("load flags: %w", err)
		}
	}

	if err := l.k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Keys returns every key set by a source, for diagnostics.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
