package arenaskip

import (
	"fmt"
	"log/slog"
)

const (
	// DefaultMaxLevel is the highest tower index a node may reach unless
	// overridden with WithMaxLevel. Levels are 0-based.
	DefaultMaxLevel = 16
	// MaxLevelLimit bounds WithMaxLevel.
	MaxLevelLimit = 30

	DefaultBlockSize       = 64
	DefaultWorkerCacheSize = 16
)

type config struct {
	maxLevel  int
	blockSize int
	cacheSize int
	maxNodes  int64
	seed      uint64
	seeded    bool
	logger    *slog.Logger
}

// Option configures a Map or Set.
type Option func(*config)

func defaultConfig() config {
	return config{
		maxLevel:  DefaultMaxLevel,
		blockSize: DefaultBlockSize,
		cacheSize: DefaultWorkerCacheSize,
	}
}

// WithMaxLevel sets the highest level index a node may be promoted to.
// Zero yields a plain sorted linked list.
func WithMaxLevel(level int) Option {
	return func(c *config) {
		c.maxLevel = level
	}
}

// WithBlockSize sets how many node slots are carved per arena block.
func WithBlockSize(size int) Option {
	return func(c *config) {
		c.blockSize = size
	}
}

// WithWorkerCacheSize bounds the per-worker free-slot cache. Zero disables it.
func WithWorkerCacheSize(size int) Option {
	return func(c *config) {
		c.cacheSize = size
	}
}

// WithMaxNodes caps the number of entries the arena will carve slots for.
// The cap is rounded up to whole blocks. Zero means unlimited.
func WithMaxNodes(n int64) Option {
	return func(c *config) {
		c.maxNodes = n
	}
}

// WithLogger attaches a logger for arena growth and level changes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithSeed makes level generation deterministic. Each worker derives its own
// stream from the seed and its creation order.
func WithSeed(seed uint64) Option {
	return func(c *config) {
		c.seed = seed
		c.seeded = true
	}
}

func (c *config) validate() error {
	if c.maxLevel < 0 || c.maxLevel > MaxLevelLimit {
		return fmt.Errorf("%w: %d (want 0..%d)", ErrInvalidMaxLevel, c.maxLevel, MaxLevelLimit)
	}
	if c.blockSize < 2 || c.blockSize&(c.blockSize-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, c.blockSize)
	}
	if c.cacheSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, c.cacheSize)
	}
	if c.maxNodes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxNodes, c.maxNodes)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return nil
}
