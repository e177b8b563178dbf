// Package workload drives a concurrent map with a randomized operation mix
// and checks the result against the sequential reference model.
package workload

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	randv2 "math/rand/v2"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/metailurini/arenaskip"
	"github.com/metailurini/arenaskip/internal/config"
)

// ErrMismatch is returned by Verify when the map disagrees with the model.
var ErrMismatch = errors.New("workload: map diverged from reference")

// Op is a single map operation kind.
type Op uint8

const (
	OpInsert Op = iota
	OpRemove
	OpFind
	OpUpsert
	numOps
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	case OpFind:
		return "find"
	case OpUpsert:
		return "upsert"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Counts holds per-operation totals. Hits counts inserts and upserts that
// created a key, removes that found one and finds that succeeded.
type Counts struct {
	Ops  [numOps]int64
	Hits [numOps]int64
}

func (c *Counts) add(o Counts) {
	for i := range c.Ops {
		c.Ops[i] += o.Ops[i]
		c.Hits[i] += o.Hits[i]
	}
}

// Total returns the number of operations issued.
func (c Counts) Total() int64 {
	var n int64
	for _, v := range c.Ops {
		n += v
	}
	return n
}

// Result summarizes one run.
type Result struct {
	RunID   ulid.ULID
	Counts  Counts
	Elapsed time.Duration
	Stats   arenaskip.Stats
}

// OpsPerSecond returns the observed throughput.
func (r Result) OpsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Counts.Total()) / r.Elapsed.Seconds()
}

// LogValue renders the result as a slog group.
func (r Result) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("run_id", r.RunID.String()),
		slog.Int64("ops", r.Counts.Total()),
		slog.Duration("elapsed", r.Elapsed),
		slog.Float64("ops_per_sec", r.OpsPerSecond()),
		slog.Int64("len", r.Stats.Len),
		slog.Int("level", r.Stats.Level),
		slog.Int64("cas_retries", r.Stats.InsertCASRetries),
		slog.Int64("restarts", r.Stats.Restarts),
		slog.Int64("live_slots", r.Stats.Pool.Live),
	}
	for op := range numOps {
		attrs = append(attrs, slog.Int64(op.String(), r.Counts.Ops[op]))
	}
	return slog.GroupValue(attrs...)
}

// NewRunID returns a fresh run identifier.
func NewRunID() (ulid.ULID, error) {
	entropy := ulid.Monotonic(crand.Reader, 0)
	return ulid.New(ulid.Timestamp(time.Now()), entropy)
}

// Scramble maps a dense index onto a well-spread 64-bit key so that
// sequential indexes do not produce sequential inserts.
func Scramble(i uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], i)
	return xxhash.Sum64(b[:])
}

// picker draws operations according to the configured weights.
type picker struct {
	cut   [numOps]int
	total int
}

func newPicker(mix config.Mix) picker {
	var p picker
	weights := [numOps]int{mix.Insert, mix.Remove, mix.Find, mix.Upsert}
	for i, w := range weights {
		p.total += w
		p.cut[i] = p.total
	}
	return p
}

func (p picker) pick(r *randv2.Rand) Op {
	n := r.IntN(p.total)
	for i, c := range p.cut {
		if n < c {
			return Op(i)
		}
	}
	return OpFind
}

func newLimiter(opsPerSec float64) *rate.Limiter {
	if opsPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(opsPerSec), max(1, int(opsPerSec/100)))
}

func workerRand(seed uint64, ordinal int) *randv2.Rand {
	if seed == 0 {
		seed = randv2.Uint64()
	}
	return randv2.New(randv2.NewPCG(seed, uint64(ordinal)+1))
}

// Run executes cfg.Workers goroutines, each issuing cfg.OpsPerWorker
// operations over keys drawn from cfg.KeySpace. It stops at the first
// error, including context cancellation.
func Run(ctx context.Context, m *arenaskip.Map[uint64, uint64], cfg config.Workload, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	id, err := NewRunID()
	if err != nil {
		return Result{}, fmt.Errorf("run id: %w", err)
	}
	res := Result{RunID: id}
	logger = logger.With("run_id", id.String())
	logger.Info("workload started", "workers", cfg.Workers, "ops_per_worker", cfg.OpsPerWorker,
		"key_space", cfg.KeySpace, "rate", cfg.Rate)

	p := newPicker(cfg.Mix)
	limiter := newLimiter(cfg.Rate)
	counts := make([]Counts, cfg.Workers)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := range cfg.Workers {
		g.Go(func() error {
			w := m.NewWorker()
			r := workerRand(cfg.Seed, i)
			c := &counts[i]
			for range cfg.OpsPerWorker {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return err
					}
				} else if err := ctx.Err(); err != nil {
					return err
				}
				key := Scramble(uint64(r.IntN(cfg.KeySpace)))
				op := p.pick(r)
				hit, err := apply(w, op, key, r.Uint64())
				if err != nil {
					return fmt.Errorf("worker %d %s %d: %w", i, op, key, err)
				}
				c.Ops[op]++
				if hit {
					c.Hits[op]++
				}
			}
			return nil
		})
	}
	err = g.Wait()
	res.Elapsed = time.Since(start)
	for _, c := range counts {
		res.Counts.add(c)
	}
	res.Stats = m.Stats()
	if err != nil {
		logger.Error("workload failed", "error", err)
		return res, err
	}
	logger.Info("workload finished", "result", res)
	return res, nil
}

func apply(w *arenaskip.Worker[uint64, uint64], op Op, key, value uint64) (bool, error) {
	switch op {
	case OpInsert:
		return w.Insert(key, value)
	case OpRemove:
		return w.Remove(key), nil
	case OpFind:
		return w.Contains(key), nil
	case OpUpsert:
		_, created, err := w.InsertOrAssign(key, value)
		return created, err
	default:
		return false, fmt.Errorf("unknown op %d", op)
	}
}
