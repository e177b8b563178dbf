package workload

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/metailurini/arenaskip"
	"github.com/metailurini/arenaskip/internal/config"
	"github.com/metailurini/arenaskip/internal/oracle"
)

const ownerShift = 48

// ownedKey places a scrambled index inside the key range owned by worker.
func ownedKey(worker int, index uint64) uint64 {
	return uint64(worker)<<ownerShift | Scramble(index)&(1<<ownerShift-1)
}

// Verify runs the workload with each worker confined to its own key range
// and mirrors every operation into a per-worker reference list. Because no
// key is shared, every result must match the reference exactly. After the
// join the map contents are compared with the merged references, the map is
// compacted and its structure validated.
func Verify(ctx context.Context, m *arenaskip.Map[uint64, uint64], cfg config.Workload, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Workers > 1<<(64-ownerShift) {
		return Result{}, fmt.Errorf("verify supports at most %d workers", 1<<(64-ownerShift))
	}
	id, err := NewRunID()
	if err != nil {
		return Result{}, fmt.Errorf("run id: %w", err)
	}
	res := Result{RunID: id}
	logger = logger.With("run_id", id.String())
	logger.Info("verify started", "workers", cfg.Workers, "ops_per_worker", cfg.OpsPerWorker)

	p := newPicker(cfg.Mix)
	limiter := newLimiter(cfg.Rate)
	counts := make([]Counts, cfg.Workers)
	models := make([]*oracle.List[uint64, uint64], cfg.Workers)
	perWorker := max(1, cfg.KeySpace/cfg.Workers)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := range cfg.Workers {
		model := oracle.New[uint64, uint64](cmp.Less[uint64], oracle.NewConfig(oracle.WithSeed(cfg.Seed+uint64(i)+1)))
		models[i] = model
		g.Go(func() error {
			w := m.NewWorker()
			r := workerRand(cfg.Seed, i)
			c := &counts[i]
			for n := range cfg.OpsPerWorker {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				} else if err := gctx.Err(); err != nil {
					return err
				}
				key := ownedKey(i, uint64(r.IntN(perWorker)))
				op := p.pick(r)
				value := r.Uint64()
				got, err := apply(w, op, key, value)
				if err != nil {
					return fmt.Errorf("worker %d op %d %s %d: %w", i, n, op, key, err)
				}
				if want := mirror(model, op, key, value); got != want {
					return fmt.Errorf("%w: worker %d op %d %s %d returned %t, reference %t",
						ErrMismatch, i, n, op, key, got, want)
				}
				c.Ops[op]++
				if got {
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
	if err != nil {
		res.Stats = m.Stats()
		logger.Error("verify failed", "error", err)
		return res, err
	}

	if err := compareContents(m, models); err != nil {
		res.Stats = m.Stats()
		logger.Error("verify failed", "error", err)
		return res, err
	}
	m.Compact()
	if err := m.Validate(); err != nil {
		res.Stats = m.Stats()
		logger.Error("verify failed", "error", err)
		return res, fmt.Errorf("%w: %w", ErrMismatch, err)
	}
	res.Stats = m.Stats()
	logger.Info("verify passed", "result", res)
	return res, nil
}

func mirror(model *oracle.List[uint64, uint64], op Op, key, value uint64) bool {
	switch op {
	case OpInsert:
		return model.Insert(key, value)
	case OpRemove:
		return model.Remove(key) == nil
	case OpFind:
		_, err := model.Get(key)
		return err == nil
	case OpUpsert:
		return model.Put(key, value)
	default:
		return false
	}
}

// compareContents walks the map in order alongside the references, which
// are already sorted and occupy increasing key ranges.
func compareContents(m *arenaskip.Map[uint64, uint64], models []*oracle.List[uint64, uint64]) error {
	got := m.Entries()
	var want []oracle.Entry[uint64, uint64]
	for _, model := range models {
		want = append(want, model.Entries()...)
	}
	if len(got) != len(want) {
		return fmt.Errorf("%w: map holds %d entries, reference %d", ErrMismatch, len(got), len(want))
	}
	for i := range got {
		if got[i].Key != want[i].Key || got[i].Value != want[i].Value {
			return fmt.Errorf("%w: entry %d is %d=%d, reference %d=%d", ErrMismatch,
				i, got[i].Key, got[i].Value, want[i].Key, want[i].Value)
		}
	}
	if n := m.Len(); n != len(want) {
		return fmt.Errorf("%w: Len reports %d, reference %d", ErrMismatch, n, len(want))
	}
	return nil
}
