package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/metailurini/arenaskip"
	"github.com/metailurini/arenaskip/internal/config"
	"github.com/metailurini/arenaskip/internal/logging"
	"github.com/metailurini/arenaskip/internal/workload"
	"github.com/metailurini/arenaskip/promexport"
)

// Build information, set via ldflags.
var Version = "dev"

// flagKeys maps command-line flags onto configuration keys. Only flags the
// user actually set are applied, so file and environment values survive.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"metrics-addr": "metrics.addr",
	"max-level":    "list.max_level",
	"block-size":   "list.block_size",
	"worker-cache": "list.worker_cache",
	"max-nodes":    "list.max_nodes",
	"workers":      "workload.workers",
	"ops":          "workload.ops_per_worker",
	"keys":         "workload.key_space",
	"rate":         "workload.rate",
	"seed":         "workload.seed",
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "skipbench",
		Usage:   "drive an arena-backed concurrent skip list",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"SKIPBENCH_CONFIG"},
			},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "json or text"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address"},
		},
		Commands: []*cli.Command{
			demoCommand(),
			benchCommand(),
			verifyCommand(),
		},
	}
}

func listFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "max-level", Usage: "highest tower level"},
		&cli.IntFlag{Name: "block-size", Usage: "node slots per arena block (power of two)"},
		&cli.IntFlag{Name: "worker-cache", Usage: "free slots cached per worker"},
		&cli.Int64Flag{Name: "max-nodes", Usage: "node budget, 0 for unlimited"},
	}
}

func workloadFlags() []cli.Flag {
	return append(listFlags(),
		&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "concurrent workers"},
		&cli.IntFlag{Name: "ops", Aliases: []string{"n"}, Usage: "operations per worker"},
		&cli.IntFlag{Name: "keys", Aliases: []string{"k"}, Usage: "key space size"},
		&cli.Float64Flag{Name: "rate", Usage: "total operations per second, 0 for unlimited"},
		&cli.Uint64Flag{Name: "seed", Usage: "random seed, 0 for a random one"},
	)
}

// setFlags collects the flags set on the command line for the config loader.
func setFlags(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for _, ctx := range c.Lineage() {
		for name, key := range flagKeys {
			if _, done := out[key]; done || !ctx.IsSet(name) {
				continue
			}
			out[key] = ctx.Value(name)
		}
	}
	return out
}

type env struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer
}

func load(c *cli.Context) (*env, error) {
	cfg, err := config.NewLoader(config.WithConfigFile(c.String("config"))).Load(setFlags(c))
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	return &env{cfg: cfg, logger: logger, out: c.App.Writer}, nil
}

func (e *env) newMap() (*arenaskip.Map[uint64, uint64], error) {
	opts := append(e.cfg.ListOptions(), arenaskip.WithLogger(e.logger))
	return arenaskip.NewOrdered[uint64, uint64](opts...)
}

// serveMetrics exposes src until ctx ends. It is a no-op without an address.
func (e *env) serveMetrics(ctx context.Context, name string, src promexport.StatsSource) func() {
	if e.cfg.Metrics.Addr == "" {
		return func() {}
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		promexport.NewCollector("skipbench", name, src),
		collectors.NewGoCollector(),
	)
	srv := &http.Server{
		Addr:              e.cfg.Metrics.Addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		e.logger.Info("serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server stopped", "error", err)
		}
	}()
	return func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
}

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "walk through basic map operations and dump the towers",
		Flags: listFlags(),
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			return runDemo(e)
		},
	}
}

func runDemo(e *env) error {
	opts := append(e.cfg.ListOptions(), arenaskip.WithLogger(e.logger))
	m, err := arenaskip.NewOrdered[int, string](opts...)
	if err != nil {
		return err
	}
	out := e.out

	for _, k := range []int{5, 2, 8, 1} {
		if _, err := m.Insert(k, fmt.Sprintf("v%d", k)); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "inserted 5 2 8 1, len %d\n", m.Len())
	fmt.Fprintf(out, "range [1, 5]: %v\n", m.Range(1, 5))

	fmt.Fprintf(out, "remove 2: %t\n", m.Remove(2))
	_, found := m.Get(2)
	fmt.Fprintf(out, "find 2: %t, len %d\n", found, m.Len())

	it, created, err := m.InsertOrAssign(1, "one")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "assign 1: created %t, value %s, len %d\n", created, it.Value(), m.Len())

	fmt.Fprintln(out, "towers:")
	return m.Dump(out)
}

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "run a randomized concurrent workload and report throughput",
		Flags: workloadFlags(),
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			m, err := e.newMap()
			if err != nil {
				return err
			}
			stop := e.serveMetrics(c.Context, "bench", m)
			defer stop()

			res, err := workload.Run(c.Context, m, e.cfg.Workload, e.logger)
			if err != nil {
				return err
			}
			printResult(e.out, res)
			return nil
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "run a disjoint-range workload and check it against a sequential model",
		Flags: workloadFlags(),
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			m, err := e.newMap()
			if err != nil {
				return err
			}
			stop := e.serveMetrics(c.Context, "verify", m)
			defer stop()

			res, err := workload.Verify(c.Context, m, e.cfg.Workload, e.logger)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			printResult(e.out, res)
			fmt.Fprintln(e.out, "ok")
			return nil
		},
	}
}

func printResult(out io.Writer, res workload.Result) {
	fmt.Fprintf(out, "run %s: %d ops in %s (%.0f ops/s)\n",
		res.RunID, res.Counts.Total(), res.Elapsed.Round(time.Millisecond), res.OpsPerSecond())
	for op := range workload.OpUpsert + 1 {
		fmt.Fprintf(out, "  %-7s %10d  hits %d\n", op, res.Counts.Ops[op], res.Counts.Hits[op])
	}
	s := res.Stats
	fmt.Fprintf(out, "  len %d  level %d/%d  cas retries %d  restarts %d  snips %d\n",
		s.Len, s.Level, s.MaxLevel, s.InsertCASRetries, s.Restarts, s.Snips)
	fmt.Fprintf(out, "  arena blocks %d  slots %d  live %d  cache hits %d  slow paths %d\n",
		s.Pool.Blocks, s.Pool.Slots, s.Pool.Live, s.Pool.CacheHits, s.Pool.SlowPaths)
}
