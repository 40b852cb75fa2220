package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/snow-ghost/combiner/corpus"
	"github.com/snow-ghost/combiner/pipeline"
	"github.com/snow-ghost/combiner/pkg/config"
	"github.com/snow-ghost/combiner/pkg/logging"
	"github.com/snow-ghost/combiner/pkg/metrics"
	"github.com/snow-ghost/combiner/pkg/tracing"
	"github.com/snow-ghost/combiner/strategy"
)

// app holds what every subcommand wires up.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	tracer   *tracing.Tracer
	metrics  *metrics.Metrics
	server   *http.Server
	closers  []func(context.Context) error
	pipeline *pipeline.Pipeline
}

func newApp(configPath string, quick bool) (*app, error) {
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return nil, err
	}
	if quick {
		cfg.Quick = true
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.GetSlog())

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, tracer: tracer, metrics: metrics.New()}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok","service":"combiner"}`))
		})
		a.server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics server starting", "addr", cfg.Metrics.Addr)
	}
	return a, nil
}

// open attaches the solver, journal and corpus rooted at dir.
func (a *app) open(ctx context.Context, dir string) error {
	solver, closeSolver, err := pipeline.NewSolver(ctx, a.cfg, a.metrics)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeSolver)

	journal, err := pipeline.NewJournal(a.cfg, a.logger.GetSlog())
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return journal.Close() })

	a.pipeline = &pipeline.Pipeline{
		Config:  a.cfg,
		Solver:  solver,
		Source:  corpus.FileSource{Root: dir},
		Journal: journal,
		Metrics: a.metrics,
		Logger:  a.logger,
	}
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	if a.server != nil {
		_ = a.server.Shutdown(ctx)
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown failed", "error", err)
	}
	_ = a.logger.Sync()
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	return table
}

func readSequences(path string) ([]strategy.Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	seqs, err := strategy.ReadSequences(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return seqs, nil
}

// readTree accepts the JSON encoding or the textual form of a strategy.
func readTree(path string) (strategy.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if text := strings.TrimSpace(string(data)); strings.HasPrefix(text, "{") {
		return strategy.Unmarshal(data)
	}
	return strategy.Parse(string(data))
}

func writeTree(path, format string, tree strategy.Node) error {
	var out []byte
	switch format {
	case "json":
		data, err := strategy.MarshalIndent(tree)
		if err != nil {
			return err
		}
		out = append(data, '\n')
	case "text":
		out = []byte(tree.String() + "\n")
	case "smt2":
		out = []byte(tree.SMT2() + "\n")
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
