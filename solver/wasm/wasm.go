// Package wasm hosts a solver compiled to WebAssembly. The module exports
// solve(ptr, len) -> (ptr, len) over JSON messages, and optionally
// alloc(len) -> ptr for placing the request.
package wasm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/snow-ghost/combiner/core"
	"github.com/snow-ghost/combiner/corpus"
	"github.com/snow-ghost/combiner/strategy"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const defaultTimeout = 30 * time.Second

// request is the JSON message handed to solve.
type request struct {
	Op      string `json:"op"`
	Formula string `json:"formula,omitempty"`
	Tactic  string `json:"tactic,omitempty"`
	Probe   string `json:"probe,omitempty"`
	RLimit  int64  `json:"rlimit,omitempty"`
}

// response is what solve returns. Fields missing from the reply keep their
// zero value.
type response struct {
	Result  core.Result `json:"result"`
	Cost    float64     `json:"cost"`
	Formula *string     `json:"formula"`
	Value   float64     `json:"value"`
	Probes  []string    `json:"probes"`
	Error   string      `json:"error"`
}

// Config sizes the runtime.
type Config struct {
	// MemMB caps linear memory; 0 keeps the wazero default.
	MemMB int
}

// Solver implements core.Solver on a compiled module. Every call runs in a
// fresh instance, so calls are independent and may run concurrently.
type Solver struct {
	runtime wazero.Runtime
	module  wazero.CompiledModule

	probesOnce sync.Once
	probes     []string
	probesErr  error
}

// NewSolver compiles code.
func NewSolver(ctx context.Context, code []byte, cfg Config) (*Solver, error) {
	rc := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemMB > 0 {
		rc = rc.WithMemoryLimitPages(uint32(cfg.MemMB) * 16) // 64KiB pages
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, rc)
	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)

	module, err := runtime.CompileModule(ctx, code)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}
	return &Solver{runtime: runtime, module: module}, nil
}

// Open compiles the module stored at path.
func Open(ctx context.Context, path string, cfg Config) (*Solver, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read solver module: %w", err)
	}
	return NewSolver(ctx, code, cfg)
}

func (s *Solver) Apply(ctx context.Context, f core.Formula, tactic strategy.Node, b core.Budget) (core.Outcome, error) {
	if tactic == nil {
		return core.Outcome{}, core.ErrEmptySequence
	}
	timeout := b.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.call(execCtx, request{Op: "apply", Formula: f.Canonical(), Tactic: tactic.SMT2(), RLimit: b.RLimit})
	if err != nil {
		return core.Outcome{}, err
	}
	out := core.Outcome{Result: resp.Result, Cost: resp.Cost}
	if resp.Formula != nil {
		out.Next = corpus.Text(*resp.Formula)
	}
	return out, nil
}

func (s *Solver) Probe(ctx context.Context, f core.Formula, name string) (float64, error) {
	resp, err := s.call(ctx, request{Op: "probe", Formula: f.Canonical(), Probe: name})
	if err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// Probes asks the module once for its probe names. A failed listing yields
// no probes; ProbesErr reports why.
func (s *Solver) Probes() []string {
	s.listProbes()
	return s.probes
}

// ProbesErr returns the error of the probe listing, if any.
func (s *Solver) ProbesErr() error {
	s.listProbes()
	return s.probesErr
}

func (s *Solver) listProbes() {
	s.probesOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		resp, err := s.call(ctx, request{Op: "probes"})
		if err != nil {
			slog.Warn("solver module lists no probes", "error", err)
			s.probesErr = fmt.Errorf("list probes: %w", err)
			return
		}
		s.probes = resp.Probes
	})
}

func (s *Solver) call(ctx context.Context, req request) (response, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return response{}, fmt.Errorf("failed to marshal input: %w", err)
	}

	instance, err := s.runtime.InstantiateModule(ctx, s.module, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return response{}, fmt.Errorf("failed to instantiate module: %w", err)
	}
	defer instance.Close(ctx)

	solve := instance.ExportedFunction("solve")
	if solve == nil {
		return response{}, errors.New("module does not export 'solve' function")
	}

	ptr, err := place(ctx, instance, input)
	if err != nil {
		return response{}, fmt.Errorf("failed to allocate input: %w", err)
	}
	results, err := solve.Call(ctx, uint64(ptr), uint64(len(input)))
	if err != nil {
		return response{}, fmt.Errorf("failed to call solve function: %w", err)
	}
	if len(results) != 2 {
		return response{}, fmt.Errorf("solve function should return (ptr, size), got %d results", len(results))
	}

	output, ok := instance.Memory().Read(uint32(results[0]), uint32(results[1]))
	if !ok {
		return response{}, errors.New("failed to read output")
	}
	var resp response
	if err := json.Unmarshal(output, &resp); err != nil {
		return response{}, fmt.Errorf("failed to parse output JSON: %w", err)
	}
	if resp.Error != "" {
		return response{}, fmt.Errorf("solver module: %s", resp.Error)
	}
	return resp, nil
}

// place writes data into the instance memory, through alloc when the module
// exports it and at offset 0 otherwise.
func place(ctx context.Context, instance api.Module, data []byte) (uint32, error) {
	mem := instance.Memory()
	if mem == nil {
		return 0, errors.New("module has no memory")
	}
	var ptr uint32
	if alloc := instance.ExportedFunction("alloc"); alloc != nil {
		res, err := alloc.Call(ctx, uint64(len(data)))
		if err != nil {
			return 0, err
		}
		if len(res) != 1 {
			return 0, fmt.Errorf("alloc should return a pointer, got %d results", len(res))
		}
		ptr = uint32(res[0])
	}
	if uint64(ptr)+uint64(len(data)) > uint64(mem.Size()) {
		return 0, fmt.Errorf("not enough memory: need %d bytes, have %d", len(data), mem.Size())
	}
	if !mem.Write(ptr, data) {
		return 0, errors.New("failed to write to memory")
	}
	return ptr, nil
}

// Close releases the runtime.
func (s *Solver) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}
