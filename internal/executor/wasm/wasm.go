// Package wasm implements the execution-backend adapter that runs code on an
// in-process interpreter: a WebAssembly build of the language runtime
// (e.g. a Python interpreter compiled to WASI), instantiated with wazero so
// no external process or service is involved.
//
// READINESS:
// Compiling an interpreter module takes noticeable time, so New starts the
// load in the background and Run awaits an explicit ready signal with a
// bounded budget. A run that arrives before the runtime is up waits; one
// that outlives the budget fails with a single "runtime unavailable" error
// instead of polling forever.
//
// RE-ENTRANCY:
// The compiled runtime and its stdio plumbing are shared state, so runs are
// serialized behind a mutex — concurrent requests queue rather than
// interleave their output. The other adapters are re-entrant; this one
// deliberately is not.
package wasm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/sakif/mini-ide/internal/apperror"
	"github.com/sakif/mini-ide/internal/executor"
	"github.com/sakif/mini-ide/internal/model"
)

// Config holds the interpreter settings.
type Config struct {
	// ModulePath is the .wasm interpreter binary on disk.
	ModulePath string
	// Name is the interpreter's argv[0], e.g. "python".
	Name string
	// RunBudget bounds one execution's wall-clock time, so an infinite
	// loop surfaces as a fault, never a hang.
	RunBudget time.Duration
	// ReadyTimeout bounds how long a Run waits for the runtime to load.
	ReadyTimeout time.Duration
}

// DefaultConfig returns sensible budgets for an interpreter-sized module.
func DefaultConfig() Config {
	return Config{
		Name:         "python",
		RunBudget:    10 * time.Second,
		ReadyTimeout: 4 * time.Second,
	}
}

// Adapter runs code on an embedded WASM interpreter.
type Adapter struct {
	cfg    Config
	logger *slog.Logger

	// ready closes once the background load finishes (either way); initErr
	// is set before the close and read only after it.
	ready   chan struct{}
	initErr error

	runtime  wazero.Runtime
	compiled wazero.CompiledModule

	mu sync.Mutex // serializes runs; the engine is not re-entrant
}

var _ executor.Adapter = (*Adapter)(nil)

// New starts loading the interpreter in the background and returns
// immediately; the first Run blocks (bounded) until the load completes.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "python"
	}
	if cfg.RunBudget <= 0 {
		cfg.RunBudget = 10 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 4 * time.Second
	}

	a := &Adapter{
		cfg:    cfg,
		logger: logger,
		ready:  make(chan struct{}),
	}
	go a.load()
	return a
}

// load compiles the interpreter module once. Compilation is the expensive
// part; per-run instantiation is cheap.
func (a *Adapter) load() {
	defer close(a.ready)
	start := time.Now()

	wasmBytes, err := os.ReadFile(a.cfg.ModulePath)
	if err != nil {
		a.initErr = fmt.Errorf("wasm: reading interpreter module: %w", err)
		return
	}

	ctx := context.Background()

	// CloseOnContextDone makes a deadline actually interrupt running guest
	// code — without it, the deadline would only be checked at host calls.
	rt := wazero.NewRuntimeWithConfig(ctx,
		wazero.NewRuntimeConfig().WithCloseOnContextDone(true))

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		a.initErr = fmt.Errorf("wasm: instantiating WASI: %w", err)
		return
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		a.initErr = fmt.Errorf("wasm: compiling interpreter module: %w", err)
		return
	}

	a.runtime = rt
	a.compiled = compiled
	a.logger.Info("interpreter runtime ready",
		slog.String("module", a.cfg.ModulePath),
		slog.Duration("loadTime", time.Since(start)),
	)
}

// Close releases the runtime. Safe to call whether or not loading succeeded.
func (a *Adapter) Close() error {
	<-a.ready
	if a.runtime == nil {
		return nil
	}
	return a.runtime.Close(context.Background())
}

// sinkWriter forwards every write verbatim to the sink, mirroring the
// interpreter's synchronous callback on each simulated-stdout write, while
// also buffering for the final outcome.
type sinkWriter struct {
	emit executor.Sink
	buf  bytes.Buffer
}

func (w *sinkWriter) Write(p []byte) (int, error) {
	w.emit(string(p))
	return w.buf.Write(p)
}

// Run executes req.Code on the interpreter.
func (a *Adapter) Run(ctx context.Context, req model.ExecutionRequest, emit executor.Sink) (*model.ExecutionOutcome, error) {
	select {
	case <-a.ready:
	case <-time.After(a.cfg.ReadyTimeout):
		return nil, apperror.Unavailable(fmt.Sprintf("%s runtime is not ready yet", a.cfg.Name))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if a.initErr != nil {
		a.logger.Error("interpreter runtime failed to load", slog.String("error", a.initErr.Error()))
		return nil, apperror.Unavailable(fmt.Sprintf("%s runtime failed to load", a.cfg.Name))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, a.cfg.RunBudget)
	defer cancel()

	stdout := &sinkWriter{emit: emit}
	var stderr bytes.Buffer

	modCfg := wazero.NewModuleConfig().
		WithStdout(stdout).
		WithStderr(&stderr).
		WithStdin(strings.NewReader(req.Stdin)).
		WithArgs(a.cfg.Name, "-c", req.Code).
		WithName("")

	start := time.Now()
	mod, err := a.runtime.InstantiateModule(runCtx, a.compiled, modCfg)
	if mod != nil {
		mod.Close(context.Background())
	}

	outcome := &model.ExecutionOutcome{
		Stdout:   stdout.buf.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *sys.ExitError
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			outcome.TimedOut = true
			outcome.ExitCode = 124
		case errors.As(err, &exitErr):
			// The guest called exit(); code 0 arrives through this path too.
			outcome.ExitCode = int(exitErr.ExitCode())
		default:
			// Interpreter fault (trap, broken guest): report it as output,
			// never crash the dispatcher.
			emit(fmt.Sprintf("\n[Error] %s", err.Error()))
			if outcome.Stderr == "" {
				outcome.Stderr = err.Error()
			}
			outcome.ExitCode = 1
		}
	}

	return outcome, nil
}
