// Package gcc implements the execution-backend adapter that shells out to a
// locally installed C++ toolchain: compile to a temp binary, run it with the
// request's stdin, enforce a wall-clock timeout.
//
// Every invocation works inside its own uniquely-named temp directory, so
// concurrent requests never collide and the adapter stays re-entrant with no
// shared mutable state. The directory — source and binary both — is removed
// on every exit path; leaking artifacts is a correctness bug here, not a
// cosmetic one.
package gcc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/mini-ide/internal/executor"
	"github.com/sakif/mini-ide/internal/model"
)

// Config holds the toolchain settings.
type Config struct {
	// Compiler is the compiler binary to invoke.
	Compiler string
	// Timeout is the wall-clock bound on the compiled program's run.
	Timeout time.Duration
	// WorkDir is where per-run temp directories are created.
	WorkDir string
}

// DefaultConfig is g++ from PATH with a 5 second run bound.
func DefaultConfig() Config {
	return Config{
		Compiler: "g++",
		Timeout:  5 * time.Second,
		WorkDir:  os.TempDir(),
	}
}

// Adapter compiles and runs C++ snippets with the local toolchain.
type Adapter struct {
	cfg    Config
	logger *slog.Logger
}

var _ executor.Adapter = (*Adapter)(nil)

// New creates an Adapter. It does not verify the compiler exists — a missing
// toolchain surfaces per-run, the same way a broken one would.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.Compiler == "" {
		cfg.Compiler = "g++"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &Adapter{cfg: cfg, logger: logger}
}

// Run compiles req.Code and, if the compile is clean, executes the binary.
//
// COMPILE STRICTNESS:
// A compile is a failure on non-zero compiler exit OR any non-empty
// diagnostic stream — warnings included. Clients treat any diagnostics as
// a failed compile, so loosening this would change what users see.
func (a *Adapter) Run(ctx context.Context, req model.ExecutionRequest, emit executor.Sink) (outcome *model.ExecutionOutcome, err error) {
	dir := filepath.Join(a.cfg.WorkDir, "mini-ide-run-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("gcc: creating work dir: %w", err)
	}
	// Guaranteed cleanup on every exit path: success, compile failure, run
	// failure, timeout. A failed removal is logged and swallowed — it must
	// never block returning the primary result.
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			a.logger.Error("failed to remove temp dir",
				slog.String("dir", dir),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	src := filepath.Join(dir, "main.cpp")
	bin := filepath.Join(dir, "main.out")

	if err := os.WriteFile(src, []byte(req.Code), 0o600); err != nil {
		return nil, fmt.Errorf("gcc: writing source: %w", err)
	}

	emit("[System] Compiling with local toolchain...\n")

	// --- Compile ---
	var compileOut bytes.Buffer
	compile := exec.CommandContext(ctx, a.cfg.Compiler, "-O2", "-o", bin, src)
	compile.Stdout = &compileOut
	compile.Stderr = &compileOut

	compileErr := compile.Run()
	diagnostics := compileOut.String()

	// A cancelled request kills the compiler mid-flight; its death rattle
	// ("signal: killed") is not a compiler diagnostic.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("gcc: compile interrupted: %w", ctx.Err())
	}

	if compileErr != nil || strings.TrimSpace(diagnostics) != "" {
		// Compile failure (or warnings, treated the same): report the
		// diagnostics as the outcome and skip execution entirely. The exit
		// code must be non-zero on this branch even when the compiler
		// itself exited 0 with warnings — a run that never happened cannot
		// present as a success.
		if diagnostics == "" && compileErr != nil {
			diagnostics = compileErr.Error()
		}
		code := exitCodeOf(compileErr, 1)
		if code == 0 {
			code = 1
		}
		emit(diagnostics)
		return &model.ExecutionOutcome{
			Stderr:   diagnostics,
			ExitCode: code,
		}, nil
	}

	// --- Run ---
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	run := exec.CommandContext(runCtx, bin)
	run.Stdin = strings.NewReader(req.Stdin)
	run.Stdout = &stdout
	run.Stderr = &stderr

	runErr := run.Run()
	elapsed := time.Since(start)

	outcome = &model.ExecutionOutcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		// CommandContext already killed the child; 124 mirrors the unix
		// timeout command.
		outcome.TimedOut = true
		outcome.ExitCode = 124
	} else if runErr != nil {
		outcome.ExitCode = exitCodeOf(runErr, 1)
	}

	if outcome.Stdout != "" {
		emit(outcome.Stdout)
	}
	if outcome.Stderr != "" {
		emit(fmt.Sprintf("\n[Stderr]\n%s", outcome.Stderr))
	}

	return outcome, nil
}

// exitCodeOf extracts the process exit code from an exec error, falling back
// when the process never ran or was killed by a signal.
func exitCodeOf(err error, fallback int) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode()
	}
	return fallback
}
