package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/mini-ide/internal/apperror"
	"github.com/sakif/mini-ide/internal/model"
)

// Dispatcher selects the adapter registered for a request's language,
// invokes it, and appends the final status line(s) to the output stream.
//
// Dispatch is re-entrant: concurrent executions proceed independently, each
// writing to its own sink. If an adapter needs to serialise access to a
// shared engine, that is the adapter's own business.
type Dispatcher struct {
	adapters map[model.Language]Adapter
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher; register adapters before use.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		adapters: make(map[model.Language]Adapter),
		logger:   logger,
	}
}

// Register binds a language to its adapter. Called once per language at
// startup, before any Execute — the map is read-only afterwards.
func (d *Dispatcher) Register(lang model.Language, a Adapter) {
	d.adapters[lang] = a
}

// Languages returns the languages that currently have an adapter.
func (d *Dispatcher) Languages() []model.Language {
	langs := make([]model.Language, 0, len(d.adapters))
	for l := range d.adapters {
		langs = append(langs, l)
	}
	return langs
}

// Execute runs the request on its language's adapter.
//
// Every chunk the adapter produces is forwarded to emit in arrival order.
// After the adapter settles, exactly one trailing status block is appended:
//   - a timeout note when the run was cut off,
//   - the exit code when it is non-zero,
//   - the elapsed wall-clock time in milliseconds (always).
//
// A backend-level failure does not propagate as an error: it is reported as
// a single "[Error] ..." chunk plus an outcome carrying BackendError, so the
// caller always gets an outcome and the process never crashes on a broken
// backend. The only error return is an unsupported language, which is a
// caller mistake rather than an execution result.
func (d *Dispatcher) Execute(ctx context.Context, req model.ExecutionRequest, emit Sink) (*model.ExecutionOutcome, error) {
	adapter, ok := d.adapters[req.Language]
	if !ok {
		return nil, apperror.ValidationFailed("language",
			fmt.Sprintf("unsupported language %q", req.Language))
	}

	start := time.Now()

	outcome, err := adapter.Run(ctx, req, emit)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Error("execution backend failed",
			slog.String("language", string(req.Language)),
			slog.String("error", err.Error()),
		)
		emit(fmt.Sprintf("[Error] Execution failed: %s\n", err.Error()))
		return &model.ExecutionOutcome{
			BackendError: err.Error(),
			ExitCode:     -1,
			Duration:     elapsed,
		}, nil
	}

	if outcome.Duration == 0 {
		outcome.Duration = elapsed
	}

	if outcome.TimedOut {
		emit("\n[System] Execution timed out.")
	}
	if outcome.ExitCode != 0 {
		emit(fmt.Sprintf("\n[System] Process exited with code %d", outcome.ExitCode))
	}
	emit(fmt.Sprintf("\n[System] Finished in %d ms", outcome.Duration.Milliseconds()))

	d.logger.Info("execution finished",
		slog.String("language", string(req.Language)),
		slog.Int("exitCode", outcome.ExitCode),
		slog.Bool("timedOut", outcome.TimedOut),
		slog.Duration("duration", outcome.Duration),
	)

	return outcome, nil
}
