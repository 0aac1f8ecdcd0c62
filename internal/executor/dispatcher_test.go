package executor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sakif/mini-ide/internal/apperror"
	"github.com/sakif/mini-ide/internal/model"
)

// fakeAdapter emits a scripted sequence of chunks and returns a canned
// outcome or error. Using a fake (not a mock framework) keeps the tests
// dependency-free and easy to read.
type fakeAdapter struct {
	chunks  []string
	outcome *model.ExecutionOutcome
	err     error
}

func (f *fakeAdapter) Run(ctx context.Context, req model.ExecutionRequest, emit Sink) (*model.ExecutionOutcome, error) {
	for _, c := range f.chunks {
		emit(c)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func newTestDispatcher() *Dispatcher {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewDispatcher(logger)
}

func collect(chunks *[]string) Sink {
	return func(c string) { *chunks = append(*chunks, c) }
}

func TestExecute_SuccessAppendsElapsedOnly(t *testing.T) {
	d := newTestDispatcher()
	d.Register(model.LanguageCPP, &fakeAdapter{
		chunks:  []string{"Hello, ", "World!\n"},
		outcome: &model.ExecutionOutcome{Stdout: "Hello, World!\n", ExitCode: 0},
	})

	var chunks []string
	outcome, err := d.Execute(context.Background(),
		model.ExecutionRequest{Language: model.LanguageCPP, Code: "..."}, collect(&chunks))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if outcome.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", outcome.ExitCode)
	}
	if !strings.Contains(outcome.Stdout, "Hello, World!") {
		t.Errorf("Stdout = %q, want it to contain Hello, World!", outcome.Stdout)
	}

	joined := strings.Join(chunks, "")
	if !strings.Contains(joined, "Finished in") {
		t.Errorf("output %q missing elapsed-time line", joined)
	}
	if strings.Contains(joined, "exited with code") {
		t.Errorf("output %q has an exit-code line for a clean exit", joined)
	}

	// Adapter chunks arrive before the status lines, in order.
	if chunks[0] != "Hello, " || chunks[1] != "World!\n" {
		t.Errorf("chunk order wrong: %q", chunks)
	}
}

func TestExecute_NonZeroExitAppendsBothLines(t *testing.T) {
	d := newTestDispatcher()
	d.Register(model.LanguageCPP, &fakeAdapter{
		outcome: &model.ExecutionOutcome{Stderr: "boom", ExitCode: 3},
	})

	var chunks []string
	outcome, err := d.Execute(context.Background(),
		model.ExecutionRequest{Language: model.LanguageCPP}, collect(&chunks))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if outcome.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", outcome.ExitCode)
	}

	joined := strings.Join(chunks, "")
	// The exit-code line and the elapsed line are not mutually exclusive.
	if !strings.Contains(joined, "exited with code 3") {
		t.Errorf("output %q missing exit-code line", joined)
	}
	if !strings.Contains(joined, "Finished in") {
		t.Errorf("output %q missing elapsed-time line", joined)
	}
	if strings.Index(joined, "exited with code 3") > strings.Index(joined, "Finished in") {
		t.Errorf("exit-code line should precede elapsed line: %q", joined)
	}
}

func TestExecute_TimeoutNoted(t *testing.T) {
	d := newTestDispatcher()
	d.Register(model.LanguageCPP, &fakeAdapter{
		outcome: &model.ExecutionOutcome{TimedOut: true, ExitCode: 124, Duration: 5 * time.Second},
	})

	var chunks []string
	outcome, err := d.Execute(context.Background(),
		model.ExecutionRequest{Language: model.LanguageCPP}, collect(&chunks))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !outcome.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if !strings.Contains(strings.Join(chunks, ""), "timed out") {
		t.Errorf("output %q missing timeout note", strings.Join(chunks, ""))
	}
}

func TestExecute_UnsupportedLanguage(t *testing.T) {
	d := newTestDispatcher()

	var chunks []string
	_, err := d.Execute(context.Background(),
		model.ExecutionRequest{Language: model.LanguagePython}, collect(&chunks))
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Execute() error = %v, want ErrValidation", err)
	}
	if len(chunks) != 0 {
		t.Errorf("no chunks expected for an unsupported language, got %q", chunks)
	}
}

func TestExecute_BackendFailureReportedNotRaised(t *testing.T) {
	d := newTestDispatcher()
	d.Register(model.LanguageCPP, &fakeAdapter{
		err: &BackendHTTPError{Status: 502},
	})

	var chunks []string
	outcome, err := d.Execute(context.Background(),
		model.ExecutionRequest{Language: model.LanguageCPP}, collect(&chunks))
	if err != nil {
		t.Fatalf("Execute() error = %v, backend failures must be reported, not raised", err)
	}
	if outcome.BackendError == "" {
		t.Error("outcome.BackendError is empty")
	}
	if !strings.Contains(strings.Join(chunks, ""), "[Error]") {
		t.Errorf("output %q missing [Error] chunk", strings.Join(chunks, ""))
	}
}

func TestBackendErrors_MapToUnavailable(t *testing.T) {
	if !errors.Is(&BackendHTTPError{Status: 500}, apperror.ErrUnavailable) {
		t.Error("BackendHTTPError should unwrap to ErrUnavailable")
	}
	if !errors.Is(&BackendProtocolError{RawBody: "<html>"}, apperror.ErrUnavailable) {
		t.Error("BackendProtocolError should unwrap to ErrUnavailable")
	}
}
