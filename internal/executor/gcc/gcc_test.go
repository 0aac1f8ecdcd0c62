package gcc_test

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/sakif/mini-ide/internal/executor/gcc"
	"github.com/sakif/mini-ide/internal/model"
	"github.com/stretchr/testify/assert"
)

// needsCompiler skips the test when no g++ is installed, so the suite still
// passes on machines without a toolchain.
func needsCompiler(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("g++"); err != nil {
		t.Skip("g++ not installed, skipping local toolchain test")
	}
}

func newTestAdapter(t *testing.T, timeout time.Duration) (*gcc.Adapter, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := gcc.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return gcc.New(cfg, logger), cfg.WorkDir
}

// workDirIsEmpty asserts that no per-run temp directory survived the call.
func workDirIsEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Empty(t, entries, "temp artifacts leaked in %s", dir)
}

func TestGCCAdapter(t *testing.T) {
	needsCompiler(t)

	t.Run("hello world", func(t *testing.T) {
		a, workDir := newTestAdapter(t, 0)

		var chunks []string
		outcome, err := a.Run(context.Background(), model.ExecutionRequest{
			Language: model.LanguageCPP,
			Code: `#include <iostream>
int main() { std::cout << "Hello, World!" << std::endl; return 0; }`,
		}, func(c string) { chunks = append(chunks, c) })

		assert.NoError(t, err)
		assert.Equal(t, 0, outcome.ExitCode)
		assert.False(t, outcome.TimedOut)
		assert.Contains(t, outcome.Stdout, "Hello, World!")
		assert.Contains(t, strings.Join(chunks, ""), "Hello, World!")
		workDirIsEmpty(t, workDir)
	})

	t.Run("reads stdin", func(t *testing.T) {
		a, _ := newTestAdapter(t, 0)

		outcome, err := a.Run(context.Background(), model.ExecutionRequest{
			Language: model.LanguageCPP,
			Code: `#include <iostream>
#include <string>
int main() { std::string s; std::getline(std::cin, s); std::cout << "got: " << s; return 0; }`,
			Stdin: "some input",
		}, func(string) {})

		assert.NoError(t, err)
		assert.Contains(t, outcome.Stdout, "got: some input")
	})

	t.Run("compile failure skips execution", func(t *testing.T) {
		a, workDir := newTestAdapter(t, 0)

		var chunks []string
		outcome, err := a.Run(context.Background(), model.ExecutionRequest{
			Language: model.LanguageCPP,
			Code:     `int main() { this does not compile`,
		}, func(c string) { chunks = append(chunks, c) })

		assert.NoError(t, err)
		assert.NotEqual(t, 0, outcome.ExitCode)
		assert.NotEmpty(t, outcome.Stderr, "diagnostics expected")
		assert.Empty(t, outcome.Stdout, "no program output on compile failure")
		workDirIsEmpty(t, workDir)
	})

	t.Run("warnings are treated as compile failure", func(t *testing.T) {
		a, _ := newTestAdapter(t, 0)

		// -Wreturn-type fires by default: non-void function without return.
		// The compiler still exits 0 here — the adapter must report a
		// failure anyway, exit code included, since it refused to run the
		// binary.
		outcome, err := a.Run(context.Background(), model.ExecutionRequest{
			Language: model.LanguageCPP,
			Code:     `int f() {} int main() { return 0; }`,
		}, func(string) {})

		assert.NoError(t, err)
		assert.NotEmpty(t, outcome.Stderr)
		assert.Empty(t, outcome.Stdout)
		assert.NotEqual(t, 0, outcome.ExitCode)
	})

	t.Run("cancelled context is not reported as diagnostics", func(t *testing.T) {
		a, workDir := newTestAdapter(t, 0)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		outcome, err := a.Run(ctx, model.ExecutionRequest{
			Language: model.LanguageCPP,
			Code:     `int main() { return 0; }`,
		}, func(string) {})

		// A dead client is a backend-level error, not a compile outcome
		// with "signal: killed" masquerading as compiler output.
		assert.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, outcome)
		workDirIsEmpty(t, workDir)
	})

	t.Run("nonzero exit code", func(t *testing.T) {
		a, _ := newTestAdapter(t, 0)

		outcome, err := a.Run(context.Background(), model.ExecutionRequest{
			Language: model.LanguageCPP,
			Code:     `int main() { return 3; }`,
		}, func(string) {})

		assert.NoError(t, err)
		assert.Equal(t, 3, outcome.ExitCode)
	})

	t.Run("infinite loop times out and cleans up", func(t *testing.T) {
		a, workDir := newTestAdapter(t, 2*time.Second)

		start := time.Now()
		outcome, err := a.Run(context.Background(), model.ExecutionRequest{
			Language: model.LanguageCPP,
			Code:     `int main() { for(;;){} }`,
		}, func(string) {})
		elapsed := time.Since(start)

		assert.NoError(t, err)
		assert.True(t, outcome.TimedOut)
		assert.Equal(t, 124, outcome.ExitCode)
		// Returned within the bound, not indefinitely — generous slack for
		// compile time plus process teardown.
		assert.Less(t, elapsed, 30*time.Second)
		workDirIsEmpty(t, workDir)
	})
}
