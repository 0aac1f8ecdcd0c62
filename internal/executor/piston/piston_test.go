package piston_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sakif/mini-ide/internal/executor"
	"github.com/sakif/mini-ide/internal/executor/piston"
	"github.com/sakif/mini-ide/internal/model"
	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPistonAdapter(t *testing.T) {
	t.Run("successful run", func(t *testing.T) {
		var captured map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"run":{"stdout":"Hello, World!\n","stderr":"","code":0}}`))
		}))
		defer srv.Close()

		a := piston.New(srv.URL, testLogger())

		var chunks []string
		outcome, err := a.Run(context.Background(), model.ExecutionRequest{
			Language: model.LanguageCPP,
			Code:     `#include <iostream>...`,
			Stdin:    "some input",
		}, func(c string) { chunks = append(chunks, c) })

		assert.NoError(t, err)
		assert.Equal(t, 0, outcome.ExitCode)
		assert.Contains(t, outcome.Stdout, "Hello, World!")
		assert.Empty(t, outcome.Stderr)

		// Request wire shape: language, version, files[0].content, stdin.
		assert.Equal(t, "cpp", captured["language"])
		assert.Equal(t, "10.2.0", captured["version"])
		assert.Equal(t, "some input", captured["stdin"])
		files := captured["files"].([]any)
		assert.Contains(t, files[0].(map[string]any)["content"], "#include")

		// Stdout was forwarded as a chunk.
		assert.Contains(t, strings.Join(chunks, ""), "Hello, World!")
	})

	t.Run("stderr forwarded with prefix after stdout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"run":{"stdout":"out","stderr":"warning: x unused","code":0}}`))
		}))
		defer srv.Close()

		a := piston.New(srv.URL, testLogger())

		var chunks []string
		_, err := a.Run(context.Background(), model.ExecutionRequest{Language: model.LanguageCPP},
			func(c string) { chunks = append(chunks, c) })
		assert.NoError(t, err)

		joined := strings.Join(chunks, "")
		assert.Contains(t, joined, "[Stderr]")
		assert.Less(t, strings.Index(joined, "out"), strings.Index(joined, "[Stderr]"))
	})

	t.Run("top-level message is fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"message":"runtime unknown"}`))
		}))
		defer srv.Close()

		a := piston.New(srv.URL, testLogger())

		var chunks []string
		outcome, err := a.Run(context.Background(), model.ExecutionRequest{Language: model.LanguageCPP},
			func(c string) { chunks = append(chunks, c) })

		assert.NoError(t, err)
		assert.Equal(t, "runtime unknown", outcome.BackendError)
		assert.Empty(t, outcome.Stdout)

		joined := strings.Join(chunks, "")
		assert.Contains(t, joined, "[Error] runtime unknown")
	})

	t.Run("non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		a := piston.New(srv.URL, testLogger())

		_, err := a.Run(context.Background(), model.ExecutionRequest{Language: model.LanguageCPP},
			func(string) {})

		var httpErr *executor.BackendHTTPError
		if assert.Error(t, err) && assert.True(t, errors.As(err, &httpErr)) {
			assert.Equal(t, http.StatusBadGateway, httpErr.Status)
		}
	})

	t.Run("malformed JSON body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>definitely not json</html>`))
		}))
		defer srv.Close()

		a := piston.New(srv.URL, testLogger())

		_, err := a.Run(context.Background(), model.ExecutionRequest{Language: model.LanguageCPP},
			func(string) {})

		var protoErr *executor.BackendProtocolError
		if assert.Error(t, err) && assert.True(t, errors.As(err, &protoErr)) {
			assert.Contains(t, protoErr.RawBody, "not json")
		}
	})

	t.Run("network failure", func(t *testing.T) {
		// A server that is already closed refuses the connection.
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		a := piston.New(srv.URL, testLogger())

		_, err := a.Run(context.Background(), model.ExecutionRequest{Language: model.LanguageCPP},
			func(string) {})
		assert.Error(t, err)
	})
}
