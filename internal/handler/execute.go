package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/mini-ide/internal/apperror"
	"github.com/sakif/mini-ide/internal/executor"
	"github.com/sakif/mini-ide/internal/model"
)

// ExecuteHandler runs code through the execution dispatcher.
type ExecuteHandler struct {
	dispatcher *executor.Dispatcher
	logger     *slog.Logger
}

// NewExecuteHandler creates an ExecuteHandler.
func NewExecuteHandler(dispatcher *executor.Dispatcher, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// executeRequest is the execute body.
type executeRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Stdin    string `json:"stdin"`
}

// executeResponse carries the normalised outcome plus the assembled console
// stream (adapter chunks and the dispatcher's trailing status lines, in
// arrival order).
type executeResponse struct {
	Stdout       string `json:"stdout"`
	Stderr       string `json:"stderr"`
	ExitCode     int    `json:"exitCode"`
	TimedOut     bool   `json:"timedOut"`
	BackendError string `json:"backendError,omitempty"`
	Output       string `json:"output"`
	DurationMs   int64  `json:"durationMs"`
}

// HandleExecute runs a snippet in whatever backend is configured for its
// language.
//
// HTTP: POST /api/execute {language, code, stdin}
// → 200 {stdout, stderr, exitCode, timedOut, output, durationMs} | 400
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	lang, ok := model.ParseLanguage(req.Language)
	if !ok {
		writeError(w, apperror.ValidationFailed("language", "unsupported language"))
		return
	}
	if req.Code == "" {
		writeError(w, apperror.ValidationFailed("code", "code cannot be empty"))
		return
	}

	h.logger.Info("executing snippet", slog.String("language", string(lang)))

	outcome, output, err := h.run(w, r, model.ExecutionRequest{
		Language: lang,
		Code:     req.Code,
		Stdin:    req.Stdin,
	})
	if err != nil {
		return // h.run already wrote the error
	}

	writeJSON(w, http.StatusOK, executeResponse{
		Stdout:       outcome.Stdout,
		Stderr:       outcome.Stderr,
		ExitCode:     outcome.ExitCode,
		TimedOut:     outcome.TimedOut,
		BackendError: outcome.BackendError,
		Output:       output,
		DurationMs:   outcome.Duration.Milliseconds(),
	})
}

// compileCPPRequest is the /api/compile/cpp body, kept for older clients
// that predate /api/execute.
type compileCPPRequest struct {
	Code  string `json:"code"`
	Stdin string `json:"stdin"`
}

// HandleCompileCPP is the legacy C++ endpoint: same dispatch as
// HandleExecute with the language pinned, answered in the local-variant
// shape.
//
// HTTP: POST /api/compile/cpp {code, stdin}
// → 200 {success, stdout, stderr, code} | 400
func (h *ExecuteHandler) HandleCompileCPP(w http.ResponseWriter, r *http.Request) {
	var req compileCPPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}
	if req.Code == "" {
		writeError(w, apperror.ValidationFailed("code", "code cannot be empty"))
		return
	}

	outcome, _, err := h.run(w, r, model.ExecutionRequest{
		Language: model.LanguageCPP,
		Code:     req.Code,
		Stdin:    req.Stdin,
	})
	if err != nil {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": outcome.ExitCode == 0 && !outcome.TimedOut && outcome.BackendError == "",
		"stdout":  outcome.Stdout,
		"stderr":  outcome.Stderr,
		"code":    outcome.ExitCode,
	})
}

// run dispatches and collects the chunk stream. On a dispatch error (only an
// unsupported language can cause one) it writes the error response itself
// and returns a non-nil error so callers bail out.
func (h *ExecuteHandler) run(w http.ResponseWriter, r *http.Request, req model.ExecutionRequest) (*model.ExecutionOutcome, string, error) {
	var output strings.Builder
	outcome, err := h.dispatcher.Execute(r.Context(), req, func(chunk string) {
		output.WriteString(chunk)
	})
	if err != nil {
		h.logger.Warn("dispatch refused", slog.String("error", err.Error()))
		writeError(w, err)
		return nil, "", err
	}
	return outcome, output.String(), nil
}
