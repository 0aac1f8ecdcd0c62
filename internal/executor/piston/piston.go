// Package piston implements the execution-backend adapter that delegates to
// a remote Piston-style execution API.
//
// One request, one HTTP POST, no retries: a single network failure is a
// single reported failure to the caller. The adapter also carries no timeout
// of its own — the remote service enforces its own limits, and the caller's
// context still cancels the HTTP call if the client goes away.
package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/mini-ide/internal/executor"
	"github.com/sakif/mini-ide/internal/model"
)

// DefaultEndpoint is the public Piston instance.
const DefaultEndpoint = "https://emkc.org/api/v2/piston/execute"

// versions pins the runtime version sent per language; the Piston API
// rejects requests without one.
var versions = map[model.Language]string{
	model.LanguageCPP:    "10.2.0",
	model.LanguagePython: "3.10.0",
}

// Adapter posts code to a remote execution endpoint.
type Adapter struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// New creates an Adapter for the given endpoint; "" means DefaultEndpoint.
func New(endpoint string, logger *slog.Logger) *Adapter {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Adapter{
		endpoint: endpoint,
		client:   http.DefaultClient,
		logger:   logger,
	}
}

// request is the Piston execute payload.
type request struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []requestFile `json:"files"`
	Stdin    string        `json:"stdin"`
}

type requestFile struct {
	Content string `json:"content"`
}

// response is the Piston execute result. A populated top-level Message means
// the backend rejected the request (bad version, rate limit on their side);
// otherwise Run carries the program's streams and exit code.
type response struct {
	Message string `json:"message"`
	Run     struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
		Code   int    `json:"code"`
	} `json:"run"`
}

var _ executor.Adapter = (*Adapter)(nil)

// Run performs the single POST and normalises the response.
//
// Output ordering contract: stdout is forwarded first, stderr after it with
// a distinct prefix. The dispatcher appends the exit-code and elapsed lines.
func (a *Adapter) Run(ctx context.Context, req model.ExecutionRequest, emit executor.Sink) (*model.ExecutionOutcome, error) {
	emit("[System] Compiling and running via remote execution API...\n")

	payload, err := json.Marshal(request{
		Language: string(req.Language),
		Version:  versions[req.Language],
		Files:    []requestFile{{Content: req.Code}},
		Stdin:    req.Stdin,
	})
	if err != nil {
		return nil, fmt.Errorf("piston: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("piston: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("piston: calling execution API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("piston: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		a.logger.Warn("execution API error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return nil, &executor.BackendHTTPError{Status: resp.StatusCode}
	}

	var result response
	if err := json.Unmarshal(body, &result); err != nil {
		a.logger.Warn("execution API returned non-JSON body",
			slog.String("body", string(body)),
		)
		return nil, &executor.BackendProtocolError{RawBody: string(body)}
	}

	// A top-level message is a fatal backend-side error: one [Error] chunk,
	// nothing further.
	if result.Message != "" {
		emit(fmt.Sprintf("[Error] %s\n", result.Message))
		return &model.ExecutionOutcome{
			BackendError: result.Message,
			ExitCode:     -1,
		}, nil
	}

	if result.Run.Stdout != "" {
		emit(result.Run.Stdout)
	}
	if result.Run.Stderr != "" {
		emit(fmt.Sprintf("\n[Stderr]\n%s", result.Run.Stderr))
	}

	return &model.ExecutionOutcome{
		Stdout:   result.Run.Stdout,
		Stderr:   result.Run.Stderr,
		ExitCode: result.Run.Code,
	}, nil
}
