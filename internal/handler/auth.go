// Package handler contains the HTTP request handlers for the mini-IDE API.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (body, params, headers)
// 2. Call the store or dispatcher behind it
// 3. Translate the result to status codes and JSON
//
// Handlers contain no business rules — validation and authorization
// decisions live in the session and file stores; handlers are the glue
// between HTTP and those components.
package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/sakif/mini-ide/internal/apperror"
	"github.com/sakif/mini-ide/internal/session"
)

// AuthHandler exposes register/login/logout/verify over the session store.
type AuthHandler struct {
	sessions *session.Store
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(sessions *session.Store, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// credentialsRequest is the body of both register and login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authResponse is the success body of register and login.
type authResponse struct {
	Success  bool   `json:"success"`
	Token    string `json:"token"`
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

// HandleRegister creates an account and logs it straight in — the returned
// token is live, no separate login round-trip needed.
//
// HTTP: POST /api/register {username, password}
// → 201 {success, token, username, message} | 400 | 409
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	creds, err := h.sessions.Register(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Success:  true,
		Token:    creds.Token,
		Username: creds.Username,
		Message:  "registered",
	})
}

// HandleLogin checks credentials and issues a fresh session token.
//
// HTTP: POST /api/login {username, password}
// → 200 {success, token, username} | 401 | 429 (rate limited)
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	creds, err := h.sessions.Login(req.Username, req.Password, clientAddr(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Success:  true,
		Token:    creds.Token,
		Username: creds.Username,
	})
}

// HandleLogout revokes the token in the body. Always reports success — a
// token that is already gone is just as logged out as one that was live.
//
// HTTP: POST /api/logout {token} → 200 {success:true}
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	// A malformed body still "succeeds": there is nothing to revoke.
	_ = json.NewDecoder(r.Body).Decode(&req)

	h.sessions.Logout(req.Token)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleVerify reports whether a token is currently a live session. The
// client calls this on startup to decide whether its cached token still
// works.
//
// HTTP: POST /api/verify {token} → 200 {valid}
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	writeJSON(w, http.StatusOK, map[string]bool{"valid": h.sessions.IsValid(req.Token)})
}

// clientAddr extracts the client host for rate-limit keying. The RealIP
// middleware has already rewritten RemoteAddr when a proxy header is
// present.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
