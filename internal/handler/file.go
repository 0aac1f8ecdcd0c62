package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/mini-ide/internal/apperror"
	"github.com/sakif/mini-ide/internal/auth"
	"github.com/sakif/mini-ide/internal/filestore"
)

// FileHandler exposes the saved-files store.
//
// AUTH SHAPES DIFFER BY ROUTE, matching what the browser client sends:
//   - save carries the token in the JSON body
//   - delete carries it as a bearer header (enforced by auth.RequireToken
//     on the route, not here)
//   - list and read are public
type FileHandler struct {
	files    *filestore.Store
	sessions auth.TokenValidator
	logger   *slog.Logger
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(files *filestore.Store, sessions auth.TokenValidator, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		files:    files,
		sessions: sessions,
		logger:   logger,
	}
}

// saveRequest is the save body. Language is accepted for client convenience
// but the extension is what actually decides the file type.
type saveRequest struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
	Language string `json:"language"`
	Token    string `json:"token"`
}

// HandleSave writes (or overwrites) a saved file.
//
// HTTP: POST /api/save {filename, code, language, token}
// → 200 {success, message, path} | 401 | 400
//
// The token is checked before anything else — an anonymous caller learns
// nothing about which filenames or extensions would have been accepted.
func (h *FileHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	if req.Token == "" || !h.sessions.IsValid(req.Token) {
		writeError(w, apperror.Unauthorized("login required"))
		return
	}

	name, err := h.files.Save(req.Filename, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "file \"" + name + "\" saved",
		"path":    name,
	})
}

// HandleList enumerates saved files.
//
// HTTP: GET /api/files → 200 [{name, size, modified}]
func (h *FileHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	files, err := h.files.List()
	if err != nil {
		h.logger.Error("listing files failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// HandleRead returns one saved file's content.
//
// HTTP: GET /api/file/{filename} → 200 {name, code} | 404
func (h *FileHandler) HandleRead(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	content, err := h.files.Read(filename)
	if err != nil {
		writeError(w, err)
		return
	}

	name, _ := filestore.Sanitize(filename)
	writeJSON(w, http.StatusOK, map[string]string{
		"name": name,
		"code": content,
	})
}

// HandleDelete removes one saved file. The route is wrapped in
// auth.RequireToken, so an invalid bearer token never reaches this point.
//
// HTTP: DELETE /api/file/{filename} (Authorization: Bearer <token>)
// → 200 {success:true} | 401 | 404
func (h *FileHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	if err := h.files.Delete(filename); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
