package handler

import "net/http"

// Version is reported by the health endpoint so deployed revisions can be
// told apart without shelling into the box.
const Version = "1.0.1"

// HandleHealth answers the liveness probe.
//
// HTTP: GET /api/health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}
