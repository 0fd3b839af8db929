package handler

import (
	"encoding/json"
	"net/http"
)

// ----- Handler: GET /health -----

// handleHealth reports liveness and the number of live channel sessions.
func (handler *LocationHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	type resp struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	_ = json.NewEncoder(w).Encode(resp{Status: "ok", Connections: handler.channel.Count()})
}
