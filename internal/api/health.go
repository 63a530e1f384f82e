package api

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status string         `json:"status"`
	Counts map[string]int `json:"counts,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.health != nil {
		resp.Counts = s.health()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warnf("Failed to write health response: %v", err)
	}
}
