package api

import (
	"net/http"
)

func (s *Server) handleChunkingStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":       s.engine.Stats().Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
