package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": map[string]string{
			"chat":  s.cfg.ChatModel,
			"embed": s.cfg.EmbeddingModel,
		},
		"stats": s.stats.All(),
	})
}

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	n, err := s.index.Count(r.Context())
	if err != nil {
		s.log.Error("index count failed", "error", err)
		jsonError(w, "index unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backend":     s.cfg.IndexBackend,
		"collection":  s.cfg.Collection,
		"chunks":      n,
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
