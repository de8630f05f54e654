package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/budgetqa/internal/rag"
)

const setupHint = "the index is empty: ingest the budget document first (POST /api/ingest or cmd/ingest)"

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if msg, code := s.checkSetup(r.Context()); code != 0 {
		jsonError(w, msg, code)
		return
	}

	res, err := s.engine.Query(r.Context(), req.Query, s.resolveK(req.K))
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuestion) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("query failed", "error", err)
		jsonError(w, "query failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// resolveK falls back to the configured top-k when the caller sends none.
func (s *Server) resolveK(k int) int {
	if k <= 0 {
		k = s.cfg.TopK
	}
	return rag.ClampK(k)
}

// checkSetup returns a message and status code when questions cannot be answered yet.
func (s *Server) checkSetup(ctx context.Context) (string, int) {
	n, err := s.index.Count(ctx)
	if err != nil {
		s.log.Error("index count failed", "error", err)
		return "index unavailable: " + err.Error(), http.StatusServiceUnavailable
	}
	if n == 0 {
		return setupHint, http.StatusServiceUnavailable
	}
	return "", 0
}
