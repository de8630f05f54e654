package api

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dgallion1/budgetqa/internal/config"
	"github.com/dgallion1/budgetqa/internal/index"
	"github.com/dgallion1/budgetqa/internal/pipeline"
	"github.com/dgallion1/budgetqa/internal/rag"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Server is the HTTP front end: the question page plus the JSON API.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	engine       *rag.Engine
	index        index.Index
	stats        *rag.LLMStats
	log          *slog.Logger
	cfg          config.Config

	page     *template.Template
	markdown goldmark.Markdown
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, engine *rag.Engine, idx index.Index, stats *rag.LLMStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		engine:       engine,
		index:        idx,
		stats:        stats,
		log:          log,
		cfg:          cfg,
		page:         template.Must(template.New("page").Parse(pageTemplate)),
		markdown:     goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndexPage)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/query", s.handleQuery)
		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/stats/llm", s.handleLLMStats)
		r.Get("/api/index/stats", s.handleIndexStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
