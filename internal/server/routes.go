package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/classfund/internal/common"
)

// setupRoutes registers the REST API and the MCP endpoint.
func (s *Server) setupRoutes() {
	r := s.router

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		// System
		r.Get("/health", s.handleHealth)
		r.Head("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)

		// Portfolio
		r.Get("/portfolio", s.handlePortfolioGet)
		r.Get("/portfolio/chart.png", s.handlePortfolioChart)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/benchmark", s.handleBenchmark)

		// Lineage
		r.Get("/lineage", s.handleLineageAudit)
		r.Get("/lineage/{ticker}", s.handleLineageTrace)
	})

	if s.app.MCPServer != nil {
		// MCP over Streamable HTTP
		r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.app.MCPServer,
			mcpserver.WithStateLess(true),
		))
	}
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}
