package web

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/emotion-check/internal/constants"
	"github.com/kozaktomas/emotion-check/internal/web/handlers"
	"github.com/kozaktomas/emotion-check/internal/web/middleware"
	"github.com/kozaktomas/emotion-check/internal/web/static"
)

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.service.Classifier())
	sessionsHandler := handlers.NewSessionsHandler(s.service)
	recommendationsHandler := handlers.NewRecommendationsHandler(s.service)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.BodyLimit(constants.MaxRequestSize))
		r.NotFound(handlers.NotFound)
		r.MethodNotAllowed(handlers.MethodNotAllowed)

		r.Get("/health", healthHandler.Check)
		r.Post("/create-session", sessionsHandler.Create)
		r.Post("/upload-frames", sessionsHandler.UploadFrames)
		r.Post("/analyze-emotions", sessionsHandler.Analyze)
		r.Post("/get-recommendations", recommendationsHandler.Get)
	})

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	// Serve the capture page
	s.router.Get("/*", s.serveSPA)
}

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".ico":  "image/x-icon",
}

// serveSPA serves the embedded capture page and its assets
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	if static.HasDist() {
		fs := static.GetFileSystem()
		p := r.URL.Path
		if p == "/" {
			p = "/index.html"
		}

		f, err := fs.Open(p)
		if err == nil {
			defer f.Close()

			stat, err := f.Stat()
			if err == nil && !stat.IsDir() {
				contentType, ok := contentTypes[path.Ext(p)]
				if !ok {
					contentType = "application/octet-stream"
				}
				w.Header().Set("Content-Type", contentType)
				if strings.HasPrefix(p, "/assets/") {
					w.Header().Set("Cache-Control", "public, max-age=3600")
				}
				w.WriteHeader(http.StatusOK)
				io.Copy(w, f)
				return
			}
		}

		// Unknown non-asset paths fall back to the page itself
		if !strings.HasPrefix(p, "/assets/") {
			indexFile, err := fs.Open("/index.html")
			if err == nil {
				defer indexFile.Close()
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				io.Copy(w, indexFile)
				return
			}
		}
	}

	http.NotFound(w, r)
}
