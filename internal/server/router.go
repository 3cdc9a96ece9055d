package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Router builds the HTTP surface using the standard
// chi.NewRouter/middleware/cors.Handler wiring pattern.
func (d *Dispatcher) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Gemini-Key", "X-Google-Key", "X-OpenAI-Key", "X-Anthropic-Key", "X-Image-Key", "X-User-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/generate", d.handleGenerate)
	r.Post("/generate/podcast", d.handleGeneratePodcast)
	r.Post("/generate/mindmap", d.handleGenerateMindMap)
	r.Post("/generate/faq", d.handleGenerateFAQ)
	r.Post("/upload", d.handleUpload)
	r.Get("/download/*", d.handleDownload)
	r.Get("/health", d.handleHealth)
	r.Get("/session/{session_id}", d.handleSession)

	return r
}
