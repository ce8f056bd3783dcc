// Package rest exposes the canvas engine over HTTP.
package rest

import (
	"net/http"

	"canvas-backend/application/services/session"
	"canvas-backend/interfaces/http/rest/handlers"
	"canvas-backend/interfaces/http/rest/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Metrics records requests and serves the scrape endpoint
type Metrics interface {
	middleware.RequestRecorder
	Handler() http.Handler
}

// Router creates and configures the HTTP router
type Router struct {
	sessions       *session.Manager
	metrics        Metrics
	allowedOrigins []string
	logger         *zap.Logger
}

// NewRouter creates a new router instance. metrics may be nil.
func NewRouter(sessions *session.Manager, metrics Metrics, allowedOrigins []string, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		sessions:       sessions,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Get("/health", rt.healthCheck)

	sessionHandler := handlers.NewSessionHandler(rt.sessions, rt.logger)
	nodeHandler := handlers.NewNodeHandler(rt.logger)
	pipelineHandler := handlers.NewPipelineHandler(rt.logger)
	outputHandler := handlers.NewOutputHandler(rt.logger)

	router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", sessionHandler.Open)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Use(handlers.SessionCtx(rt.sessions, rt.logger))

			r.Get("/", sessionHandler.Get)
			r.Delete("/", sessionHandler.Close)
			r.Get("/graph", sessionHandler.Graph)
			r.Put("/name", sessionHandler.Rename)
			r.Post("/load", sessionHandler.Load)
			r.Post("/client", sessionHandler.SwitchClient)
			r.Get("/canvases", sessionHandler.ListCanvases)
			r.Post("/save", sessionHandler.Save)
			r.Get("/save", sessionHandler.SaveStatus)

			// Node endpoints
			r.Route("/nodes", func(r chi.Router) {
				r.Post("/", nodeHandler.CreateNode)
				r.Post("/changes", nodeHandler.ApplyNodeChanges)
				r.Post("/library", nodeHandler.AddLibraryNode)
				r.Get("/{nodeID}", nodeHandler.GetNode)
				r.Patch("/{nodeID}", nodeHandler.UpdateNode)
				r.Delete("/{nodeID}", nodeHandler.DeleteNode)
				r.Post("/{nodeID}/generate", pipelineHandler.Generate)
				r.Post("/{nodeID}/edit-image", pipelineHandler.EditImage)
				r.Post("/{nodeID}/extract", pipelineHandler.Extract)
				r.Post("/{nodeID}/files", pipelineHandler.Upload)
				r.Post("/{nodeID}/images/{imageID}/analyze", pipelineHandler.AnalyzeImage)
			})

			// Edge endpoints
			r.Route("/edges", func(r chi.Router) {
				r.Post("/", nodeHandler.Connect)
				r.Post("/changes", nodeHandler.ApplyEdgeChanges)
				r.Delete("/{edgeID}", nodeHandler.Disconnect)
			})

			// Output endpoints
			r.Route("/outputs/{outputID}", func(r chi.Router) {
				r.Post("/regenerate", pipelineHandler.Regenerate)
				r.Put("/content", outputHandler.EditContent)
				r.Put("/editing", outputHandler.SetEditing)
				r.Post("/restore", outputHandler.RestoreVersion)
				r.Put("/approval", outputHandler.SetApproval)
				r.Post("/comments", outputHandler.AddComment)
				r.Post("/planning", outputHandler.MarkSentToPlanning)
			})

			r.Post("/analyze", pipelineHandler.AnalyzeBatch)
			r.Get("/jobs", pipelineHandler.ListJobs)
			r.Get("/jobs/{jobID}", pipelineHandler.GetJob)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
