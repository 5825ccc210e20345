package worker

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"cryptofolio/src/config"
	"cryptofolio/src/utils"
	"cryptofolio/src/worker/handlers"
)

type Server struct {
	Router  *chi.Mux
	Handler *handlers.Handler

	logger *logrus.Logger
	port   string
}

func NewServer(cfg *config.Config) (*Server, error) {
	handler, err := handlers.NewHandler(cfg)
	if err != nil {
		return nil, err
	}

	server := &Server{
		Router:  chi.NewRouter(),
		Handler: handler,
		logger:  utils.NewLogger(cfg.Service.LogLevel),
		port:    cfg.Service.Port,
	}
	server.InitRoutes()

	// Cron jobs run outside any request, so they get the logger through
	// their base context.
	jobCtx := utils.WithLogger(context.Background(), server.logger)
	if err := handler.Controller.StartSchedules(jobCtx); err != nil {
		return nil, err
	}
	return server, nil
}

func loggerMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(utils.WithLogger(r.Context(), logger)))
		})
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) InitRoutes() {
	s.Router.Use(loggerMiddleware(s.logger))

	s.Router.Get("/alive", handlers.Healthcheck)

	s.Router.Route("/api/maintenance", func(r chi.Router) {
		r.Post("/schedules", s.Handler.StartSchedules)
		r.Post("/sweep/{type}", s.Handler.RunSweep)
		r.Post("/prune", s.Handler.RunPrune)
		r.Post("/prices", s.Handler.RunPriceRefresh)
	})
}

func NewHTTPServer(server *Server) *http.Server {
	port := server.port
	if port == "" {
		port = "8000"
	}
	return &http.Server{
		Addr:         ":" + port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		Handler:      server,
	}
}
