package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/sirupsen/logrus"

	"cryptofolio/src/api/handlers"
	"cryptofolio/src/config"
	"cryptofolio/src/utils"
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
	return server, nil
}

// loggerMiddleware hangs the server logger on every request context.
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
	s.Router.Post("/auth/token", s.Handler.PostToken)

	s.Router.Route("/api", func(r chi.Router) {
		r.Use(jwtauth.Verifier(s.Handler.TokenAuth))
		r.Use(jwtauth.Authenticator)

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/", s.Handler.GetAllWallets)
			r.Post("/", s.Handler.CreateWallet)
			r.Get("/{uuid}", s.Handler.GetWalletByUUID)
			r.Patch("/{uuid}", s.Handler.UpdateWallet)
			r.Delete("/{uuid}", s.Handler.DeleteWallet)

			r.Get("/{uuid}/transactions", s.Handler.GetWalletTransactions)
			r.Get("/{uuid}/balances", s.Handler.GetWalletBalances)
			r.Get("/{uuid}/history", s.Handler.GetWalletHistory)
			r.Get("/{uuid}/totals", s.Handler.GetPortfolioTotals)
			r.Post("/{uuid}/recalculate", s.Handler.RecalculateWallet)
			r.Get("/{uuid}/report", s.Handler.GetWalletXLSXReport)
			r.Get("/{uuid}/chart", s.Handler.GetWalletValueChart)
		})

		r.Route("/cex-accounts", func(r chi.Router) {
			r.Get("/", s.Handler.GetAllCexAccounts)
			r.Post("/", s.Handler.CreateCexAccount)
			r.Patch("/{uuid}", s.Handler.UpdateCexAccount)
			r.Delete("/{uuid}", s.Handler.DeleteCexAccount)
		})

		r.Route("/tokens", func(r chi.Router) {
			r.Get("/", s.Handler.GetAllTokens)
			r.Post("/", s.Handler.CreateToken)
			r.Get("/{id}", s.Handler.GetTokenByID)
			r.Patch("/{id}", s.Handler.UpdateToken)
			r.Delete("/{id}", s.Handler.DeleteToken)
			r.Post("/{id}/price", s.Handler.SetTokenPrice)
		})

		r.Route("/chains", func(r chi.Router) {
			r.Get("/", s.Handler.GetAllChains)
			r.Post("/", s.Handler.CreateChain)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", s.Handler.CreateTransaction)
			r.Post("/bulk", s.Handler.BulkIngestTransactions)
			r.Get("/{uuid}", s.Handler.GetTransaction)
			r.Patch("/{uuid}", s.Handler.PatchTransaction)
		})
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
		WriteTimeout: 2 * time.Minute,
		Handler:      server,
	}
}
