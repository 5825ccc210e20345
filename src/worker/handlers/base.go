package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cryptofolio/src/config"
	"cryptofolio/src/database"
	"cryptofolio/src/repositories"
	"cryptofolio/src/services"
	"cryptofolio/src/utils"
	redis_utils "cryptofolio/src/utils/redis"
	"cryptofolio/src/worker/controllers"
)

type Handler struct {
	Controller *controllers.Controller
}

func NewHandler(cfg *config.Config) (*Handler, error) {
	pool, err := database.SetupDB(cfg)
	if err != nil {
		return nil, err
	}

	balanceRepo := repositories.NewBalanceRepository(pool)
	historyRepo := repositories.NewBalanceHistoryRepository(pool)
	tokenRepo := repositories.NewTokenRepository(pool)

	snapshots := services.NewSnapshotService(balanceRepo, historyRepo,
		cfg.Ledger.HourlyRetentionDays, cfg.Ledger.HistoryRetentionDays)

	var priceCache services.PriceCache
	if cfg.Databases.Redis.Host != "" {
		redisHandler, err := redis_utils.NewRedisHandler(cfg)
		if err != nil {
			return nil, err
		}
		priceCache = redisHandler
	}
	prices := services.NewPriceService(tokenRepo, balanceRepo,
		services.NewStoredPriceSource(balanceRepo), priceCache, snapshots)

	controller := controllers.NewController(snapshots, prices, cfg)
	return &Handler{Controller: controller}, nil
}

func (h *Handler) respond(w http.ResponseWriter, _ *http.Request, data interface{}, status int) {
	res, err := json.Marshal(data)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(res)
}

func (h *Handler) HandleErrors(w http.ResponseWriter, err error) {
	var httpErr *utils.HTTPError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.respond(w, nil, map[string]string{"error": "Request timed out"}, http.StatusGatewayTimeout)
	case errors.As(err, &httpErr):
		h.respond(w, nil, map[string]string{"error": httpErr.Message}, httpErr.Code)
	case err != nil:
		h.respond(w, nil, map[string]string{"error": err.Error()}, http.StatusInternalServerError)
	default:
		h.respond(w, nil, map[string]string{"error": "Unhandled error"}, http.StatusInternalServerError)
	}
}

func Healthcheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
