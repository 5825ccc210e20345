package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/shopspring/decimal"

	"cryptofolio/src/api/controllers"
	"cryptofolio/src/config"
	"cryptofolio/src/database"
	"cryptofolio/src/repositories"
	"cryptofolio/src/services"
	"cryptofolio/src/utils"
	redis_utils "cryptofolio/src/utils/redis"
)

type Handler struct {
	Controller *controllers.Controller
	TokenAuth  *jwtauth.JWTAuth

	cfg *config.Config
}

func NewHandler(cfg *config.Config) (*Handler, error) {
	pool, err := database.SetupDB(cfg)
	if err != nil {
		return nil, err
	}
	gormDB, err := database.SetupGormDB(cfg)
	if err != nil {
		return nil, err
	}

	dust, err := decimal.NewFromString(cfg.Ledger.DustThreshold)
	if err != nil {
		return nil, err
	}

	txRepo := repositories.NewTransactionRepository(pool)
	balanceRepo := repositories.NewBalanceRepository(pool)
	historyRepo := repositories.NewBalanceHistoryRepository(pool)
	walletRepo := repositories.NewWalletRepository(pool)
	tokenRepo := repositories.NewTokenRepository(pool)

	calculator := services.NewBalanceCalculator(dust)
	ledger := services.NewLedgerService(pool, txRepo, balanceRepo, historyRepo, walletRepo, tokenRepo,
		calculator, cfg.Ledger.SnapshotEnabled)
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

	reports := services.NewReportService(historyRepo, tokenRepo)

	controller := controllers.NewController(gormDB, ledger, snapshots, prices, reports)
	tokenAuth := jwtauth.New("HS256", []byte(cfg.Auth.Secret), nil)

	return &Handler{Controller: controller, TokenAuth: tokenAuth, cfg: cfg}, nil
}

func (h *Handler) respond(w http.ResponseWriter, _ *http.Request, data interface{}, status int) {
	res, err := json.Marshal(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(res)
}

// HandleErrors maps service and repository sentinels onto HTTP statuses.
func (h *Handler) HandleErrors(w http.ResponseWriter, err error) {
	var httpErr *utils.HTTPError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.respond(w, nil, map[string]string{"error": "Request timed out"}, http.StatusGatewayTimeout)
	case errors.As(err, &httpErr):
		h.respond(w, nil, map[string]string{"error": httpErr.Message}, httpErr.Code)
	case errors.Is(err, services.ErrDuplicateTransaction):
		h.respond(w, nil, map[string]string{"error": err.Error()}, http.StatusConflict)
	case errors.Is(err, services.ErrInsufficientBalance):
		h.respond(w, nil, map[string]string{"error": err.Error()}, http.StatusUnprocessableEntity)
	case errors.Is(err, services.ErrUnknownAccountOrAsset):
		h.respond(w, nil, map[string]string{"error": err.Error()}, http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidTransaction),
		errors.Is(err, services.ErrUnsupportedTransactionKind):
		h.respond(w, nil, map[string]string{"error": err.Error()}, http.StatusBadRequest)
	case errors.Is(err, repositories.ErrTransactionNotFound),
		errors.Is(err, repositories.ErrBalanceNotFound),
		errors.Is(err, repositories.ErrWalletNotFound),
		errors.Is(err, repositories.ErrCexAccountNotFound),
		errors.Is(err, repositories.ErrTokenNotFound):
		h.respond(w, nil, map[string]string{"error": err.Error()}, http.StatusNotFound)
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
