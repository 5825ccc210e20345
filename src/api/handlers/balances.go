package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cryptofolio/src/schemas"
	"cryptofolio/src/utils"
)

const shortDateLayout = "2006-01-02"

func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if s := r.URL.Query().Get("startDate"); s != "" {
		parsed, err := time.Parse(shortDateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, utils.NewHTTPError(http.StatusUnprocessableEntity, "invalid startDate")
		}
		from = parsed
	}
	if s := r.URL.Query().Get("endDate"); s != "" {
		parsed, err := time.Parse(shortDateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, utils.NewHTTPError(http.StatusUnprocessableEntity, "invalid endDate")
		}
		// Inclusive end of day.
		to = parsed.Add(24*time.Hour - time.Second)
	}
	return from, to, nil
}

func (h *Handler) GetWalletBalances(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	walletUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid wallet uuid"))
		return
	}

	includeZero := r.URL.Query().Get("includeZero") == "true"

	balances, err := h.Controller.GetWalletBalances(ctx, walletUUID, includeZero)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, balances, http.StatusOK)
}

func (h *Handler) GetWalletHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	walletUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid wallet uuid"))
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	history, err := h.Controller.GetWalletHistory(ctx, walletUUID, from, to)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, history, http.StatusOK)
}

func (h *Handler) GetPortfolioTotals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	walletUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid wallet uuid"))
		return
	}

	totals, err := h.Controller.GetPortfolioTotals(ctx, walletUUID)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, totals, http.StatusOK)
}

// RecalculateWallet replays every balance the wallet owns. Bounded generously:
// a wallet with years of history takes a while.
func (h *Handler) RecalculateWallet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	walletUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid wallet uuid"))
		return
	}

	createSnapshots := r.URL.Query().Get("snapshots") == "true"

	report, err := h.Controller.RecalculateWallet(ctx, walletUUID, createSnapshots)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, report, http.StatusOK)
}

func (h *Handler) SetTokenPrice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	tokenID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid token id"))
		return
	}

	var req schemas.PriceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}
	if req.PriceUSD.IsNegative() {
		h.HandleErrors(w, utils.BadRequest("price must be non-negative"))
		return
	}

	updated, err := h.Controller.SetTokenPrice(ctx, tokenID, req)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, map[string]int{"updated_balances": updated}, http.StatusOK)
}
