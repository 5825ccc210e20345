package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cryptofolio/src/schemas"
	"cryptofolio/src/utils"
)

func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req schemas.CreateWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}

	wallet, err := h.Controller.CreateWallet(ctx, &req)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, wallet, http.StatusCreated)
}

func (h *Handler) GetAllWallets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	wallets, err := h.Controller.GetAllWallets(ctx)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, wallets, http.StatusOK)
}

func (h *Handler) GetWalletByUUID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	walletUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid wallet uuid"))
		return
	}

	wallet, err := h.Controller.GetWalletByUUID(ctx, walletUUID)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, wallet, http.StatusOK)
}

func (h *Handler) UpdateWallet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	walletUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid wallet uuid"))
		return
	}

	var patch schemas.WalletPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}

	wallet, err := h.Controller.UpdateWallet(ctx, walletUUID, &patch)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, wallet, http.StatusOK)
}

func (h *Handler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	walletUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid wallet uuid"))
		return
	}

	if err := h.Controller.DeleteWallet(ctx, walletUUID); err != nil {
		h.HandleErrors(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateCexAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req schemas.CreateCexAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}

	account, err := h.Controller.CreateCexAccount(ctx, &req)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, account, http.StatusCreated)
}

func (h *Handler) GetAllCexAccounts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	accounts, err := h.Controller.GetAllCexAccounts(ctx)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, accounts, http.StatusOK)
}

func (h *Handler) UpdateCexAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	accountUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid cex account uuid"))
		return
	}

	var patch schemas.CexAccountPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}

	account, err := h.Controller.UpdateCexAccount(ctx, accountUUID, &patch)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, account, http.StatusOK)
}

func (h *Handler) DeleteCexAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	accountUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid cex account uuid"))
		return
	}

	if err := h.Controller.DeleteCexAccount(ctx, accountUUID); err != nil {
		h.HandleErrors(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
