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

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req schemas.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}

	resp, created, err := h.Controller.CreateTransaction(ctx, &req)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	// A duplicate is acknowledged with the stored transaction, not an error.
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	h.respond(w, r, resp, status)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	txUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid transaction uuid"))
		return
	}

	resp, err := h.Controller.GetTransaction(ctx, txUUID)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, resp, http.StatusOK)
}

func (h *Handler) PatchTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	txUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid transaction uuid"))
		return
	}

	var patch schemas.TransactionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}

	resp, err := h.Controller.PatchTransaction(ctx, txUUID, &patch)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, resp, http.StatusOK)
}

func (h *Handler) BulkIngestTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var candidates []schemas.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&candidates); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}
	if len(candidates) == 0 {
		h.HandleErrors(w, utils.BadRequest("empty batch"))
		return
	}

	result, err := h.Controller.BulkIngestTransactions(ctx, candidates)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, result, http.StatusOK)
}

func (h *Handler) GetWalletTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	walletUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid wallet uuid"))
		return
	}

	transactions, err := h.Controller.GetWalletTransactions(ctx, walletUUID)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, transactions, http.StatusOK)
}
