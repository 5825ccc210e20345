package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cryptofolio/src/schemas"
	"cryptofolio/src/utils"
)

func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req schemas.CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}

	token, err := h.Controller.CreateToken(ctx, &req)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, token, http.StatusCreated)
}

func (h *Handler) GetAllTokens(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	tokens, err := h.Controller.GetAllTokens(ctx)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, tokens, http.StatusOK)
}

func (h *Handler) GetTokenByID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid token id"))
		return
	}

	token, err := h.Controller.GetTokenByID(ctx, id)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, token, http.StatusOK)
}

func (h *Handler) UpdateToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid token id"))
		return
	}

	var patch schemas.TokenPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}

	token, err := h.Controller.UpdateToken(ctx, id, &patch)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, token, http.StatusOK)
}

func (h *Handler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid token id"))
		return
	}

	if err := h.Controller.DeleteToken(ctx, id); err != nil {
		h.HandleErrors(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateChain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req schemas.CreateChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}

	chain, err := h.Controller.CreateChain(ctx, &req)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, chain, http.StatusCreated)
}

func (h *Handler) GetAllChains(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	chains, err := h.Controller.GetAllChains(ctx)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, chains, http.StatusOK)
}
