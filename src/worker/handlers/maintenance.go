package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cryptofolio/src/schemas"
)

// StartSchedules boots the cron set. Invoked once by main, exposed over HTTP
// so an operator can re-register after changing config.
func (h *Handler) StartSchedules(w http.ResponseWriter, r *http.Request) {
	if err := h.Controller.StartSchedules(context.Background()); err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, map[string]int{"schedules": len(h.Controller.Schedulers)}, http.StatusOK)
}

func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	snapshotType := schemas.SnapshotType(chi.URLParam(r, "type"))

	written, err := h.Controller.RunSweep(ctx, snapshotType)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, map[string]int{"snapshots_written": written}, http.StatusOK)
}

func (h *Handler) RunPrune(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	pruned, err := h.Controller.RunPrune(ctx)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, map[string]int64{"snapshots_pruned": pruned}, http.StatusOK)
}

func (h *Handler) RunPriceRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	createSnapshots := r.URL.Query().Get("snapshots") == "true"

	updated, err := h.Controller.RunPriceRefresh(ctx, createSnapshots)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}
	h.respond(w, r, map[string]int{"balances_updated": updated}, http.StatusOK)
}
