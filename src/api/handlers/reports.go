package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cryptofolio/src/utils"
)

// GetWalletXLSXReport streams the holdings workbook as a download.
func (h *Handler) GetWalletXLSXReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
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

	file, err := h.Controller.GetWalletXLSXReport(ctx, walletUUID, from, to)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	filename := fmt.Sprintf("wallet-%s-%s.xlsx", walletUUID, to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := file.Write(w); err != nil {
		utils.LoggerFromContext(ctx).WithError(err).Error("writing xlsx response failed")
	}
}

// GetWalletValueChart renders the wallet value chart as an HTML page.
func (h *Handler) GetWalletValueChart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
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

	line, err := h.Controller.GetWalletValueChart(ctx, walletUUID, from, to)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		utils.LoggerFromContext(ctx).WithError(err).Error("rendering chart failed")
	}
}
