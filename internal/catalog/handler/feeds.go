package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pricing-service/internal/catalog/model"
)

func (h *Handler) FeedStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.ws.FeedStatus(chi.URLParam(r, "scope"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// RefreshFeed загружает фид синхронно и отдаёт новый статус.
// Обрыв соединения клиентом загрузку не прерывает: у загрузчика свой таймаут.
func (h *Handler) RefreshFeed(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")
	kind := model.FeedKind(chi.URLParam(r, "kind"))
	if err := h.ws.RefreshFeed(context.WithoutCancel(r.Context()), scope, kind); err != nil {
		h.fail(w, r, err)
		return
	}
	h.FeedStatus(w, r)
}

func (h *Handler) CRMCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.CRMCategories())
}
