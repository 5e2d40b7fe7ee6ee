package handler

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pricing-service/internal/catalog/model"
)

type categoryMember struct {
	ID        string    `json:"id"`
	AddedDate time.Time `json:"addedDate"`
}

func categoryType(r *http.Request) model.CategoryType {
	return model.CategoryType(chi.URLParam(r, "type"))
}

func (h *Handler) CategoryCounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.CategoryCounts())
}

// CategoryMembers: состав категории, самые свежие сверху.
func (h *Handler) CategoryMembers(w http.ResponseWriter, r *http.Request) {
	m, err := h.ws.CategoryMembers(categoryType(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]categoryMember, 0, len(m))
	for id, d := range m {
		out = append(out, categoryMember{ID: id, AddedDate: d})
	}
	slices.SortFunc(out, func(a, b categoryMember) int {
		if c := b.AddedDate.Compare(a.AddedDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	writeJSON(w, http.StatusOK, out)
}

type replaceRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) ReplaceCategory(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.ws.ReplaceCategory(categoryType(r), req.IDs); err != nil {
		h.fail(w, r, err)
		return
	}
	h.CategoryMembers(w, r)
}

func (h *Handler) ClearCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.ClearCategory(categoryType(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddToCategory(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.ws.AddToCategory(categoryType(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveFromCategory(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.ws.RemoveFromCategory(categoryType(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
