package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"pricing-service/internal/catalog/service"
)

func itemID(r *http.Request) (string, error) {
	id, err := url.PathUnescape(chi.URLParam(r, "itemID"))
	if err != nil {
		return "", badRequest("item id: %v", err)
	}
	return id, nil
}

// numberArg принимает и число, и строку ("1 234,50", "17%").
func numberArg(raw json.RawMessage, parse func(string) (float64, error)) (float64, error) {
	if len(raw) == 0 {
		return 0, badRequest("missing value")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parse(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, badRequest("not a number: %s", strings.TrimSpace(string(raw)))
	}
	return f, nil
}

// Suggest отдаёт похожие артикулы из загруженных таблиц (?q=...&limit=...).
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.ws.Suggest(q.Get("q"), atoi(q.Get("limit"), service.DefaultSuggestions))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if out == nil {
		out = []service.Suggestion{}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetOverride: глобальные правки товара; 404, если правок нет.
func (h *Handler) GetOverride(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o := h.ws.Override(id)
	if o == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no changes for item"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type priceRequest struct {
	Price   json.RawMessage `json:"price"`
	TableID string          `json:"tableId"`
}

func (h *Handler) AddPrice(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req priceRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	price, err := numberArg(req.Price, service.ParsePrice)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.ws.AddPriceChange(id, price, req.TableID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type commissionRequest struct {
	Commission json.RawMessage `json:"commission"`
}

func (h *Handler) SetCommission(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req commissionRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := numberArg(req.Commission, service.ParseCommission)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.ws.SetCommission(id, c); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ws.Override(id))
}

type commentRequest struct {
	Text    string `json:"text"`
	TableID string `json:"tableId"`
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req commentRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.ws.AddComment(id, req.Text, req.TableID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.ws.DeleteComment(id, chi.URLParam(r, "commentID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
