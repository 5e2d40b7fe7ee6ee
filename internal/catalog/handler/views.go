package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"pricing-service/internal/catalog/model"
	"pricing-service/internal/catalog/service"
	"pricing-service/internal/fileio"
)

func viewKind(r *http.Request) (service.ViewKind, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, "kind"))
	if err != nil {
		return "", badRequest("kind: %v", err)
	}
	return service.ParseViewKind(raw)
}

// viewFilters: глобальные фильтры плюс параметры запроса.
func (h *Handler) viewFilters(r *http.Request) (service.ViewKind, model.Filters, error) {
	kind, err := viewKind(r)
	if err != nil {
		return "", model.Filters{}, err
	}
	f, err := filtersFromQuery(h.ws.GlobalFilters(), r.URL.Query(), kind)
	return kind, f, err
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	kind, f, err := h.viewFilters(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.ws.QueryView(kind, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ExportView выгружает весь отфильтрованный вид (без разбивки на страницы) в xlsx.
func (h *Handler) ExportView(w http.ResponseWriter, r *http.Request) {
	kind, f, err := h.viewFilters(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.ws.ArrangeView(kind, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	name := strings.ReplaceAll(string(kind), ":", "_") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	if err := fileio.WriteXLSX(w, items); err != nil {
		log := h.logger(r)
		log.Error().Err(err).Str("view", string(kind)).Msg("write xlsx")
	}
}

func (h *Handler) GlobalFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.GlobalFilters())
}

func (h *Handler) SetGlobalFilters(w http.ResponseWriter, r *http.Request) {
	var f model.Filters
	if err := decodeBody(r, &f); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ws.SetGlobalFilters(f))
}

func (h *Handler) ToggleGlobalSort(w http.ResponseWriter, r *http.Request) {
	out, err := h.ws.ToggleGlobalSort(model.Field(chi.URLParam(r, "key")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
