package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pricing-service/internal/catalog/model"
	"pricing-service/internal/fileio"
)

// UploadTable: multipart, поле file (xlsx/xls/csv), необязательное name.
func (h *Handler) UploadTable(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := h.logger(r)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.fail(w, r, badRequest("bad multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, badRequest("missing file: %v", err))
		return
	}
	defer file.Close()

	grid, err := fileio.ReadGrid(file, hdr.Filename)
	if err != nil {
		log.Warn().Err(err).Str("file", hdr.Filename).Msg("read upload")
		if statusOf(err) == http.StatusInternalServerError {
			err = badRequest("failed to read %s: %v", hdr.Filename, err)
		}
		h.fail(w, r, err)
		return
	}
	t, err := h.ws.UploadTable(r.FormValue("name"), hdr.Filename, grid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	log.Info().
		Str("table_id", t.ID).
		Int("rows", len(t.Data)).
		Dur("elapsed", time.Since(start)).
		Msg("upload done")
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.Tables())
}

func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	t, err := h.ws.Table(chi.URLParam(r, "tableID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteTable(r.Context(), chi.URLParam(r, "tableID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TableView отдаёт страницу вида таблицы. Параметры запроса поверх сохранённых
// фильтров таблицы и не сохраняются.
func (h *Handler) TableView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tableID")
	base, err := h.ws.TableFilters(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := filtersFromQuery(base, r.URL.Query(), "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.ws.QueryTable(id, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) TableFilters(w http.ResponseWriter, r *http.Request) {
	f, err := h.ws.TableFilters(chi.URLParam(r, "tableID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) SetTableFilters(w http.ResponseWriter, r *http.Request) {
	var f model.Filters
	if err := decodeBody(r, &f); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.ws.SetTableFilters(chi.URLParam(r, "tableID"), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ToggleTableSort: клик по заголовку (по возрастанию → по убыванию → без сортировки).
func (h *Handler) ToggleTableSort(w http.ResponseWriter, r *http.Request) {
	out, err := h.ws.ToggleTableSort(chi.URLParam(r, "tableID"), model.Field(chi.URLParam(r, "key")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
