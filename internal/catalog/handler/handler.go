// Package handler — HTTP-слой над service.Workspace.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"pricing-service/internal/catalog/model"
	"pricing-service/internal/catalog/service"
	"pricing-service/internal/feed"
	"pricing-service/internal/fileio"
	"pricing-service/internal/middleware"
	"pricing-service/internal/storage/filestore"
)

// Maintenance: обслуживание файлового хранилища (бэкапы). У Postgres его нет.
type Maintenance interface {
	Backup() (string, error)
	Restore(ctx context.Context) (model.Snapshot, error)
	Info() (filestore.Info, error)
}

type Handler struct {
	ws        *service.Workspace
	maint     Maintenance
	log       zerolog.Logger
	maxUpload int64
}

// New; maint может быть nil.
func New(ws *service.Workspace, maint Maintenance, maxUploadMB int, logger zerolog.Logger) *Handler {
	return &Handler{ws: ws, maint: maint, log: logger, maxUpload: int64(maxUploadMB) << 20}
}

// Routes вешает все эндпоинты /api на r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/data", h.Export)
	r.Post("/import", h.Import)
	r.Get("/save-status", h.SaveStatus)

	r.Route("/tables", func(r chi.Router) {
		r.Get("/", h.ListTables)
		r.Post("/", h.UploadTable)
		r.Route("/{tableID}", func(r chi.Router) {
			r.Get("/", h.GetTable)
			r.Delete("/", h.DeleteTable)
			r.Get("/view", h.TableView)
			r.Get("/filters", h.TableFilters)
			r.Put("/filters", h.SetTableFilters)
			r.Post("/sort/{key}", h.ToggleTableSort)
		})
	})

	r.Route("/views", func(r chi.Router) {
		r.Get("/filters", h.GlobalFilters)
		r.Put("/filters", h.SetGlobalFilters)
		r.Post("/sort/{key}", h.ToggleGlobalSort)
		r.Get("/{kind}", h.View)
		r.Get("/{kind}/export.xlsx", h.ExportView)
	})

	r.Get("/items/suggest", h.Suggest)
	r.Route("/items/{itemID}", func(r chi.Router) {
		r.Get("/", h.GetOverride)
		r.Post("/price", h.AddPrice)
		r.Put("/commission", h.SetCommission)
		r.Post("/comments", h.AddComment)
		r.Delete("/comments/{commentID}", h.DeleteComment)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.CategoryCounts)
		r.Get("/{type}", h.CategoryMembers)
		r.Put("/{type}", h.ReplaceCategory)
		r.Delete("/{type}", h.ClearCategory)
		r.Post("/{type}/items/{itemID}", h.AddToCategory)
		r.Delete("/{type}/items/{itemID}", h.RemoveFromCategory)
	})

	r.Route("/feeds", func(r chi.Router) {
		r.Get("/crm/categories", h.CRMCategories)
		r.Get("/{scope}", h.FeedStatus)
		r.Post("/{scope}/{kind}/refresh", h.RefreshFeed)
	})

	r.Route("/system", func(r chi.Router) {
		r.Get("/info", h.SystemInfo)
		r.Post("/backup", h.Backup)
		r.Post("/restore", h.Restore)
	})
}

func (h *Handler) logger(r *http.Request) zerolog.Logger {
	if rid := middleware.GetRequestID(r); rid != "" {
		return h.log.With().Str("rid", rid).Logger()
	}
	return h.log
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusOf сопоставляет доменные ошибки кодам HTTP.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrCommentNotFound),
		errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNoDataRows),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidCommission),
		errors.Is(err, service.ErrEmptyID),
		errors.Is(err, service.ErrEmptyComment),
		errors.Is(err, service.ErrUnknownCategory),
		errors.Is(err, service.ErrUnknownField),
		errors.Is(err, service.ErrUnknownFeed),
		errors.Is(err, service.ErrUnknownView),
		errors.Is(err, fileio.ErrUnsupported),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrFeedLoading):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoFetcher), errors.Is(err, errNoMaintenance):
		return http.StatusNotImplemented
	case errors.Is(err, feed.ErrNoOffers):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log := h.logger(r)
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid json: %v", err)
	}
	return nil
}
