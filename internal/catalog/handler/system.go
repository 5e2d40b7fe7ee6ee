package handler

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"pricing-service/internal/catalog/model"
	"pricing-service/internal/catalog/service"
	"pricing-service/internal/storage/filestore"
)

// Export отдаёт всё состояние одним JSON-документом.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	snap := h.ws.Snapshot()
	name := fmt.Sprintf("pricing-export-%s.json", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	writeJSON(w, http.StatusOK, snap)
}

type importResponse struct {
	Tables    int `json:"tables"`
	Overrides int `json:"overrides"`
}

// Import заменяет состояние документом, ранее полученным из Export.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var snap model.Snapshot
	if err := decodeBody(r, &snap); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ws.Import(snap)
	writeJSON(w, http.StatusOK, importResponse{Tables: len(snap.Tables), Overrides: len(snap.Overrides)})
}

func (h *Handler) SaveStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.SaveState())
}

type systemInfo struct {
	service.Stats
	Save      service.SaveState  `json:"save"`
	Feeds     service.FeedStatus `json:"feeds"`
	Storage   *filestore.Info    `json:"storage,omitempty"`
	GoVersion string             `json:"goVersion"`
	Uptime    string             `json:"uptime"`
}

var started = time.Now()

func (h *Handler) SystemInfo(w http.ResponseWriter, r *http.Request) {
	feeds, _ := h.ws.FeedStatus(service.GlobalScope)
	info := systemInfo{
		Stats:     h.ws.Stats(),
		Save:      h.ws.SaveState(),
		Feeds:     feeds,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(started).Round(time.Second).String(),
	}
	if h.maint != nil {
		st, err := h.maint.Info()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		info.Storage = &st
	}
	writeJSON(w, http.StatusOK, info)
}

// Backup сначала сбрасывает отложенное сохранение, потом копирует файл данных.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	if h.maint == nil {
		h.fail(w, r, errNoMaintenance)
		return
	}
	if err := h.ws.Flush(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	name, err := h.maint.Backup()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"backup": name})
}

// Restore поднимает последний бэкап и заменяет им текущее состояние.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	if h.maint == nil {
		h.fail(w, r, errNoMaintenance)
		return
	}
	snap, err := h.maint.Restore(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ws.Import(snap)
	log := h.logger(r)
	log.Info().Int("tables", len(snap.Tables)).Msg("state restored from backup")
	writeJSON(w, http.StatusOK, importResponse{Tables: len(snap.Tables), Overrides: len(snap.Overrides)})
}
