package serverhttp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catHnd "pricing-service/internal/catalog/handler"
	"pricing-service/internal/catalog/service"
	"pricing-service/internal/config"
)

func newTestRouter(maxMB int) http.Handler {
	cfg := config.Config{AllowOrigins: []string{"*"}, MaxUploadMB: maxMB}
	ws := service.NewWorkspace(service.Options{Logger: zerolog.Nop()})
	return NewRouter(cfg, zerolog.Nop(), catHnd.New(ws, nil, maxMB, zerolog.Nop()))
}

func TestRouterHealthAndAPI(t *testing.T) {
	r := newTestRouter(1)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRejectsLargeBody(t *testing.T) {
	r := newTestRouter(1)
	body := strings.NewReader(strings.Repeat("x", 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
