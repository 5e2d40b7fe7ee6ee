package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/catalog/model"
)

func TestHTTPFetcherFallsBack(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<offers/>"))
	}))
	defer good.Close()

	f := NewHTTPFetcher(time.Second, []string{bad.URL, good.URL}, nil, zerolog.Nop())
	b, err := f.Fetch(context.Background(), model.FeedCRM)
	require.NoError(t, err)
	assert.Equal(t, "<offers/>", string(b))
}

func TestHTTPFetcherAllFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	f := NewHTTPFetcher(time.Second, nil, []string{bad.URL, bad.URL + "/proxy"}, zerolog.Nop())
	_, err := f.Fetch(context.Background(), model.FeedProm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, err = f.Fetch(context.Background(), model.FeedCRM)
	assert.ErrorContains(t, err, "no urls configured")
}
