package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"pricing-service/internal/catalog/model"
)

// maxFeedBytes ограничивает размер одного ответа.
const maxFeedBytes = 128 << 20

// HTTPFetcher скачивает фид, перебирая адреса по порядку (прямой адрес, затем прокси);
// первый успешный ответ побеждает.
type HTTPFetcher struct {
	client *http.Client
	urls   map[model.FeedKind][]string
	log    zerolog.Logger
}

func NewHTTPFetcher(timeout time.Duration, crmURLs, promURLs []string, logger zerolog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		urls: map[model.FeedKind][]string{
			model.FeedCRM:  crmURLs,
			model.FeedProm: promURLs,
		},
		log: logger,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, kind model.FeedKind) ([]byte, error) {
	urls := f.urls[kind]
	if len(urls) == 0 {
		return nil, fmt.Errorf("feed %s: no urls configured", kind)
	}
	var errs []error
	for _, u := range urls {
		start := time.Now()
		b, err := f.get(ctx, u)
		if err == nil {
			f.log.Info().Str("feed", string(kind)).Str("url", u).Int("bytes", len(b)).
				Dur("dur", time.Since(start)).Msg("feed fetched")
			return b, nil
		}
		f.log.Warn().Err(err).Str("feed", string(kind)).Str("url", u).Msg("feed fetch failed")
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("feed %s: %w", kind, errors.Join(errs...))
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
}
