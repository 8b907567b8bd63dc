package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yungbote/guildmind-backend/internal/pkg/ctxutil"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

// Fetcher downloads attachment bytes from the platform CDN. Size caps
// are enforced both on the advertised length and on the actual body, so
// a lying Content-Length cannot blow the budget.
type Fetcher interface {
	Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

type httpFetcher struct {
	log  *logger.Logger
	http *http.Client
}

func NewHTTPFetcher(log *logger.Logger) Fetcher {
	return &httpFetcher{
		log: log.With("service", "AttachmentFetcher"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (f *httpFetcher) Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errkind.New(errkind.Permanent, "empty attachment url")
	}
	if !strings.HasPrefix(url, "https://") {
		return nil, errkind.New(errkind.Permanent, "attachment url must be https")
	}
	if maxBytes <= 0 {
		return nil, errkind.New(errkind.Permanent, "max bytes must be positive")
	}

	var out []byte
	op := func() error {
		data, err := f.fetchOnce(ctx, url, maxBytes)
		if err != nil {
			if errkind.Is(err, errkind.Permanent) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = data
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctxutil.Default(ctx))
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *httpFetcher) fetchOnce(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, url, nil)
	if err != nil {
		return nil, errkind.Wrap(errkind.Permanent, err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, errkind.Wrap(errkind.Transient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The platform expired the attachment; retrying will not help.
		return nil, errkind.New(errkind.NotFound, "attachment url returned status=%d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, errkind.New(errkind.Transient, "attachment fetch status=%d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, errkind.New(errkind.Permanent, "attachment fetch status=%d", resp.StatusCode)
	}

	if resp.ContentLength > maxBytes {
		return nil, errkind.New(errkind.Permanent,
			"attachment exceeds size cap: content_length=%d max=%d", resp.ContentLength, maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, errkind.Wrap(errkind.Transient, fmt.Errorf("read attachment body: %w", err))
	}
	if int64(len(data)) > maxBytes {
		return nil, errkind.New(errkind.Permanent, "attachment exceeds size cap: max=%d", maxBytes)
	}
	return data, nil
}
