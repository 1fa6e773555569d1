package crawler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"bookingsync/pkg/errors"
)

// fakeFetcher serves canned HTML keyed by URL suffix (the order id).
type fakeFetcher struct {
	pages   map[string]string
	status  int
	authErr bool
	lastURL string
}

func (f *fakeFetcher) Get(ctx context.Context, url string) (*http.Response, error) {
	f.lastURL = url
	if f.authErr {
		return nil, errors.ErrAuthExpired
	}

	status := f.status
	if status == 0 {
		status = http.StatusOK
	}

	var body string
	for suffix, html := range f.pages {
		if strings.HasSuffix(url, suffix) {
			body = html
			break
		}
	}

	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}
