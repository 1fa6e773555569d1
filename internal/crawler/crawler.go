// Package crawler turns an authenticated order-detail page into normalized
// booking records, one per flight leg. Parsers depend only on the session
// manager's HTTP surface; a page whose expected structure is missing fails
// the whole item, never partial records.
package crawler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"bookingsync/pkg/errors"
	"bookingsync/pkg/models"
)

// Crawler retrieves booking detail for one order. Implementations return one
// record per flight leg.
type Crawler interface {
	Platform() string
	Crawl(ctx context.Context, item models.MailItem) ([]models.BookingDetail, error)
}

// PageFetcher is the slice of the session manager the parsers need.
type PageFetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

func fetchDocument(ctx context.Context, fetcher PageFetcher, url string) (*goquery.Document, error) {
	resp, err := fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.ErrCrawl.WithDetail("status", resp.StatusCode).WithDetail("url", url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.ErrCrawl.WithCause(fmt.Errorf("failed to parse page: %w", err))
	}
	return doc, nil
}
