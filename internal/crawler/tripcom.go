package crawler

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"bookingsync/internal/logger"
	"bookingsync/pkg/errors"
	"bookingsync/pkg/metrics"
	"bookingsync/pkg/models"
)

// TripcomCrawler parses the vbooking order-detail page. The page carries one
// service row per order: traveler names in an antd table, the flight number
// and contact behind labeled spans.
type TripcomCrawler struct {
	fetcher   PageFetcher
	detailURL string
	platform  string
	source    string
	logger    logger.Logger
}

func NewTripcomCrawler(source, platform, detailURL string, fetcher PageFetcher, log logger.Logger) *TripcomCrawler {
	return &TripcomCrawler{
		fetcher:   fetcher,
		detailURL: detailURL,
		platform:  platform,
		source:    source,
		logger:    log,
	}
}

func (c *TripcomCrawler) Platform() string {
	return c.platform
}

func (c *TripcomCrawler) Crawl(ctx context.Context, item models.MailItem) ([]models.BookingDetail, error) {
	start := time.Now()

	doc, err := fetchDocument(ctx, c.fetcher, c.detailURL+item.OrderID)
	if err != nil {
		metrics.ObserveCrawlDuration(c.source, time.Since(start), "error")
		return nil, err
	}

	detail, err := c.parse(doc, item)
	if err != nil {
		metrics.ObserveCrawlDuration(c.source, time.Since(start), "error")
		return nil, err
	}

	metrics.ObserveCrawlDuration(c.source, time.Since(start), "success")
	return []models.BookingDetail{detail}, nil
}

func (c *TripcomCrawler) parse(doc *goquery.Document, item models.MailItem) (models.BookingDetail, error) {
	table := doc.Find(".ant-table table")
	if table.Length() == 0 {
		return models.BookingDetail{}, errors.ErrCrawl.
			WithDetail("order_id", item.OrderID).
			WithDetail("reason", "traveler table not found")
	}

	detail := models.BookingDetail{
		OrderID:     item.OrderID,
		Platform:    c.platform,
		BookingDate: item.ReceivedAt,
	}

	var names []string
	table.Find("tr.ant-table-row").Each(func(i int, tr *goquery.Selection) {
		if tr.AttrOr("aria-hidden", "") == "true" {
			return
		}

		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}

		// The first row carries the service cell with airport and direction.
		nameCell := cells.Eq(1)
		if i == 0 {
			service := strings.TrimSpace(cells.Eq(1).Text())
			detail.Airport = extractAirport(service)
			if strings.Contains(service, string(models.DirectionDeparture)) {
				detail.Direction = models.DirectionDeparture
			}
			if strings.Contains(service, string(models.DirectionArrival)) {
				detail.Direction = models.DirectionArrival
			}
			nameCell = cells.Eq(2)
		}

		nameDiv := nameCell.Find(`div[data-ignorecheckblock="true"]`)
		if nameDiv.Length() == 0 {
			return
		}

		// Drop nested badges and keep the bare text node.
		cloned := nameDiv.Clone()
		cloned.Find("div, span").Remove()
		name := strings.TrimSpace(cloned.Text())
		if name == "" {
			return
		}

		names = append(names, name)
		if strings.Contains(nameCell.Text(), "Adults") {
			detail.Adults++
		}
	})

	if len(names) == 0 {
		return models.BookingDetail{}, errors.ErrCrawl.
			WithDetail("order_id", item.OrderID).
			WithDetail("reason", "no traveler rows")
	}
	detail.TravelerName = strings.Join(names, "\n")

	if title := strings.TrimSpace(doc.Find(".item_content_title").First().Text()); strings.Contains(title, "[PREMIUM]") {
		detail.ServiceTier = "PREMIUM"
	}

	doc.Find("span.info_left").Each(func(_ int, label *goquery.Selection) {
		text := strings.TrimSpace(label.Text())
		value := strings.TrimSpace(label.Next().Text())
		switch {
		case text == "Flight no.:":
			detail.FlightNo = extractFlightNo(value)
		case strings.Contains(text, "Preferred Message App"):
			detail.Contact = value
		}
	})

	detail.DateOfUse = strings.TrimSpace(doc.Find("td .two_line").First().Text())

	return detail, nil
}
