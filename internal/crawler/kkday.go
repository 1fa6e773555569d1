package crawler

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"bookingsync/internal/logger"
	"bookingsync/pkg/errors"
	"bookingsync/pkg/metrics"
	"bookingsync/pkg/models"
)

var buyerPhonePattern = regexp.MustCompile(`Buyer's Phone Number：(.+)`)

// KKdayCrawler parses the SCM order page. An order can carry an arrival leg,
// a departure leg, or both; each becomes its own record sharing traveler and
// price data.
type KKdayCrawler struct {
	fetcher   PageFetcher
	detailURL string
	platform  string
	source    string
	logger    logger.Logger
}

func NewKKdayCrawler(source, platform, detailURL string, fetcher PageFetcher, log logger.Logger) *KKdayCrawler {
	return &KKdayCrawler{
		fetcher:   fetcher,
		detailURL: detailURL,
		platform:  platform,
		source:    source,
		logger:    log,
	}
}

func (c *KKdayCrawler) Platform() string {
	return c.platform
}

type kkdayLeg struct {
	flightNo string
	date     string
	time     string
}

func (c *KKdayCrawler) Crawl(ctx context.Context, item models.MailItem) ([]models.BookingDetail, error) {
	start := time.Now()

	doc, err := fetchDocument(ctx, c.fetcher, c.detailURL+item.OrderID)
	if err != nil {
		metrics.ObserveCrawlDuration(c.source, time.Since(start), "error")
		return nil, err
	}

	records, err := c.parse(doc, item)
	if err != nil {
		metrics.ObserveCrawlDuration(c.source, time.Since(start), "error")
		return nil, err
	}

	metrics.ObserveCrawlDuration(c.source, time.Since(start), "success")
	return records, nil
}

func (c *KKdayCrawler) parse(doc *goquery.Document, item models.MailItem) ([]models.BookingDetail, error) {
	airline := doc.Find("#info_type3")
	if airline.Length() == 0 {
		return nil, errors.ErrCrawl.
			WithDetail("order_id", item.OrderID).
			WithDetail("reason", "airline section not found")
	}

	legs := map[models.Direction]kkdayLeg{}
	airline.Find("div.col-md-6").Each(func(_ int, div *goquery.Selection) {
		title := strings.TrimSpace(div.Find("h4.area-title").Text())
		if title == "" {
			return
		}

		var leg kkdayLeg
		div.Find("ul.info-list > li").Each(func(_ int, li *goquery.Selection) {
			label := strings.TrimSpace(li.Find(".info-list-title").Text())
			value := strings.TrimSpace(li.Find(".info-list-text").Text())
			if label == "" || value == "" {
				return
			}
			switch {
			case strings.Contains(label, "Flight no."):
				leg.flightNo = value
			case strings.Contains(label, "Date &"):
				leg.date, leg.time = splitDateTime(value)
			}
		})

		switch {
		case strings.Contains(title, string(models.DirectionArrival)):
			legs[models.DirectionArrival] = leg
		case strings.Contains(title, string(models.DirectionDeparture)):
			legs[models.DirectionDeparture] = leg
		}
	})

	base := models.BookingDetail{
		OrderID:     item.OrderID,
		Platform:    c.platform,
		BookingDate: item.ReceivedAt,
		DateOfUse:   strings.TrimSpace(doc.Find(".order-date-value-01").First().Text()),
	}

	doc.Find("p.info-sub-list").Each(func(_ int, p *goquery.Selection) {
		text := p.Text()
		if m := buyerPhonePattern.FindStringSubmatch(text); m != nil {
			base.Contact = strings.TrimSpace(m[1])
		}
		if n := parsePaxCount(paxAdultPattern, text); n > 0 {
			base.Adults = n
		}
		if n := parsePaxCount(paxChildPattern, text); n > 0 {
			base.Children = n
		}
	})

	doc.Find("div.text-sm").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		text := div.Text()
		if strings.Contains(text, "VIP Fast Track") && strings.Contains(text, "[PREMIUM]") {
			base.ServiceTier = "PREMIUM"
			return false
		}
		return true
	})

	var names []string
	doc.Find("#info_type1 .box-primary").Each(func(_ int, box *goquery.Selection) {
		var surname, first string
		box.Find(".info-list li").Each(func(_ int, li *goquery.Selection) {
			label := li.Text()
			value := strings.TrimSpace(li.Find(".pull-right b").Text())
			switch {
			case strings.Contains(label, "Passport Surname"):
				surname = value
			case strings.Contains(label, "Passport First Name"):
				first = value
			}
		})
		if full := strings.TrimSpace(surname + " " + first); full != "" {
			names = append(names, full)
		}
	})
	base.TravelerName = strings.Join(names, "\n")

	var priceTexts []string
	doc.Find(".widget-price").Each(func(_ int, el *goquery.Selection) {
		priceTexts = append(priceTexts, el.Text())
	})
	if prices := parsePrices(priceTexts); len(prices) > 0 {
		base.Prices = prices
	}

	var records []models.BookingDetail
	for _, direction := range []models.Direction{models.DirectionArrival, models.DirectionDeparture} {
		leg, ok := legs[direction]
		if !ok || leg.flightNo == "" {
			continue
		}

		record := base
		record.Direction = direction
		record.FlightNo = leg.flightNo
		if leg.date != "" {
			record.DateOfUse = leg.date
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, errors.ErrCrawl.
			WithDetail("order_id", item.OrderID).
			WithDetail("reason", "no flight legs found")
	}
	return records, nil
}
