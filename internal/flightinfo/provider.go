// Package flightinfo looks up scheduled time and airport for a flight number
// against a public flight tracker. Lookups are best-effort: a miss or an open
// breaker yields InfoFound=false and the booking record is written with a
// missing-flight marker instead of failing the item.
package flightinfo

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bookingsync/internal/config"
	"bookingsync/internal/constants"
	"bookingsync/internal/logger"
	"bookingsync/pkg/circuitbreaker"
	"bookingsync/pkg/metrics"
	"bookingsync/pkg/models"
)

var flightNoParts = regexp.MustCompile(`^([A-Z]{2,3})\s?(\d{1,4})[A-Z]?$`)

type Provider interface {
	Lookup(ctx context.Context, flightNo string, direction models.Direction) (models.FlightInfo, error)
}

// HTTPProvider scrapes the tracker's flight page. The departure card is the
// first ticket card on the page, the arrival card the second.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger
}

func NewHTTPProvider(cfg config.FlightInfoConfig, log logger.Logger) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	return &HTTPProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		breaker: circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("flightinfo")),
		logger:  log,
	}
}

func (p *HTTPProvider) Lookup(ctx context.Context, flightNo string, direction models.Direction) (models.FlightInfo, error) {
	miss := models.FlightInfo{FlightNo: flightNo, InfoFound: false}

	m := flightNoParts.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(flightNo)))
	if m == nil {
		metrics.FlightLookupsTotal.WithLabelValues("invalid").Inc()
		return miss, nil
	}

	url := fmt.Sprintf("%s/%s/%s", p.baseURL, m[1], m[2])
	result, err := p.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return p.fetch(ctx, url, flightNo, direction)
	})
	if err != nil {
		metrics.FlightLookupsTotal.WithLabelValues("error").Inc()
		p.logger.WarnwCtx(ctx, "Flight lookup failed",
			"flight_no", flightNo,
			"error", err)
		return miss, nil
	}

	info := result.(models.FlightInfo)
	if info.InfoFound {
		metrics.FlightLookupsTotal.WithLabelValues("success").Inc()
	} else {
		metrics.FlightLookupsTotal.WithLabelValues("miss").Inc()
	}
	return info, nil
}

func (p *HTTPProvider) fetch(ctx context.Context, url, flightNo string, direction models.Direction) (models.FlightInfo, error) {
	miss := models.FlightInfo{FlightNo: flightNo, InfoFound: false}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return miss, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := p.client.Do(req)
	if err != nil {
		return miss, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return miss, nil
	}
	if resp.StatusCode != http.StatusOK {
		return miss, fmt.Errorf("flight tracker returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return miss, err
	}

	return parseFlightPage(doc, flightNo, direction), nil
}

// parseFlightPage reads the tracker page. An unknown flight renders an error
// banner instead of ticket cards.
func parseFlightPage(doc *goquery.Document, flightNo string, direction models.Direction) models.FlightInfo {
	info := models.FlightInfo{FlightNo: flightNo}

	if doc.Find("div.error__title").Length() > 0 {
		return info
	}

	cards := doc.Find(".ticket-card")
	if cards.Length() == 0 {
		return info
	}

	// Departure direction reads the departing card, arrival the landing one.
	card := cards.Eq(0)
	if direction == models.DirectionArrival && cards.Length() > 1 {
		card = cards.Eq(1)
	}

	info.Status = strings.TrimSpace(doc.Find(".flight-status").First().Text())
	info.Airport = strings.TrimSpace(card.Find(".airport-name").First().Text())
	info.ScheduledTime = strings.TrimSpace(card.Find(".scheduled-time").First().Text())
	info.ScheduledDate = strings.TrimSpace(card.Find(".flight-date").First().Text())
	info.InfoFound = info.Airport != "" || info.ScheduledTime != ""

	return info
}
