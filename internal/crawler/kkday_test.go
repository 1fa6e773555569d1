package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingsync/internal/logger"
	"bookingsync/pkg/errors"
	"bookingsync/pkg/models"
)

const kkdayOrderPage = `
<html><body>
<div id="info_type3">
  <div class="col-md-6">
    <h4 class="area-title">Arrival Flight</h4>
    <ul class="info-list">
      <li><span class="info-list-title">Flight no.</span><span class="info-list-text">VJ842</span></li>
      <li><span class="info-list-title">Date &amp; Time</span><span class="info-list-text">25-12-2025&nbsp;14:30</span></li>
    </ul>
  </div>
  <div class="col-md-6">
    <h4 class="area-title">Departure Flight</h4>
    <ul class="info-list">
      <li><span class="info-list-title">Flight no.</span><span class="info-list-text">VJ843</span></li>
      <li><span class="info-list-title">Date &amp; Time</span><span class="info-list-text">30-12-2025&nbsp;09:15</span></li>
    </ul>
  </div>
</div>
<div class="order-date-value-01">25-12-2025</div>
<p class="info-sub-list">Buyer's Phone Number：+84 909 123 456</p>
<p class="info-sub-list">Adult X 2 / Child X 1</p>
<div class="text-sm">[PREMIUM] VIP Fast Track - meet and greet</div>
<div id="info_type1">
  <div class="box-primary">
    <ul class="info-list">
      <li>Passport Surname <span class="pull-right"><b>NGUYEN</b></span></li>
      <li>Passport First Name <span class="pull-right"><b>VAN A</b></span></li>
    </ul>
  </div>
  <div class="box-primary">
    <ul class="info-list">
      <li>Passport Surname <span class="pull-right"><b>TRAN</b></span></li>
      <li>Passport First Name <span class="pull-right"><b>THI B</b></span></li>
    </ul>
  </div>
</div>
<div class="widget-price">Total: USD 120</div>
</body></html>`

const kkdayArrivalOnlyPage = `
<html><body>
<div id="info_type3">
  <div class="col-md-6">
    <h4 class="area-title">Arrival Flight</h4>
    <ul class="info-list">
      <li><span class="info-list-title">Flight no.</span><span class="info-list-text">VN331</span></li>
    </ul>
  </div>
</div>
<div class="order-date-value-01">10-01-2026</div>
</body></html>`

func kkdayItem() models.MailItem {
	return models.MailItem{
		MessageID:  "9",
		OrderID:    "AB12CD34",
		Source:     "kkday",
		ReceivedAt: time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC),
	}
}

func newKKdayForTest(f *fakeFetcher) *KKdayCrawler {
	return NewKKdayCrawler("kkday", "KKDAY", "https://scm.example.com/order/index/", f, logger.NopLogger())
}

func TestKKdayCrawlBothLegs(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"AB12CD34": kkdayOrderPage}}
	c := newKKdayForTest(fetcher)

	records, err := c.Crawl(context.Background(), kkdayItem())
	require.NoError(t, err)
	require.Len(t, records, 2)

	arrival := records[0]
	assert.Equal(t, models.DirectionArrival, arrival.Direction)
	assert.Equal(t, "VJ842", arrival.FlightNo)
	assert.Equal(t, "25-12-2025", arrival.DateOfUse)

	departure := records[1]
	assert.Equal(t, models.DirectionDeparture, departure.Direction)
	assert.Equal(t, "VJ843", departure.FlightNo)
	assert.Equal(t, "30-12-2025", departure.DateOfUse)

	for _, r := range records {
		assert.Equal(t, "AB12CD34", r.OrderID)
		assert.Equal(t, "KKDAY", r.Platform)
		assert.Equal(t, "NGUYEN VAN A\nTRAN THI B", r.TravelerName)
		assert.Equal(t, 2, r.Adults)
		assert.Equal(t, 1, r.Children)
		assert.Equal(t, "+84 909 123 456", r.Contact)
		assert.Equal(t, "PREMIUM", r.ServiceTier)
		assert.Equal(t, map[string]float64{"USD": 120}, r.Prices)
	}
}

func TestKKdayCrawlArrivalOnly(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"AB12CD34": kkdayArrivalOnlyPage}}
	c := newKKdayForTest(fetcher)

	records, err := c.Crawl(context.Background(), kkdayItem())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, models.DirectionArrival, r.Direction)
	assert.Equal(t, "VN331", r.FlightNo)
	// No leg date: falls back to the order-level date of use.
	assert.Equal(t, "10-01-2026", r.DateOfUse)
	assert.Empty(t, r.ServiceTier)
	assert.Zero(t, r.Adults)
}

func TestKKdayCrawlMissingAirlineSection(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{"AB12CD34": "<html><body><p>maintenance</p></body></html>"}}
	c := newKKdayForTest(fetcher)

	_, err := c.Crawl(context.Background(), kkdayItem())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCrawl.Code))
}

func TestKKdayCrawlNoLegs(t *testing.T) {
	page := `<html><body><div id="info_type3"><div class="col-md-6"><h4 class="area-title">Arrival Flight</h4></div></div></body></html>`
	fetcher := &fakeFetcher{pages: map[string]string{"AB12CD34": page}}
	c := newKKdayForTest(fetcher)

	_, err := c.Crawl(context.Background(), kkdayItem())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCrawl.Code))
}
