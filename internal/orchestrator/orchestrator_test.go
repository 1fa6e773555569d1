package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingsync/internal/config"
	"bookingsync/internal/logger"
	"bookingsync/pkg/errors"
	"bookingsync/pkg/models"
)

type fakeAdapter struct {
	name       string
	candidates []models.MailItem
	err        error
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) ListCandidates(ctx context.Context) ([]models.MailItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type fakeCrawler struct {
	mu      sync.Mutex
	records map[string][]models.BookingDetail
	errs    map[string]error
	panicOn string
	calls   []string
}

func (f *fakeCrawler) Platform() string { return "TEST" }
func (f *fakeCrawler) Crawl(ctx context.Context, item models.MailItem) ([]models.BookingDetail, error) {
	f.mu.Lock()
	f.calls = append(f.calls, item.OrderID)
	f.mu.Unlock()

	if item.OrderID == f.panicOn {
		panic("selector drift")
	}
	if err, ok := f.errs[item.OrderID]; ok && err != nil {
		return nil, err
	}
	if records, ok := f.records[item.OrderID]; ok {
		return records, nil
	}
	return []models.BookingDetail{{OrderID: item.OrderID, Direction: models.DirectionArrival}}, nil
}

type fakeSession struct {
	mu          sync.Mutex
	ensures     int
	logins      int
	invalidates int
	ensureErr   error
	loginErr    error
}

func (f *fakeSession) EnsureSession(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensures++
	return f.ensureErr
}
func (f *fakeSession) Login(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.loginErr
}
func (f *fakeSession) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidates++
}

type labelOp struct {
	messageID string
	label     models.Label
	op        string
}

type fakeLabels struct {
	mu         sync.Mutex
	ops        []labelOp
	addErr     error
	resolveErr error
}

func (f *fakeLabels) Add(ctx context.Context, item models.MailItem, label models.Label) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.ops = append(f.ops, labelOp{item.MessageID, label, "add"})
	return nil
}

func (f *fakeLabels) Resolve(ctx context.Context, item models.MailItem, terminal models.Label) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.ops = append(f.ops, labelOp{item.MessageID, terminal, "resolve"})
	return nil
}

func (f *fakeLabels) terminalFor(messageID string) models.Label {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, op := range f.ops {
		if op.op == "resolve" && op.messageID == messageID {
			return op.label
		}
	}
	return models.LabelNone
}

type fakeSink struct {
	mu      sync.Mutex
	records []models.BookingDetail
	err     error
}

func (f *fakeSink) Append(ctx context.Context, record models.BookingDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.OutcomeEvent
}

func (f *fakePublisher) PublishOutcome(ctx context.Context, event models.OutcomeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}
func (f *fakePublisher) Close() error { return nil }

type failingCache struct{}

func (failingCache) MarkProcessed(context.Context, string) error { return fmt.Errorf("cache down") }
func (failingCache) IsProcessed(context.Context, string) (bool, error) {
	return false, fmt.Errorf("cache down")
}
func (failingCache) Size(context.Context) (int, error) { return 0, fmt.Errorf("cache down") }

func mailItem(id, orderID string) models.MailItem {
	return models.MailItem{
		MessageID:  id,
		OrderID:    orderID,
		Source:     "tripcom",
		ReceivedAt: time.Now(),
	}
}

type fixture struct {
	adapter *fakeAdapter
	crawler *fakeCrawler
	session *fakeSession
	labels  *fakeLabels
	sink    *fakeSink
	events  *fakePublisher
	orch    *Orchestrator
}

func newFixture(candidates ...models.MailItem) *fixture {
	f := &fixture{
		adapter: &fakeAdapter{name: "tripcom", candidates: candidates},
		crawler: &fakeCrawler{records: map[string][]models.BookingDetail{}, errs: map[string]error{}},
		session: &fakeSession{},
		labels:  &fakeLabels{},
		sink:    &fakeSink{},
		events:  &fakePublisher{},
	}

	cfg := config.PipelineConfig{TickInterval: time.Minute, OnCacheError: "allow"}
	sources := []Source{{Adapter: f.adapter, Crawler: f.crawler, Session: f.session, Labels: f.labels}}
	f.orch = New(cfg, sources, f.sink, NewMemoryCache(time.Hour), f.events, logger.NopLogger())
	return f
}

func TestTickHappyPath(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))

	f.orch.Tick(context.Background())

	require.Len(t, f.sink.records, 1)
	assert.Equal(t, "1111222233334444", f.sink.records[0].OrderID)
	assert.Equal(t, models.LabelDone, f.labels.terminalFor("1"))

	// PENDING before the crawl, terminal resolution after.
	require.Len(t, f.labels.ops, 2)
	assert.Equal(t, labelOp{"1", models.LabelPending, "add"}, f.labels.ops[0])
	assert.Equal(t, labelOp{"1", models.LabelDone, "resolve"}, f.labels.ops[1])

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "DONE", f.events.events[0].Status)
	assert.Equal(t, 1, f.events.events[0].Records)
}

func TestTickSecondCrawlFailureDoesNotAffectFirst(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"), mailItem("2", "5555666677778888"))
	f.crawler.errs["5555666677778888"] = errors.ErrCrawl

	f.orch.Tick(context.Background())

	// First item lands once; the failed one never reaches the sink.
	require.Len(t, f.sink.records, 1)
	assert.Equal(t, "1111222233334444", f.sink.records[0].OrderID)
	assert.Equal(t, models.LabelDone, f.labels.terminalFor("1"))
	assert.Equal(t, models.LabelFailed, f.labels.terminalFor("2"))
}

func TestTickSinkFailureResolvesFailed(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))
	f.sink.err = errors.ErrSink

	f.orch.Tick(context.Background())

	assert.Equal(t, models.LabelFailed, f.labels.terminalFor("1"))
	assert.Empty(t, f.sink.records)
}

func TestTickIdempotentAcrossTicks(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))

	f.orch.Tick(context.Background())
	f.orch.Tick(context.Background())

	// Second tick hits the processed cache: no second crawl, no second row.
	assert.Len(t, f.crawler.calls, 1)
	assert.Len(t, f.sink.records, 1)
}

func TestTickSkipsInFlightItem(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))
	require.True(t, f.orch.inflight.Add("tripcom", "1"))

	f.orch.Tick(context.Background())

	assert.Empty(t, f.crawler.calls)
	assert.Empty(t, f.labels.ops)
}

func TestInFlightClearedAfterPanic(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))
	f.crawler.panicOn = "1111222233334444"

	f.orch.Tick(context.Background())

	assert.False(t, f.orch.inflight.Contains("tripcom", "1"))
	assert.Equal(t, models.LabelFailed, f.labels.terminalFor("1"))
}

func TestInFlightClearedAfterSuccess(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))

	f.orch.Tick(context.Background())

	assert.Empty(t, f.orch.InFlight()["tripcom"])
}

func TestAuthExpiredTriggersOneReloginRetry(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))

	var calls int
	f.crawler.errs["1111222233334444"] = errors.ErrAuthExpired
	// Clear the error once the retry path has logged in again.
	retryCrawler := &retryOnceCrawler{inner: f.crawler, calls: &calls}
	f.orch.sources[0].Crawler = retryCrawler

	f.orch.Tick(context.Background())

	assert.Equal(t, 1, f.session.invalidates)
	assert.Equal(t, 1, f.session.logins)
	assert.Equal(t, 2, calls)
	assert.Equal(t, models.LabelDone, f.labels.terminalFor("1"))
	assert.Len(t, f.sink.records, 1)
}

type retryOnceCrawler struct {
	inner *fakeCrawler
	calls *int
}

func (r *retryOnceCrawler) Platform() string { return "TEST" }
func (r *retryOnceCrawler) Crawl(ctx context.Context, item models.MailItem) ([]models.BookingDetail, error) {
	*r.calls++
	if *r.calls == 1 {
		return nil, errors.ErrAuthExpired
	}
	return []models.BookingDetail{{OrderID: item.OrderID}}, nil
}

func TestAuthExpiredWithFailedReloginResolvesFailed(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))
	f.crawler.errs["1111222233334444"] = errors.ErrAuthExpired
	f.session.loginErr = errors.ErrAuthFailed

	f.orch.Tick(context.Background())

	assert.Equal(t, models.LabelFailed, f.labels.terminalFor("1"))
	assert.Len(t, f.crawler.calls, 1)
}

func TestPollFailureSkipsSourceWithoutLabels(t *testing.T) {
	f := newFixture()
	f.adapter.err = errors.ErrPoll

	f.orch.Tick(context.Background())

	assert.Empty(t, f.labels.ops)
	assert.Equal(t, 0, f.session.ensures)
}

func TestSessionFailureSkipsSourceThisTick(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))
	f.session.ensureErr = errors.ErrAuthFailed

	f.orch.Tick(context.Background())

	// Nothing was claimed or labeled; the next tick retries cleanly.
	assert.Empty(t, f.labels.ops)
	assert.Empty(t, f.crawler.calls)
	assert.Empty(t, f.orch.InFlight()["tripcom"])
}

func TestPendingLabelFailureDefersItem(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))
	f.labels.addErr = stderrors.New("store failed")

	f.orch.Tick(context.Background())

	assert.Empty(t, f.crawler.calls)
	assert.Empty(t, f.sink.records)
	assert.False(t, f.orch.inflight.Contains("tripcom", "1"))
}

func TestCacheErrorFallbackAllow(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))
	f.orch.cache = failingCache{}
	f.orch.onCacheError = "allow"

	f.orch.Tick(context.Background())

	// Item flows through on the authoritative label path.
	assert.Len(t, f.sink.records, 1)
	assert.Equal(t, models.LabelDone, f.labels.terminalFor("1"))
}

func TestCacheErrorFallbackDeny(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))
	f.orch.cache = failingCache{}
	f.orch.onCacheError = "deny"

	f.orch.Tick(context.Background())

	assert.Empty(t, f.crawler.calls)
	assert.Empty(t, f.labels.ops)
}

func TestResolveFailureLeavesCacheUnmarked(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))
	f.labels.resolveErr = stderrors.New("store failed")

	f.orch.Tick(context.Background())

	processed, err := f.orch.cache.IsProcessed(context.Background(), processedKey("tripcom", mailItem("1", "x")))
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Empty(t, f.events.events)
}

func TestMultiLegRecordsAllAppended(t *testing.T) {
	f := newFixture(mailItem("9", "AB12CD34"))
	f.crawler.records["AB12CD34"] = []models.BookingDetail{
		{OrderID: "AB12CD34", Direction: models.DirectionArrival},
		{OrderID: "AB12CD34", Direction: models.DirectionDeparture},
	}

	f.orch.Tick(context.Background())

	require.Len(t, f.sink.records, 2)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, 2, f.events.events[0].Records)
}

type fakeFlight struct{ lookups []string }

func (f *fakeFlight) Lookup(ctx context.Context, flightNo string, d models.Direction) (models.FlightInfo, error) {
	f.lookups = append(f.lookups, flightNo)
	return models.FlightInfo{FlightNo: flightNo, Airport: "Tan Son Nhat International Airport", InfoFound: true}, nil
}

func TestFlightEnrichment(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))
	f.crawler.records["1111222233334444"] = []models.BookingDetail{
		{OrderID: "1111222233334444", FlightNo: "VN 123", Direction: models.DirectionArrival},
	}
	flight := &fakeFlight{}
	f.orch.WithFlightLookup(flight)

	f.orch.Tick(context.Background())

	require.Len(t, f.sink.records, 1)
	assert.Equal(t, []string{"VN 123"}, flight.lookups)
	require.NotNil(t, f.sink.records[0].Flight)
	assert.True(t, f.sink.records[0].Flight.InfoFound)
}

type fakeArchive struct {
	saves []string
	err   error
}

func (f *fakeArchive) Save(ctx context.Context, source string, record models.BookingDetail) error {
	f.saves = append(f.saves, record.OrderID)
	return f.err
}

func TestArchiveFailureDoesNotFailItem(t *testing.T) {
	f := newFixture(mailItem("1", "1111222233334444"))
	arch := &fakeArchive{err: stderrors.New("mongo down")}
	f.orch.WithArchive(arch)

	f.orch.Tick(context.Background())

	assert.Len(t, arch.saves, 1)
	assert.Equal(t, models.LabelDone, f.labels.terminalFor("1"))
	assert.Len(t, f.sink.records, 1)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
