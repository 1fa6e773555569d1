// Package orchestrator drives the ingestion pipeline: on a fixed tick it
// polls each source for candidates, claims survivors in the in-flight set,
// labels them PENDING, crawls booking detail through the source's session,
// appends records to the sink and resolves the label to DONE or FAILED.
// Failures are scoped: an item failure resolves that item to FAILED, a batch
// failure ends the source's tick, and the next tick starts clean.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookingsync/internal/config"
	"bookingsync/internal/constants"
	"bookingsync/internal/crawler"
	"bookingsync/internal/events"
	"bookingsync/internal/logger"
	"bookingsync/pkg/errors"
	"bookingsync/pkg/logging"
	"bookingsync/pkg/metrics"
	"bookingsync/pkg/models"
)

// FlightLookup resolves scheduled time and airport for a leg. Optional.
type FlightLookup interface {
	Lookup(ctx context.Context, flightNo string, direction models.Direction) (models.FlightInfo, error)
}

// SnapshotArchive stores the full record per crawl. Optional, best-effort.
type SnapshotArchive interface {
	Save(ctx context.Context, source string, record models.BookingDetail) error
}

// Sink is the tabular destination for normalized records.
type Sink interface {
	Append(ctx context.Context, record models.BookingDetail) error
}

// CandidateSource yields unprocessed mail candidates for one source.
type CandidateSource interface {
	Name() string
	ListCandidates(ctx context.Context) ([]models.MailItem, error)
}

// SessionKeeper is the slice of the session manager the orchestrator drives.
type SessionKeeper interface {
	EnsureSession(ctx context.Context) error
	Login(ctx context.Context) error
	Invalidate()
}

// LabelWriter persists pipeline labels on the underlying message.
type LabelWriter interface {
	Add(ctx context.Context, item models.MailItem, label models.Label) error
	Resolve(ctx context.Context, item models.MailItem, terminal models.Label) error
}

// Source bundles everything the orchestrator needs for one mail source.
type Source struct {
	Adapter CandidateSource
	Crawler crawler.Crawler
	Session SessionKeeper
	Labels  LabelWriter
}

type Orchestrator struct {
	sources      []Source
	sink         Sink
	cache        ProcessedCache
	onCacheError string
	flight       FlightLookup
	archive      SnapshotArchive
	events       events.Publisher
	inflight     *InFlightSet
	tickInterval time.Duration
	logger       logger.Logger
}

func New(cfg config.PipelineConfig, sources []Source, s Sink, cache ProcessedCache, pub events.Publisher, log logger.Logger) *Orchestrator {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = constants.DefaultTickInterval
	}
	return &Orchestrator{
		sources:      sources,
		sink:         s,
		cache:        cache,
		onCacheError: cfg.OnCacheError,
		events:       pub,
		inflight:     NewInFlightSet(),
		tickInterval: tickInterval,
		logger:       log,
	}
}

// WithFlightLookup enables flight-status enrichment.
func (o *Orchestrator) WithFlightLookup(f FlightLookup) *Orchestrator {
	o.flight = f
	return o
}

// WithArchive enables snapshot archiving.
func (o *Orchestrator) WithArchive(a SnapshotArchive) *Orchestrator {
	o.archive = a
	return o
}

// InFlight exposes current in-flight counts for the status endpoint.
func (o *Orchestrator) InFlight() map[string]int {
	return o.inflight.Counts()
}

// ProcessedCount exposes the processed-set size for the status endpoint.
func (o *Orchestrator) ProcessedCount(ctx context.Context) (int, error) {
	return o.cache.Size(ctx)
}

// Run ticks until the context is cancelled. The first tick fires
// immediately.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()

	o.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Tick processes every source once, sequentially.
func (o *Orchestrator) Tick(ctx context.Context) {
	ctx = logging.WithTraceID(ctx, uuid.New().String())
	start := time.Now()

	for _, src := range o.sources {
		if err := ctx.Err(); err != nil {
			return
		}
		sourceStart := time.Now()
		o.processSource(ctx, src)
		metrics.ObserveTickDuration(src.Adapter.Name(), time.Since(sourceStart))
	}

	o.logger.DebugwCtx(ctx, "Tick completed",
		"duration_ms", time.Since(start).Milliseconds())
}

func (o *Orchestrator) processSource(ctx context.Context, src Source) {
	ctx = logging.WithSource(ctx, src.Adapter.Name())

	candidates, err := src.Adapter.ListCandidates(ctx)
	if err != nil {
		o.logger.ErrorwCtx(ctx, "Candidate poll failed, skipping source this tick",
			"error", err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	if err := src.Session.EnsureSession(ctx); err != nil {
		o.logger.ErrorwCtx(ctx, "Session unavailable, skipping source this tick",
			"candidates", len(candidates),
			"error", err)
		return
	}

	// One in-flight crawl per source: items run sequentially to bound load
	// on the shared session.
	for _, item := range candidates {
		if err := ctx.Err(); err != nil {
			return
		}
		o.processItem(ctx, src, item)
	}
}

func (o *Orchestrator) processItem(ctx context.Context, src Source, item models.MailItem) {
	source := src.Adapter.Name()
	ctx = logging.WithMessageID(ctx, item.MessageID)
	ctx = logging.WithOrderID(ctx, item.OrderID)

	if !o.inflight.Add(source, item.MessageID) {
		metrics.ItemsSkippedTotal.WithLabelValues(source, "in_flight").Inc()
		return
	}
	defer o.inflight.Remove(source, item.MessageID)

	skip, err := o.checkProcessed(ctx, source, item)
	if err != nil || skip {
		return
	}

	if err := src.Labels.Add(ctx, item, models.LabelPending); err != nil {
		// Unlabeled and unclaimed: the next tick re-selects it.
		o.logger.ErrorwCtx(ctx, "Failed to label PENDING, deferring item", "error", err)
		return
	}

	records, crawlErr := o.crawlWithRelogin(ctx, src, item)

	outcome := models.LabelDone
	if crawlErr != nil {
		o.logger.ErrorwCtx(ctx, "Crawl failed", "error", crawlErr)
		outcome = models.LabelFailed
	} else {
		if err := o.persistRecords(ctx, source, records); err != nil {
			o.logger.ErrorwCtx(ctx, "Sink append failed", "error", err)
			outcome = models.LabelFailed
		}
	}

	o.resolve(ctx, src, item, outcome, len(records))
}

// crawlWithRelogin retries exactly once after an auth-expired crawl, behind a
// fresh login. Panics in the parser fail the item.
func (o *Orchestrator) crawlWithRelogin(ctx context.Context, src Source, item models.MailItem) (records []models.BookingDetail, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, errors.RecoverPanic(r)
		}
	}()

	records, err = src.Crawler.Crawl(ctx, item)
	if err == nil || !errors.IsAuthExpired(err) {
		return records, err
	}

	o.logger.WarnwCtx(ctx, "Session expired mid-crawl, re-authenticating")
	src.Session.Invalidate()
	if loginErr := src.Session.Login(ctx); loginErr != nil {
		return nil, loginErr
	}
	return src.Crawler.Crawl(ctx, item)
}

func (o *Orchestrator) persistRecords(ctx context.Context, source string, records []models.BookingDetail) error {
	for i := range records {
		record := &records[i]

		if o.flight != nil && record.FlightNo != "" {
			info, err := o.flight.Lookup(ctx, record.FlightNo, record.Direction)
			if err == nil {
				record.Flight = &info
			}
		}

		if err := o.sink.Append(ctx, *record); err != nil {
			return err
		}

		if o.archive != nil {
			if err := o.archive.Save(ctx, source, *record); err != nil {
				o.logger.WarnwCtx(ctx, "Snapshot archive failed", "error", err)
			}
		}
	}
	return nil
}

// checkProcessed consults the fast-path cache. A cache error falls back per
// config: allow lets the item continue to the (authoritative) label path,
// deny defers it to a later tick.
func (o *Orchestrator) checkProcessed(ctx context.Context, source string, item models.MailItem) (bool, error) {
	processed, err := o.cache.IsProcessed(ctx, processedKey(source, item))
	if err != nil {
		if o.onCacheError == constants.FallbackDeny {
			metrics.FallbackUsageTotal.WithLabelValues("processed_cache", "deny_on_error", "cache_error").Inc()
			o.logger.WarnwCtx(ctx, "Processed cache unavailable, deferring item (fallback: deny)",
				"error", err)
			metrics.ItemsSkippedTotal.WithLabelValues(source, "cache_error").Inc()
			return true, err
		}
		metrics.FallbackUsageTotal.WithLabelValues("processed_cache", "allow_on_error", "cache_error").Inc()
		o.logger.WarnwCtx(ctx, "Processed cache unavailable, continuing (fallback: allow)",
			"error", err)
		return false, nil
	}
	if processed {
		metrics.ItemsSkippedTotal.WithLabelValues(source, "processed").Inc()
		return true, nil
	}
	return false, nil
}

func (o *Orchestrator) resolve(ctx context.Context, src Source, item models.MailItem, outcome models.Label, recordCount int) {
	source := src.Adapter.Name()

	if err := src.Labels.Resolve(ctx, item, outcome); err != nil {
		// The label query re-selects the message next tick; sink dedup
		// absorbs the replay.
		o.logger.ErrorwCtx(ctx, "Failed to resolve terminal label",
			"label", outcome,
			"error", err)
		return
	}

	if err := o.cache.MarkProcessed(ctx, processedKey(source, item)); err != nil {
		o.logger.WarnwCtx(ctx, "Failed to record processed outcome in cache", "error", err)
	}

	status := "done"
	if outcome == models.LabelFailed {
		status = "failed"
	}
	metrics.ItemsProcessedTotal.WithLabelValues(source, status).Inc()

	event := models.OutcomeEvent{
		OrderID:    item.OrderID,
		MessageID:  item.MessageID,
		Source:     source,
		Status:     string(outcome),
		Records:    recordCount,
		OccurredAt: time.Now().UTC(),
	}
	if err := o.events.PublishOutcome(ctx, event); err != nil {
		o.logger.WarnwCtx(ctx, "Failed to publish outcome event", "error", err)
	}

	o.logger.InfowCtx(ctx, "Item resolved",
		"label", outcome,
		"records", recordCount)
}

func processedKey(source string, item models.MailItem) string {
	return source + ":" + item.MessageID
}
