// Package mailsource turns mailbox polls into order-confirmation candidates.
// Each configured source owns a subject marker, an order id pattern and an
// optional CEL filter; messages carrying a pipeline label are excluded
// server-side so terminal mail never re-enters the pipeline.
package mailsource

import (
	"context"
	"fmt"
	"strconv"
	"time"

	celgo "github.com/google/cel-go/cel"

	"bookingsync/internal/config"
	"bookingsync/internal/logger"
	"bookingsync/internal/mailbox"
	"bookingsync/pkg/cel"
	"bookingsync/pkg/errors"
	"bookingsync/pkg/logging"
	"bookingsync/pkg/metrics"
	"bookingsync/pkg/models"
)

type Adapter struct {
	cfg       config.SourceConfig
	client    mailbox.Client
	extractor *Extractor
	evaluator *cel.Evaluator
	filter    celgo.Program
	horizon   time.Time
	logger    logger.Logger
}

func NewAdapter(cfg config.SourceConfig, client mailbox.Client, log logger.Logger) (*Adapter, error) {
	extractor, err := NewExtractor(cfg.OrderIDPattern)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		cfg:       cfg,
		client:    client,
		extractor: extractor,
		logger:    log,
	}

	if cfg.Horizon != "" {
		horizon, err := time.Parse("2006-01-02", cfg.Horizon)
		if err != nil {
			return nil, fmt.Errorf("invalid horizon for source %s: %w", cfg.Name, err)
		}
		a.horizon = horizon
	}

	if cfg.Filter != "" {
		evaluator, err := cel.NewEvaluator()
		if err != nil {
			return nil, err
		}
		program, err := evaluator.CompileFilter(cfg.Filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter for source %s: %w", cfg.Name, err)
		}
		a.evaluator = evaluator
		a.filter = program
	}

	return a, nil
}

func (a *Adapter) Name() string {
	return a.cfg.Name
}

func (a *Adapter) Platform() string {
	return a.cfg.Platform
}

// ListCandidates polls the mailbox for unprocessed confirmations. Messages
// whose subject does not yield an order id are skipped without labeling, so
// they surface again on the next poll.
func (a *Adapter) ListCandidates(ctx context.Context) ([]models.MailItem, error) {
	query := mailbox.Query{
		Subject: a.cfg.Subject,
		Since:   a.horizon,
		Max:     a.cfg.MaxResults,
	}
	for _, label := range models.PipelineLabels {
		query.WithoutKeywords = append(query.WithoutKeywords, string(label))
	}

	envelopes, err := a.client.SearchEnvelopes(ctx, query)
	if err != nil {
		return nil, errors.ErrPoll.WithCause(err).WithDetail("source", a.cfg.Name)
	}

	candidates := make([]models.MailItem, 0, len(envelopes))
	for _, env := range envelopes {
		orderID, ok := a.extractor.Extract(env.Subject)
		if !ok {
			metrics.ItemsSkippedTotal.WithLabelValues(a.cfg.Name, "no_order_id").Inc()
			a.logger.DebugwCtx(ctx, "Subject matched but no order id extracted",
				"source", a.cfg.Name,
				"uid", env.UID)
			continue
		}

		item := models.MailItem{
			MessageID:  strconv.FormatUint(uint64(env.UID), 10),
			OrderID:    orderID,
			Subject:    env.Subject,
			From:       env.From,
			ReceivedAt: env.InternalDate,
			Source:     a.cfg.Name,
		}

		if a.filter != nil {
			pass, err := a.evaluator.EvaluateCompiled(ctx, a.filter, item)
			if err != nil {
				a.logger.WarnwCtx(ctx, "Filter evaluation failed, skipping candidate",
					"source", a.cfg.Name,
					logging.MessageIDKey, item.MessageID,
					"error", err)
				metrics.ItemsSkippedTotal.WithLabelValues(a.cfg.Name, "filter_error").Inc()
				continue
			}
			if !pass {
				metrics.ItemsSkippedTotal.WithLabelValues(a.cfg.Name, "filtered").Inc()
				continue
			}
		}

		candidates = append(candidates, item)
	}

	metrics.CandidatesTotal.WithLabelValues(a.cfg.Name).Add(float64(len(candidates)))
	return candidates, nil
}
