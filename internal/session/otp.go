package session

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"bookingsync/internal/config"
	"bookingsync/internal/logger"
	"bookingsync/internal/mailbox"
	"bookingsync/pkg/errors"
	"bookingsync/pkg/metrics"
	"bookingsync/pkg/retry"
)

// OTPRetriever polls the mailbox for a login verification code. The vendor
// sends the code to the same account the pipeline already watches, so login
// and candidate polling share one IMAP connection.
type OTPRetriever struct {
	client  mailbox.Client
	cfg     config.OTPConfig
	source  string
	pattern *regexp.Regexp
	logger  logger.Logger
}

func NewOTPRetriever(source string, cfg config.OTPConfig, client mailbox.Client, log logger.Logger) (*OTPRetriever, error) {
	pattern, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid OTP pattern for source %s: %w", source, err)
	}
	if pattern.NumSubexp() < 1 {
		return nil, fmt.Errorf("OTP pattern for source %s needs a capture group", source)
	}

	return &OTPRetriever{
		client:  client,
		cfg:     cfg,
		source:  source,
		pattern: pattern,
		logger:  log,
	}, nil
}

// WaitForCode polls until a fresh verification mail arrives or MaxWait
// elapses. Matched messages are marked seen so a stale code is never replayed
// into the next login.
func (r *OTPRetriever) WaitForCode(ctx context.Context) (string, error) {
	start := time.Now()
	policy := retry.ConstantPolicy(r.cfg.PollInterval, r.cfg.MaxWait)

	var code string
	err := retry.Retry(ctx, policy, func() error {
		found, pollErr := r.poll(ctx)
		if pollErr != nil {
			return pollErr
		}
		if found == "" {
			return fmt.Errorf("verification code not yet received")
		}
		code = found
		return nil
	})

	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.OTPWaitDuration.WithLabelValues(r.source, "timeout").Observe(elapsed)
		return "", errors.ErrOTPTimeout.WithCause(err)
	}

	metrics.OTPWaitDuration.WithLabelValues(r.source, "success").Observe(elapsed)
	r.logger.InfowCtx(ctx, "Verification code retrieved",
		"source", r.source,
		"wait_ms", elapsed)
	return code, nil
}

func (r *OTPRetriever) poll(ctx context.Context) (string, error) {
	envelopes, err := r.client.SearchEnvelopes(ctx, mailbox.Query{
		Subject: r.cfg.Subject,
		Unseen:  true,
		Max:     5,
	})
	if err != nil {
		return "", fmt.Errorf("OTP mailbox search failed: %w", err)
	}

	for _, env := range envelopes {
		body, err := r.client.FetchBody(ctx, env.UID)
		if err != nil {
			return "", fmt.Errorf("OTP body fetch failed: %w", err)
		}

		m := r.pattern.FindStringSubmatch(body)
		if len(m) < 2 {
			continue
		}

		if err := r.client.MarkSeen(ctx, env.UID); err != nil {
			r.logger.Warnw("Failed to mark verification mail seen",
				"source", r.source,
				"uid", env.UID,
				"error", err)
		}
		return m[1], nil
	}

	return "", nil
}
