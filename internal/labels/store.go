// Package labels persists pipeline state as IMAP keywords on the underlying
// message. Keywords are the authoritative state store: a message with a
// terminal keyword is excluded from candidate queries server-side, so the
// pipeline survives restarts without replaying finished work.
package labels

import (
	"context"
	"fmt"
	"strconv"

	"bookingsync/internal/logger"
	"bookingsync/internal/mailbox"
	"bookingsync/pkg/metrics"
	"bookingsync/pkg/models"
)

type Store struct {
	client mailbox.Client
	logger logger.Logger
}

func NewStore(client mailbox.Client, log logger.Logger) *Store {
	return &Store{client: client, logger: log}
}

// Add attaches a label to the message. Adding an already-present keyword is a
// no-op on the server, so retries are safe.
func (s *Store) Add(ctx context.Context, item models.MailItem, label models.Label) error {
	uid, err := parseUID(item.MessageID)
	if err != nil {
		return err
	}

	if err := s.client.AddKeyword(ctx, uid, string(label)); err != nil {
		metrics.LabelWritesTotal.WithLabelValues(string(label), "add", "error").Inc()
		return fmt.Errorf("failed to add label %s to message %s: %w", label, item.MessageID, err)
	}

	metrics.LabelWritesTotal.WithLabelValues(string(label), "add", "success").Inc()
	s.logger.DebugwCtx(ctx, "Label added",
		"label", label,
		"message_id", item.MessageID)
	return nil
}

// Remove detaches a label. Removing an absent keyword is also a server-side
// no-op.
func (s *Store) Remove(ctx context.Context, item models.MailItem, label models.Label) error {
	uid, err := parseUID(item.MessageID)
	if err != nil {
		return err
	}

	if err := s.client.RemoveKeyword(ctx, uid, string(label)); err != nil {
		metrics.LabelWritesTotal.WithLabelValues(string(label), "remove", "error").Inc()
		return fmt.Errorf("failed to remove label %s from message %s: %w", label, item.MessageID, err)
	}

	metrics.LabelWritesTotal.WithLabelValues(string(label), "remove", "success").Inc()
	return nil
}

// Resolve moves the message from PENDING to the given terminal label.
// PENDING comes off before the terminal label goes on, so a message is never
// observed carrying both; a crash between the two writes leaves it unlabeled
// and it is re-selected next tick, where the sink's dedup absorbs the replay.
func (s *Store) Resolve(ctx context.Context, item models.MailItem, terminal models.Label) error {
	if !terminal.IsTerminal() {
		return fmt.Errorf("label %s is not terminal", terminal)
	}

	if err := s.Remove(ctx, item, models.LabelPending); err != nil {
		return err
	}
	if err := s.Add(ctx, item, terminal); err != nil {
		s.logger.WarnwCtx(ctx, "PENDING cleared but terminal label write failed",
			"message_id", item.MessageID,
			"label", terminal,
			"error", err)
		return err
	}
	return nil
}

func parseUID(messageID string) (uint32, error) {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", messageID, err)
	}
	return uint32(uid), nil
}
