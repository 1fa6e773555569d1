// Package sink appends normalized booking records to the bookings table.
// (order_id, direction) is the dedup identity: replays after a crash between
// label writes hit the unique constraint and are absorbed silently.
package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"bookingsync/internal/logger"
	"bookingsync/pkg/errors"
	"bookingsync/pkg/metrics"
	"bookingsync/pkg/models"
)

type Sink interface {
	Append(ctx context.Context, record models.BookingDetail) error
	Exists(ctx context.Context, orderID string, direction models.Direction) (bool, error)
}

type PostgresSink struct {
	db     *sql.DB
	table  string
	logger logger.Logger
}

func NewPostgresSink(db *sql.DB, table string, log logger.Logger) *PostgresSink {
	return &PostgresSink{db: db, table: table, logger: log}
}

func (s *PostgresSink) Append(ctx context.Context, record models.BookingDetail) error {
	row := buildRow(record)

	var prices []byte
	if len(row.Prices) > 0 {
		var err error
		prices, err = json.Marshal(row.Prices)
		if err != nil {
			return errors.ErrSink.WithCause(err).WithDetail("order_id", row.OrderID)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			order_id, direction, platform, traveler_name, adults, children,
			flight_no, airport, scheduled_time, scheduled_date, contact,
			service_tier, service, flight_marker, date_of_use, prices, booking_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (order_id, direction) DO NOTHING`,
		pq.QuoteIdentifier(s.table))

	result, err := s.db.ExecContext(ctx, query,
		row.OrderID, string(row.Direction), row.Platform, row.TravelerName,
		row.Adults, row.Children, row.FlightNo, row.Airport, row.ScheduledTime,
		row.ScheduledDate, row.Contact, row.ServiceTier, row.Service,
		row.FlightMarker, row.DateOfUse, prices, row.BookingDate)
	if err != nil {
		metrics.SinkAppendsTotal.WithLabelValues("error").Inc()
		return errors.ErrSink.WithCause(err).WithDetail("order_id", row.OrderID)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		metrics.SinkAppendsTotal.WithLabelValues("duplicate").Inc()
		s.logger.InfowCtx(ctx, "Duplicate record absorbed",
			"order_id", row.OrderID,
			"direction", row.Direction)
		return nil
	}

	metrics.SinkAppendsTotal.WithLabelValues("success").Inc()
	return nil
}

func (s *PostgresSink) Exists(ctx context.Context, orderID string, direction models.Direction) (bool, error) {
	query := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE order_id = $1 AND direction = $2)`,
		pq.QuoteIdentifier(s.table))

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, orderID, string(direction)).Scan(&exists); err != nil {
		return false, errors.ErrSink.WithCause(err).WithDetail("order_id", orderID)
	}
	return exists, nil
}
