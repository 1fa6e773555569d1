package bootstrap

import (
	"context"
	"fmt"

	"bookingsync/internal/config"
	"bookingsync/internal/events"
	"bookingsync/internal/logger"
)

type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Publisher events.Publisher
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitEvents wires the outcome publisher. With events disabled the pipeline
// runs against a no-op publisher.
func (b *Base) InitEvents() error {
	if !b.Config.Events.Enabled {
		b.Publisher = events.NopPublisher{}
		return nil
	}
	if len(b.Config.Events.Brokers) == 0 || b.Config.Events.Topic == "" {
		return fmt.Errorf("events enabled but brokers or topic missing")
	}

	b.Publisher = events.NewKafkaPublisher(b.Config.Events, b.Logger)
	return nil
}

func (b *Base) ShutdownEvents() []error {
	var errs []error

	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownEvents()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
