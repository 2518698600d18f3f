package events

import (
	"context"

	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

var _ model.EventPublisher = (*LogPublisher)(nil)

// LogPublisher writes events to the application log. Used when no broker or archive is configured.
type LogPublisher struct {
	logger *logger.Logger
}

func NewLogPublisher(logger *logger.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, events []model.Event) error {
	for _, e := range events {
		m := e.Message()
		p.logger.Info("Ledger event",
			"id", m.ID,
			"kind", m.Kind,
			"address", m.Address,
			"amount", m.Amount,
			"timestamp", m.Timestamp,
		)
	}
	return nil
}
