// Package transfer sends payouts for withdrawals and fee sweeps.
package transfer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/segmentio/kafka-go"

	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

var (
	_ model.FundsTransfer  = (*Log)(nil)
	_ model.FundsTransfer  = (*Queued)(nil)
	_ model.EventPublisher = (*KafkaPayouts)(nil)
)

// Log records payouts without moving value. Used in development.
type Log struct {
	logger *logger.Logger
}

func NewLog(logger *logger.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Transfer(_ context.Context, to model.Address, amount uint256.Int) error {
	l.logger.Info("Transfer: payout", "to", to.String(), "amount_wei", amount.Dec(), "amount", model.FormatUnits(amount))
	return nil
}

// Queued accepts every payout inside the ledger commit. The committed Withdraw
// and FeesWithdrawn events are the payout requests; KafkaPayouts delivers them
// from the outbox once the commit is durable.
type Queued struct {
	logger *logger.Logger
}

func NewQueued(logger *logger.Logger) *Queued {
	return &Queued{logger: logger}
}

func (q *Queued) Transfer(_ context.Context, to model.Address, amount uint256.Int) error {
	q.logger.Debug("Transfer: payout queued", "to", to.String(), "amount_wei", amount.Dec())
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Instruction is the payout request consumed by the settlement worker.
// ID is the id of the ledger event that debited the funds, so redeliveries
// carry the same ID.
type Instruction struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	To          string `json:"to"`
	AmountWei   string `json:"amount_wei"`
	RequestedAt int64  `json:"requested_at"`
}

// KafkaPayouts turns committed payout events into instructions on the payouts topic.
type KafkaPayouts struct {
	writer messageWriter
	logger *logger.Logger
}

func NewKafkaPayouts(writer messageWriter, logger *logger.Logger) *KafkaPayouts {
	return &KafkaPayouts{
		writer: writer,
		logger: logger,
	}
}

func isPayout(kind model.EventKind) bool {
	return kind == model.EventWithdraw || kind == model.EventFeesWithdrawn
}

func (k *KafkaPayouts) Publish(ctx context.Context, events []model.Event) error {
	var msgs []kafka.Message
	for _, e := range events {
		if !isPayout(e.Kind) || e.Amount.IsZero() {
			continue
		}

		ins := Instruction{
			ID:          e.ID.String(),
			Kind:        string(e.Kind),
			To:          e.Address.String(),
			AmountWei:   e.Amount.Dec(),
			RequestedAt: e.Timestamp.Unix(),
		}
		value, err := json.Marshal(ins)
		if err != nil {
			return fmt.Errorf("failed to encode payout instruction %s: %w", ins.ID, err)
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(ins.To),
			Value: value,
			Time:  e.Timestamp,
		})
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to send payout instructions: %w", err)
	}

	k.logger.Info("Transfer: payout instructions sent", "count", len(msgs))
	return nil
}
