package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

var _ model.EventPublisher = (*Archiver)(nil)

// Archiver stores every batch as one newline-delimited JSON object.
// Object keys derive from every event id in the batch, so only an identical
// redelivered batch is skipped.
type Archiver struct {
	storage model.Storage
	prefix  string
	logger  *logger.Logger
}

func NewArchiver(storage model.Storage, prefix string, logger *logger.Logger) *Archiver {
	if prefix == "" {
		prefix = "events"
	}
	return &Archiver{
		storage: storage,
		prefix:  prefix,
		logger:  logger,
	}
}

// ObjectKey returns the archive key of a non-empty batch: the date and id of
// its first event plus a digest of all ids.
func (a *Archiver) ObjectKey(events []model.Event) string {
	h := murmur3.New128()
	for _, e := range events {
		_, _ = h.Write(e.ID[:])
	}
	hi, lo := h.Sum128()

	first := events[0]
	return fmt.Sprintf("%s/%s/%s-%016x%016x.ndjson", a.prefix, first.Timestamp.UTC().Format("2006-01-02"), first.ID, hi, lo)
}

func (a *Archiver) Publish(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	key := a.ObjectKey(events)
	exists, err := a.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check archive object: %w", err)
	}
	if exists {
		a.logger.Debug("Event archiver: batch already archived", "key", key)
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		if err := enc.Encode(e.Message()); err != nil {
			return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
		}
	}

	if err := a.storage.Upload(ctx, key, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("failed to upload archive object: %w", err)
	}

	a.logger.Info("Event archiver: batch archived", "key", key, "count", len(events))
	return nil
}
