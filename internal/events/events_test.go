package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/mocks"
	"github.com/dtroode/smartbank-server/internal/model"
	"github.com/dtroode/smartbank-server/internal/repository/memory"
	"github.com/dtroode/smartbank-server/internal/testutil"
)

var (
	eventTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	alice     = model.MustParseAddress("0x00000000000000000000000000000000000000a1")
	bob       = model.MustParseAddress("0x00000000000000000000000000000000000000b2")
)

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []model.Event
	published []uuid.UUID
	readErr   error
	markErr   error
}

func (f *fakeOutbox) PendingEvents(_ context.Context, limit int) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	n := min(limit, len(f.pending))
	return append([]model.Event(nil), f.pending[:n]...), nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, ids...)
	f.pending = f.pending[len(ids):]
	return nil
}

func (f *fakeOutbox) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func makeEvents(n int) []model.Event {
	out := make([]model.Event, n)
	for i := range out {
		out[i] = model.NewEvent(model.EventDeposit, alice, *uint256.NewInt(uint64(i + 1)), eventTime.Add(time.Duration(i)*time.Second))
	}
	return out
}

func TestNewRelay_Validation(t *testing.T) {
	t.Parallel()

	pub := NewLogPublisher(testutil.MakeNoopLogger())
	log := testutil.MakeNoopLogger()

	_, err := NewRelay(&fakeOutbox{}, nil, RelayConfig{Interval: time.Second, BatchSize: 1}, log)
	assert.Error(t, err)
	_, err = NewRelay(&fakeOutbox{}, []model.EventPublisher{pub}, RelayConfig{BatchSize: 1}, log)
	assert.Error(t, err)
	_, err = NewRelay(&fakeOutbox{}, []model.EventPublisher{pub}, RelayConfig{Interval: time.Second}, log)
	assert.Error(t, err)
}

func TestRelay_Flush(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("delivers to every publisher then marks", func(t *testing.T) {
		t.Parallel()
		events := makeEvents(3)
		outbox := &fakeOutbox{pending: events}
		p1 := mocks.NewEventPublisher(t)
		p2 := mocks.NewEventPublisher(t)
		p1.On("Publish", mock.Anything, events[:2]).Return(nil).Once()
		p2.On("Publish", mock.Anything, events[:2]).Return(nil).Once()

		r, err := NewRelay(outbox, []model.EventPublisher{p1, p2}, RelayConfig{Interval: time.Second, BatchSize: 2}, testutil.MakeNoopLogger())
		require.NoError(t, err)

		n, err := r.Flush(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []uuid.UUID{events[0].ID, events[1].ID}, outbox.published)
		assert.Len(t, outbox.pending, 1)
	})

	t.Run("empty outbox publishes nothing", func(t *testing.T) {
		t.Parallel()
		p := mocks.NewEventPublisher(t)
		r, err := NewRelay(&fakeOutbox{}, []model.EventPublisher{p}, RelayConfig{Interval: time.Second, BatchSize: 10}, testutil.MakeNoopLogger())
		require.NoError(t, err)

		n, err := r.Flush(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("publisher failure keeps events pending", func(t *testing.T) {
		t.Parallel()
		events := makeEvents(2)
		outbox := &fakeOutbox{pending: events}
		p1 := mocks.NewEventPublisher(t)
		p2 := mocks.NewEventPublisher(t)
		p1.On("Publish", mock.Anything, events).Return(errors.New("broker down")).Once()

		r, err := NewRelay(outbox, []model.EventPublisher{p1, p2}, RelayConfig{Interval: time.Second, BatchSize: 10}, testutil.MakeNoopLogger())
		require.NoError(t, err)

		_, err = r.Flush(ctx)
		assert.ErrorContains(t, err, "broker down")
		assert.Empty(t, outbox.published)
		assert.Len(t, outbox.pending, 2)
	})

	t.Run("outbox read failure", func(t *testing.T) {
		t.Parallel()
		p := mocks.NewEventPublisher(t)
		r, err := NewRelay(&fakeOutbox{readErr: errors.New("db down")}, []model.EventPublisher{p}, RelayConfig{Interval: time.Second, BatchSize: 10}, testutil.MakeNoopLogger())
		require.NoError(t, err)

		_, err = r.Flush(ctx)
		assert.ErrorContains(t, err, "failed to read pending events")
	})

	t.Run("mark failure is reported", func(t *testing.T) {
		t.Parallel()
		events := makeEvents(1)
		p := mocks.NewEventPublisher(t)
		p.On("Publish", mock.Anything, events).Return(nil).Once()
		r, err := NewRelay(&fakeOutbox{pending: events, markErr: errors.New("db down")}, []model.EventPublisher{p}, RelayConfig{Interval: time.Second, BatchSize: 10}, testutil.MakeNoopLogger())
		require.NoError(t, err)

		_, err = r.Flush(ctx)
		assert.ErrorContains(t, err, "failed to mark events published")
	})
}

func TestRelay_RunDrainsBacklog(t *testing.T) {
	t.Parallel()

	events := makeEvents(5)
	outbox := &fakeOutbox{pending: events}
	p := mocks.NewEventPublisher(t)
	p.On("Publish", mock.Anything, mock.Anything).Return(nil).Times(3)

	r, err := NewRelay(outbox, []model.EventPublisher{p}, RelayConfig{Interval: 5 * time.Millisecond, BatchSize: 2}, testutil.MakeNoopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return outbox.publishedCount() == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	t.Parallel()

	t.Run("keyed by address", func(t *testing.T) {
		t.Parallel()
		w := &fakeWriter{}
		p := NewKafkaPublisher(w, testutil.MakeNoopLogger())

		amount, err := model.ParseUnits("1.5")
		require.NoError(t, err)
		events := []model.Event{
			model.NewEvent(model.EventDeposit, alice, amount, eventTime),
			model.NewEvent(model.EventWithdraw, bob, *uint256.NewInt(7), eventTime),
		}
		require.NoError(t, p.Publish(context.Background(), events))
		require.Len(t, w.msgs, 2)

		assert.Equal(t, []byte(alice), w.msgs[0].Key)
		assert.Equal(t, []byte(bob), w.msgs[1].Key)
		assert.Equal(t, eventTime, w.msgs[0].Time)

		var m model.EventMessage
		require.NoError(t, json.Unmarshal(w.msgs[0].Value, &m))
		assert.Equal(t, events[0].ID.String(), m.ID)
		assert.Equal(t, "Deposit", m.Kind)
		assert.Equal(t, "1500000000000000000", m.AmountWei)
		assert.Equal(t, "1.5", m.Amount)
		assert.Equal(t, eventTime.Unix(), m.Timestamp)
		assert.Equal(t, "Withdraw", string(w.msgs[1].Headers[0].Value))
	})

	t.Run("writer error", func(t *testing.T) {
		t.Parallel()
		p := NewKafkaPublisher(&fakeWriter{err: errors.New("no leader")}, testutil.MakeNoopLogger())
		err := p.Publish(context.Background(), makeEvents(1))
		assert.ErrorContains(t, err, "failed to write kafka messages")
	})
}

func TestArchiver_Publish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("uploads ndjson", func(t *testing.T) {
		t.Parallel()
		events := makeEvents(3)
		storage := mocks.NewStorage(t)
		a := NewArchiver(storage, "", testutil.MakeNoopLogger())
		key := a.ObjectKey(events)
		assert.True(t, strings.HasPrefix(key, "events/2025-03-01/"+events[0].ID.String()+"-"))
		assert.NotEqual(t, key, a.ObjectKey(events[:2]))

		var body []byte
		storage.On("Exists", mock.Anything, key).Return(false, nil).Once()
		storage.On("Upload", mock.Anything, key, mock.Anything).
			Run(func(args mock.Arguments) {
				b, err := io.ReadAll(args.Get(2).(io.Reader))
				require.NoError(t, err)
				body = b
			}).
			Return(nil).Once()

		require.NoError(t, a.Publish(ctx, events))

		lines := strings.Split(strings.TrimSpace(string(body)), "\n")
		require.Len(t, lines, 3)
		for i, line := range lines {
			var m model.EventMessage
			require.NoError(t, json.NewDecoder(bytes.NewReader([]byte(line))).Decode(&m))
			assert.Equal(t, events[i].ID.String(), m.ID)
		}
	})

	t.Run("already archived", func(t *testing.T) {
		t.Parallel()
		events := makeEvents(1)
		storage := mocks.NewStorage(t)
		a := NewArchiver(storage, "archive", testutil.MakeNoopLogger())
		storage.On("Exists", mock.Anything, a.ObjectKey(events)).Return(true, nil).Once()

		require.NoError(t, a.Publish(ctx, events))
	})

	t.Run("upload failure", func(t *testing.T) {
		t.Parallel()
		storage := mocks.NewStorage(t)
		a := NewArchiver(storage, "", testutil.MakeNoopLogger())
		storage.On("Exists", mock.Anything, mock.Anything).Return(false, nil).Once()
		storage.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("denied")).Once()

		err := a.Publish(ctx, makeEvents(1))
		assert.ErrorContains(t, err, "failed to upload archive object")
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()
		a := NewArchiver(mocks.NewStorage(t), "", testutil.MakeNoopLogger())
		assert.NoError(t, a.Publish(ctx, nil))
	})
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStorage) Upload(_ context.Context, key string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return nil
}

func (s *memStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStorage) archivedIDs(t *testing.T) map[string]bool {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]bool)
	for _, body := range s.objects {
		dec := json.NewDecoder(bytes.NewReader(body))
		for dec.More() {
			var m model.EventMessage
			require.NoError(t, dec.Decode(&m))
			ids[m.ID] = true
		}
	}
	return ids
}

type failOncePublisher struct {
	failed bool
}

func (p *failOncePublisher) Publish(context.Context, []model.Event) error {
	if !p.failed {
		p.failed = true
		return errors.New("broker unavailable")
	}
	return nil
}

func TestRelay_ArchiveAfterPartialFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	outbox := memory.NewLedgerRepository()
	storage := &memStorage{objects: make(map[string][]byte)}
	relay, err := NewRelay(outbox, []model.EventPublisher{
		NewArchiver(storage, "", testutil.MakeNoopLogger()),
		&failOncePublisher{},
	}, RelayConfig{Interval: time.Second, BatchSize: 10}, testutil.MakeNoopLogger())
	require.NoError(t, err)

	commit := func(events []model.Event) {
		require.NoError(t, outbox.Commit(ctx, model.LedgerCommit{Account: model.Account{Address: alice}, Events: events}, nil))
	}

	events := makeEvents(3)
	commit(events[:1])
	_, err = relay.Flush(ctx)
	require.Error(t, err)

	commit(events[1:])
	n, err := relay.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	archived := storage.archivedIDs(t)
	for _, e := range events {
		assert.True(t, archived[e.ID.String()], "event %s not archived", e.ID)
	}

	pending, err := outbox.PendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLogPublisher_Publish(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewLogPublisher(logger.NewWithWriter(&buf, 0, "json"))
	events := makeEvents(2)
	require.NoError(t, p.Publish(context.Background(), events))

	out := buf.String()
	assert.Contains(t, out, events[0].ID.String())
	assert.Contains(t, out, events[1].ID.String())
	assert.Contains(t, out, `"kind":"Deposit"`)
}
