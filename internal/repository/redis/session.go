// Package redis stores sessions in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dtroode/smartbank-server/internal/model"
)

// Expired sessions are kept this long past their expiry so that callers can
// tell an expired session from an unknown one.
const expiredRetention = time.Hour

const maxWatchRetries = 32

var errContention = errors.New("too many concurrent session writes")

var _ model.SessionStore = (*SessionRepository)(nil)

type sessionRecord struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

type SessionRepository struct {
	client goredis.UniversalClient
	prefix string
}

// NewClient parses a redis:// or rediss:// URL and checks connectivity.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func NewSessionRepository(client goredis.UniversalClient, prefix string) *SessionRepository {
	if prefix == "" {
		prefix = "smartbank"
	}
	return &SessionRepository{client: client, prefix: prefix}
}

func (r *SessionRepository) sessionKey(id uuid.UUID) string {
	return r.prefix + ":session:" + id.String()
}

func (r *SessionRepository) addressKey(address model.Address) string {
	return r.prefix + ":session-by-address:" + address.String()
}

// watch runs fn as an optimistic transaction over keys, retrying when a
// concurrent writer touched one of them.
func (r *SessionRepository) watch(ctx context.Context, fn func(*goredis.Tx) error, keys ...string) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
	}
	return errContention
}

func encodeSession(s model.Session) ([]byte, error) {
	data, err := json.Marshal(sessionRecord{
		ID:        s.ID.String(),
		Address:   s.Address.String(),
		Role:      string(s.Role),
		IssuedAt:  s.IssuedAt.UnixNano(),
		ExpiresAt: s.ExpiresAt.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

func decodeSession(data []byte) (model.Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	sid, err := uuid.Parse(rec.ID)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to parse session id: %w", err)
	}

	return model.Session{
		ID:        sid,
		Address:   model.Address(rec.Address),
		Role:      model.Role(rec.Role),
		IssuedAt:  time.Unix(0, rec.IssuedAt).UTC(),
		ExpiresAt: time.Unix(0, rec.ExpiresAt).UTC(),
	}, nil
}

// getString is GET with a missing key reported as "".
func getString(ctx context.Context, c goredis.Cmdable, key string) (string, error) {
	v, err := c.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return v, err
}

// Save stores s and drops the previous session of the same address.
func (r *SessionRepository) Save(ctx context.Context, s model.Session) error {
	data, err := encodeSession(s)
	if err != nil {
		return err
	}

	addrKey := r.addressKey(s.Address)
	expireAt := s.ExpiresAt.Add(expiredRetention)

	err = r.watch(ctx, func(tx *goredis.Tx) error {
		prev, err := getString(ctx, tx, addrKey)
		if err != nil {
			return fmt.Errorf("failed to get previous session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if prev != "" && prev != s.ID.String() {
				pipe.Del(ctx, r.prefix+":session:"+prev)
			}
			pipe.SetArgs(ctx, r.sessionKey(s.ID), data, goredis.SetArgs{ExpireAt: expireAt})
			pipe.SetArgs(ctx, addrKey, s.ID.String(), goredis.SetArgs{ExpireAt: expireAt})
			return nil
		})
		return err
	}, addrKey)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (model.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return model.Session{}, model.ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	return decodeSession(data)
}

// Extend moves the expiry of id only while it is still the current session of
// its address.
func (r *SessionRepository) Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) (model.Session, error) {
	key := r.sessionKey(id)
	var extended model.Session

	err := r.watch(ctx, func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return model.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}
		s, err := decodeSession(data)
		if err != nil {
			return err
		}

		addrKey := r.addressKey(s.Address)
		if err := tx.Watch(ctx, addrKey).Err(); err != nil {
			return fmt.Errorf("failed to watch address session: %w", err)
		}
		current, err := getString(ctx, tx, addrKey)
		if err != nil {
			return fmt.Errorf("failed to get address session: %w", err)
		}
		if current != id.String() {
			return model.ErrNotFound
		}

		s.ExpiresAt = expiresAt
		data, err = encodeSession(s)
		if err != nil {
			return err
		}

		expireAt := expiresAt.Add(expiredRetention)
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, goredis.SetArgs{ExpireAt: expireAt})
			pipe.SetArgs(ctx, addrKey, id.String(), goredis.SetArgs{ExpireAt: expireAt})
			return nil
		})
		if err != nil {
			return err
		}
		extended = s
		return nil
	}, key)
	if errors.Is(err, model.ErrNotFound) {
		return model.Session{}, err
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to extend session: %w", err)
	}
	return extended, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	key := r.sessionKey(id)

	err := r.watch(ctx, func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}
		s, err := decodeSession(data)
		if err != nil {
			return err
		}

		addrKey := r.addressKey(s.Address)
		if err := tx.Watch(ctx, addrKey).Err(); err != nil {
			return fmt.Errorf("failed to watch address session: %w", err)
		}
		current, err := getString(ctx, tx, addrKey)
		if err != nil {
			return fmt.Errorf("failed to get address session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			if current == id.String() {
				pipe.Del(ctx, addrKey)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
