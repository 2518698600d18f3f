package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/smartbank-server/internal/model"
)

var _ model.ProfileStore = (*ProfileRepository)(nil)

type ProfileRepository struct {
	db *Connection
}

func NewProfileRepository(db *Connection) *ProfileRepository {
	return &ProfileRepository{
		db: db,
	}
}

func (r *ProfileRepository) Create(ctx context.Context, p model.UserProfile) error {
	query := `
		INSERT INTO profiles (address, username, email, role, preferences, created_at, last_login_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		p.Address.String(), p.Username, p.Email, string(p.Role), p.Preferences,
		p.CreatedAt, p.LastLoginAt, p.UpdatedAt)
	if isPgError(err, pgUniqueViolation) {
		return model.ErrAlreadyRegistered
	}
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetByAddress(ctx context.Context, address model.Address) (model.UserProfile, error) {
	query := `
		SELECT username, COALESCE(email, ''), role, preferences, created_at, last_login_at, updated_at
		FROM profiles
		WHERE address = $1`

	p := model.UserProfile{Address: address}
	err := r.db.QueryRow(ctx, query, address.String()).Scan(
		&p.Username, &p.Email, &p.Role, &p.Preferences,
		&p.CreatedAt, &p.LastLoginAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.UserProfile{}, model.ErrNotFound
	}
	if err != nil {
		return model.UserProfile{}, err
	}

	p.CreatedAt = p.CreatedAt.UTC()
	p.LastLoginAt = p.LastLoginAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	return p, nil
}

func (r *ProfileRepository) Update(ctx context.Context, p model.UserProfile) error {
	query := `
		UPDATE profiles
		SET username = $2, email = NULLIF($3, ''), role = $4, preferences = $5, updated_at = $6
		WHERE address = $1`

	tag, err := r.db.Exec(ctx, query,
		p.Address.String(), p.Username, p.Email, string(p.Role), p.Preferences,
		p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *ProfileRepository) TouchLogin(ctx context.Context, address model.Address, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE profiles SET last_login_at = $2 WHERE address = $1`, address.String(), at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *ProfileRepository) Delete(ctx context.Context, address model.Address) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE address = $1`, address.String()); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}
