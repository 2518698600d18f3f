package postgres

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/smartbank-server/internal/model"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// Amounts are stored as NUMERIC(78,0) and exchanged as decimal text.
func parseNumeric(s string) (uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("%w: stored amount %q: %v", model.ErrArithmeticOverflow, s, err)
	}
	return *v, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
