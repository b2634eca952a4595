package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"akiverse/internal/arcade"
)

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

var balanceConstraints = map[string]struct{}{
	"users_teras_balance_nonnegative": {},
	"users_akv_balance_nonnegative":   {},
}

// translate maps Postgres constraint failures onto the arcade store signals.
// Anything else is returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return arcade.ErrRecordNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", arcade.ErrUniqueViolation, pgErr.ConstraintName)
	case codeCheckViolation:
		if _, ok := balanceConstraints[pgErr.ConstraintName]; ok {
			return fmt.Errorf("%w: %s", arcade.ErrNegativeBalance, pgErr.ConstraintName)
		}
	}
	return err
}

// versioned is translate for UPDATE ... RETURNING under a version predicate,
// where zero rows means another writer won.
func versioned(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return arcade.ErrStaleVersion
	}
	return translate(err)
}
