package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"akiverse/internal/arcade"
)

const transitionCustodySQL = `
	UPDATE arcade.arcade_machines
	SET state = $3, version = version + 1, updated_at = now()
	WHERE id = ANY($1) AND state = $2 AND game_center_id IS NULL
`

// TransitionCustody moves every id from one custody state to another in a
// single transaction, recording one custody_transfers row per machine.
// Destroyed machines are included so a burn can follow a dismantle; installed
// machines never match.
func (s *Store) TransitionCustody(ctx context.Context, ids []string, from, to arcade.CustodyState, hash string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, transitionCustodySQL, ids, string(from), string(to))
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() != int64(len(ids)) {
		return arcade.ErrStaleVersion
	}

	var hashArg *string
	if hash != "" {
		hashArg = &hash
	}
	for _, id := range ids {
		if _, err := tx.Exec(ctx, `
			INSERT INTO arcade.custody_transfers (id, arcade_machine_id, from_state, to_state, hash)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), id, string(from), string(to), hashArg); err != nil {
			return translate(err)
		}
	}
	return tx.Commit(ctx)
}
