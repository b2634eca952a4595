package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"akiverse/internal/arcade"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres arcade.Store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const machineColumns = `id, user_id, owner_wallet_address, state, game, energy, max_energy,
	fever_spark_remain, game_center_id, position, installed_at, auto_renew_lease,
	accumulator_sub_category, upper_cabinet_sub_category, lower_cabinet_sub_category,
	destroyed_at, version, created_at, updated_at`

func scanMachine(row pgx.Row) (arcade.ArcadeMachine, error) {
	var (
		m     arcade.ArcadeMachine
		state string
	)
	err := row.Scan(
		&m.ID, &m.UserID, &m.OwnerWalletAddress, &state, &m.Game, &m.Energy, &m.MaxEnergy,
		&m.FeverSparkRemain, &m.GameCenterID, &m.Position, &m.InstalledAt, &m.AutoRenewLease,
		&m.AccumulatorSubCategory, &m.UpperCabinetSubCategory, &m.LowerCabinetSubCategory,
		&m.DestroyedAt, &m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	m.State = arcade.CustodyState(state)
	return m, err
}

func (s *Store) GetUser(ctx context.Context, id string) (arcade.User, error) {
	var (
		u           arcade.User
		teras, akvS string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, wallet_address, teras_balance::text, akv_balance::text, created_at, updated_at
		FROM arcade.users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.WalletAddress, &teras, &akvS, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, translate(err)
	}
	if u.TerasBalance, err = decimal.NewFromString(teras); err != nil {
		return u, fmt.Errorf("parse teras balance: %w", err)
	}
	if u.AkvBalance, err = decimal.NewFromString(akvS); err != nil {
		return u, fmt.Errorf("parse akv balance: %w", err)
	}
	return u, nil
}

func (s *Store) GetArcadeMachine(ctx context.Context, id string) (arcade.ArcadeMachine, error) {
	m, err := scanMachine(s.pool.QueryRow(ctx, `
		SELECT `+machineColumns+`
		FROM arcade.arcade_machines
		WHERE id = $1 AND destroyed_at IS NULL
	`, id))
	return m, translate(err)
}

func (s *Store) GetArcadeMachines(ctx context.Context, ids []string) ([]arcade.ArcadeMachine, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+machineColumns+`
		FROM arcade.arcade_machines
		WHERE id = ANY($1) AND destroyed_at IS NULL
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]arcade.ArcadeMachine, 0, len(ids))
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetGameCenter(ctx context.Context, id string) (arcade.GameCenter, error) {
	var (
		gc          arcade.GameCenter
		size, state string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, size, placement_allowed, state, created_at, updated_at
		FROM arcade.game_centers
		WHERE id = $1
	`, id).Scan(&gc.ID, &gc.UserID, &gc.Name, &size, &gc.PlacementAllowed, &state, &gc.CreatedAt, &gc.UpdatedAt)
	gc.Size = arcade.GameCenterSize(size)
	gc.State = arcade.CustodyState(state)
	return gc, translate(err)
}

func (s *Store) InstalledPositions(ctx context.Context, gameCenterID string) ([]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT position
		FROM arcade.arcade_machines
		WHERE game_center_id = $1 AND position IS NOT NULL AND destroyed_at IS NULL
		ORDER BY position ASC
	`, gameCenterID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func (s *Store) CountActivePlaySessions(ctx context.Context, arcadeMachineID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM arcade.play_sessions
		WHERE arcade_machine_id = $1 AND state <> 'FINISHED'
	`, arcadeMachineID).Scan(&n)
	return n, err
}

// candidateSQL ranks one pool. %s is EXISTS for the playing pool and
// NOT EXISTS for the idle one.
const candidateSQL = `
	SELECT am.id, (am.user_id IS NOT DISTINCT FROM $3) AS manager_owned
	FROM arcade.arcade_machines am
	WHERE am.game = $1
	  AND am.state = 'IN_AKIVERSE'
	  AND am.destroyed_at IS NULL
	  AND (am.game_center_id IS NOT NULL OR am.user_id = $2 OR am.user_id = $3)
	  AND (am.fever_spark_remain IS NULL OR am.fever_spark_remain > 0)
	  AND %s (
		SELECT 1 FROM arcade.play_sessions ps
		WHERE ps.arcade_machine_id = am.id
		  AND ps.state IN ('READY', 'PLAYING')
		  AND ps.created_at >= $4 AND ps.created_at < $5
	  )
	  AND (am.user_id = $2 OR (
		SELECT COUNT(1)
		FROM arcade.plays p
		JOIN arcade.play_sessions ps ON ps.id = p.play_session_id
		WHERE ps.player_id = $2
		  AND ps.arcade_machine_id = am.id
		  AND p.ended_at IS NOT NULL
		  AND p.created_at >= $4 AND p.created_at < $5
	  ) < $6)
	ORDER BY manager_owned ASC, random()
	LIMIT $7
`

var (
	playingCandidateSQL = fmt.Sprintf(candidateSQL, "EXISTS")
	idleCandidateSQL    = fmt.Sprintf(candidateSQL, "NOT EXISTS")
)

func (s *Store) ListPlayableCandidates(ctx context.Context, q arcade.CandidateQuery) ([]arcade.Candidate, error) {
	query := idleCandidateSQL
	if q.Playing {
		query = playingCandidateSQL
	}
	rows, err := s.pool.Query(ctx, query,
		q.Game, q.PlayerID, q.ManagerUserID, q.WindowStart, q.WindowEnd, q.DailyMaxPlayCount, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arcade.Candidate
	for rows.Next() {
		c := arcade.Candidate{Playing: q.Playing}
		if err := rows.Scan(&c.ArcadeMachineID, &c.ManagerOwned); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) InTx(ctx context.Context, fn func(tx arcade.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&storeTx{q: tx}); err != nil {
		return err
	}
	// Deferred constraints fire here.
	if err := tx.Commit(ctx); err != nil {
		return translate(err)
	}
	return nil
}

type storeTx struct {
	q querier
}

func (t *storeTx) InstallArcadeMachine(ctx context.Context, in arcade.InstallWrite) (arcade.ArcadeMachine, error) {
	m, err := scanMachine(t.q.QueryRow(ctx, `
		UPDATE arcade.arcade_machines
		SET game_center_id = $2, position = $3, installed_at = $4, auto_renew_lease = $5,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $6 AND destroyed_at IS NULL
		RETURNING `+machineColumns,
		in.ArcadeMachineID, in.GameCenterID, in.Position, in.InstalledAt, in.AutoRenewLease, in.Version))
	return m, versioned(err)
}

func (t *storeTx) UninstallArcadeMachine(ctx context.Context, id string, version int64) (arcade.ArcadeMachine, error) {
	m, err := scanMachine(t.q.QueryRow(ctx, `
		UPDATE arcade.arcade_machines
		SET game_center_id = NULL, position = NULL, installed_at = NULL,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND destroyed_at IS NULL
		RETURNING `+machineColumns, id, version))
	return m, versioned(err)
}

func (t *storeTx) SetAutoRenewLease(ctx context.Context, id string, autoRenew bool, version int64) (arcade.ArcadeMachine, error) {
	m, err := scanMachine(t.q.QueryRow(ctx, `
		UPDATE arcade.arcade_machines
		SET auto_renew_lease = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3 AND destroyed_at IS NULL
		RETURNING `+machineColumns, id, autoRenew, version))
	return m, versioned(err)
}

func (t *storeTx) DestroyArcadeMachine(ctx context.Context, id string, at time.Time, version int64) (arcade.ArcadeMachine, error) {
	m, err := scanMachine(t.q.QueryRow(ctx, `
		UPDATE arcade.arcade_machines
		SET destroyed_at = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3 AND destroyed_at IS NULL
		RETURNING `+machineColumns, id, at, version))
	return m, versioned(err)
}

func balanceColumn(c arcade.Currency) (string, error) {
	switch c {
	case arcade.CurrencyTeras:
		return "teras_balance", nil
	case arcade.CurrencyAkv:
		return "akv_balance", nil
	default:
		return "", fmt.Errorf("unknown currency %q", c)
	}
}

func (t *storeTx) adjustBalance(ctx context.Context, userID string, c arcade.Currency, delta decimal.Decimal) error {
	col, err := balanceColumn(c)
	if err != nil {
		return err
	}
	cmd, err := t.q.Exec(ctx, `
		UPDATE arcade.users
		SET `+col+` = `+col+` + $2::numeric, updated_at = now()
		WHERE id = $1
	`, userID, delta.String())
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return arcade.ErrRecordNotFound
	}
	return nil
}

func (t *storeTx) IncrementBalance(ctx context.Context, userID string, c arcade.Currency, amount decimal.Decimal) error {
	return t.adjustBalance(ctx, userID, c, amount)
}

func (t *storeTx) DecrementBalance(ctx context.Context, userID string, c arcade.Currency, amount decimal.Decimal) error {
	return t.adjustBalance(ctx, userID, c, amount.Neg())
}

func (t *storeTx) CreateDismantle(ctx context.Context, d arcade.Dismantle) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO arcade.dismantles (id, arcade_machine_id, user_id, currency_type, fee, fever_spark_remain, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
	`, d.ID, d.ArcadeMachineID, d.UserID, string(d.CurrencyType), d.Fee.String(), d.FeverSparkRemain, d.CreatedAt)
	return translate(err)
}

func (t *storeTx) CreateArcadeParts(ctx context.Context, parts []arcade.ArcadePart) error {
	for _, p := range parts {
		if _, err := t.q.Exec(ctx, `
			INSERT INTO arcade.arcade_parts (id, category, sub_category, user_id, state, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, string(p.Category), p.SubCategory, p.UserID, string(p.State), p.CreatedAt); err != nil {
			return translate(err)
		}
	}
	return nil
}
