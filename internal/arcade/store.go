package arcade

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the persistence boundary of the service. Reads outside InTx see
// committed state only. Implementations enforce, at the storage level:
//   - (game_center_id, position) is unique, reported as ErrUniqueViolation
//   - balances never go negative, reported as ErrNegativeBalance
//   - versioned writes that match zero rows report ErrStaleVersion
//
// Destroyed arcade machines are invisible to every read.
type Store interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetArcadeMachine(ctx context.Context, id string) (ArcadeMachine, error)
	// GetArcadeMachines returns the machines that exist, in no particular
	// order. Missing ids are silently skipped.
	GetArcadeMachines(ctx context.Context, ids []string) ([]ArcadeMachine, error)
	GetGameCenter(ctx context.Context, id string) (GameCenter, error)
	// InstalledPositions lists the taken slots of a game center, ascending.
	InstalledPositions(ctx context.Context, gameCenterID string) ([]int, error)
	// CountActivePlaySessions counts sessions that are not FINISHED.
	CountActivePlaySessions(ctx context.Context, arcadeMachineID string) (int, error)
	// ListPlayableCandidates runs one ranked pool query. Results are ordered
	// with manager-owned machines last and random order otherwise, capped at
	// q.Limit.
	ListPlayableCandidates(ctx context.Context, q CandidateQuery) ([]Candidate, error)

	// InTx runs fn in one atomic transaction. Any error from fn, or from the
	// commit itself, rolls everything back and is returned.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of a Store transaction.
type Tx interface {
	InstallArcadeMachine(ctx context.Context, in InstallWrite) (ArcadeMachine, error)
	UninstallArcadeMachine(ctx context.Context, id string, version int64) (ArcadeMachine, error)
	SetAutoRenewLease(ctx context.Context, id string, autoRenew bool, version int64) (ArcadeMachine, error)
	DestroyArcadeMachine(ctx context.Context, id string, at time.Time, version int64) (ArcadeMachine, error)
	IncrementBalance(ctx context.Context, userID string, c Currency, amount decimal.Decimal) error
	DecrementBalance(ctx context.Context, userID string, c Currency, amount decimal.Decimal) error
	CreateDismantle(ctx context.Context, d Dismantle) error
	CreateArcadeParts(ctx context.Context, parts []ArcadePart) error
}

type InstallWrite struct {
	ArcadeMachineID string
	GameCenterID    string
	Position        int
	InstalledAt     time.Time
	AutoRenewLease  bool
	Version         int64
}

type CandidateQuery struct {
	Game              string
	PlayerID          string
	ManagerUserID     string
	WindowStart       time.Time
	WindowEnd         time.Time
	DailyMaxPlayCount int
	// Playing selects machines with a READY or PLAYING session created in
	// the window; false selects machines without one.
	Playing bool
	Limit   int
}

type Candidate struct {
	ArcadeMachineID string
	Playing         bool
	ManagerOwned    bool
}

// Custody performs the on-chain facing custody transitions. The service only
// checks preconditions before delegating.
type Custody interface {
	Withdraw(ctx context.Context, machines []ArcadeMachine) error
	Deposit(ctx context.Context, hash string, machines []ArcadeMachine) error
	Burn(ctx context.Context, machine ArcadeMachine) error
}
