// Package custody moves arcade machines between the in-world and wallet
// custody states. The on-chain leg is confirmed elsewhere; this package only
// records that a transfer has started.
package custody

import (
	"context"
	"log/slog"

	"akiverse/internal/arcade"
)

// StateStore applies a custody transition to every id or to none of them.
// A machine whose state is not from makes the whole call fail with
// arcade.ErrStaleVersion.
type StateStore interface {
	TransitionCustody(ctx context.Context, ids []string, from, to arcade.CustodyState, hash string) error
}

type Transfer struct {
	store StateStore
	log   *slog.Logger
}

func New(store StateStore, logger *slog.Logger) *Transfer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transfer{store: store, log: logger}
}

func (t *Transfer) Withdraw(ctx context.Context, machines []arcade.ArcadeMachine) error {
	return t.move(ctx, machines, arcade.CustodyInAkiverse, arcade.CustodyMovingToWallet, "")
}

func (t *Transfer) Deposit(ctx context.Context, hash string, machines []arcade.ArcadeMachine) error {
	return t.move(ctx, machines, arcade.CustodyInWallet, arcade.CustodyMovingToAkiverse, hash)
}

// Burn retires a dismantled machine from whatever state it was destroyed in.
func (t *Transfer) Burn(ctx context.Context, machine arcade.ArcadeMachine) error {
	return t.move(ctx, []arcade.ArcadeMachine{machine}, machine.State, arcade.CustodyBurned, "")
}

func (t *Transfer) move(ctx context.Context, machines []arcade.ArcadeMachine, from, to arcade.CustodyState, hash string) error {
	if len(machines) == 0 {
		return nil
	}
	ids := make([]string, len(machines))
	for i, m := range machines {
		ids[i] = m.ID
	}
	if err := t.store.TransitionCustody(ctx, ids, from, to, hash); err != nil {
		return err
	}
	t.log.Debug("custody transition recorded", "from", from, "to", to, "count", len(ids))
	return nil
}
