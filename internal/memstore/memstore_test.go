package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"akiverse/internal/arcade"
)

func seeded() *Store {
	s := New()
	s.PutUser(arcade.User{ID: "u", TerasBalance: decimal.NewFromInt(5)})
	owner := "u"
	s.PutArcadeMachine(arcade.ArcadeMachine{ID: "a", UserID: &owner, State: arcade.CustodyInAkiverse, Version: 1})
	s.PutArcadeMachine(arcade.ArcadeMachine{ID: "b", UserID: &owner, State: arcade.CustodyInAkiverse, Version: 1})
	return s
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx arcade.Tx) error {
		if _, err := tx.SetAutoRenewLease(ctx, "a", true, 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	m, _ := s.ArcadeMachine("a")
	require.False(t, m.AutoRenewLease)
	require.Equal(t, int64(1), m.Version)
}

func TestSlotUniquenessCheckedAtCommit(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	err := s.InTx(ctx, func(tx arcade.Tx) error {
		for _, id := range []string{"a", "b"} {
			if _, err := tx.InstallArcadeMachine(ctx, arcade.InstallWrite{
				ArcadeMachineID: id, GameCenterID: "gc", Position: 1, InstalledAt: time.Now(), Version: 1,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.ErrorIs(t, err, arcade.ErrUniqueViolation)
	positions, err := s.InstalledPositions(ctx, "gc")
	require.NoError(t, err)
	require.Empty(t, positions)
}

func TestBalanceNeverNegative(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	err := s.InTx(ctx, func(tx arcade.Tx) error {
		return tx.DecrementBalance(ctx, "u", arcade.CurrencyTeras, decimal.NewFromInt(6))
	})
	require.ErrorIs(t, err, arcade.ErrNegativeBalance)

	err = s.InTx(ctx, func(tx arcade.Tx) error {
		return tx.DecrementBalance(ctx, "ghost", arcade.CurrencyTeras, decimal.NewFromInt(1))
	})
	require.ErrorIs(t, err, arcade.ErrRecordNotFound)

	u, _ := s.User("u")
	require.Equal(t, "5", u.TerasBalance.String())
}

func TestVersionPredicate(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	err := s.InTx(ctx, func(tx arcade.Tx) error {
		_, err := tx.SetAutoRenewLease(ctx, "a", true, 7)
		return err
	})
	require.ErrorIs(t, err, arcade.ErrStaleVersion)
}

func TestDestroyedMachinesAreHidden(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(tx arcade.Tx) error {
		_, err := tx.DestroyArcadeMachine(ctx, "a", time.Now(), 1)
		return err
	}))
	_, err := s.GetArcadeMachine(ctx, "a")
	require.ErrorIs(t, err, arcade.ErrRecordNotFound)

	got, err := s.GetArcadeMachines(ctx, []string{"a", "b", "b"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].ID)
}
