package arcade_test

import (
	"context"
	"errors"
	"fmt"
	mathrand "math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"akiverse/internal/arcade"
	"akiverse/internal/custody"
	"akiverse/internal/memstore"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

const managerID = "manager"

var testFees = arcade.StaticFees{
	Installation:   decimal.NewFromInt(10),
	DismantleTeras: decimal.NewFromInt(100),
	DismantleAkv:   decimal.NewFromInt(5),
}

// seqRand replays draws in order and wraps around.
type seqRand struct {
	mu    sync.Mutex
	draws []int
	next  int
}

func (r *seqRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.draws) == 0 {
		return 0
	}
	v := r.draws[r.next%len(r.draws)]
	r.next++
	return v % n
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memstore.Store
	svc   *arcade.Service
}

type fixtureConfig struct {
	store   arcade.Store
	custody arcade.Custody
	opts    []arcade.Option
}

type fixtureOption func(*fixtureConfig, *memstore.Store)

func withStore(wrap func(*memstore.Store) arcade.Store) fixtureOption {
	return func(c *fixtureConfig, ms *memstore.Store) { c.store = wrap(ms) }
}

func withCustody(wrap func(*memstore.Store) arcade.Custody) fixtureOption {
	return func(c *fixtureConfig, ms *memstore.Store) { c.custody = wrap(ms) }
}

func withServiceOptions(opts ...arcade.Option) fixtureOption {
	return func(c *fixtureConfig, _ *memstore.Store) { c.opts = append(c.opts, opts...) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	ms := memstore.New(
		memstore.WithRand(mathrand.New(mathrand.NewSource(7))),
		memstore.WithClock(clock),
	)
	cfg := fixtureConfig{
		store:   ms,
		custody: custody.New(ms, nil),
		opts: []arcade.Option{
			arcade.WithManagerUserID(managerID),
			arcade.WithLocation(time.UTC),
			arcade.WithClock(clock),
			arcade.WithRand(mathrand.New(mathrand.NewSource(11))),
		},
	}
	for _, opt := range opts {
		opt(&cfg, ms)
	}
	svc := arcade.NewService(cfg.store, cfg.custody, arcade.DefaultCatalog(), testFees, nil, cfg.opts...)
	return &fixture{t: t, ctx: context.Background(), store: ms, svc: svc}
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func actor(id string) arcade.Actor { return arcade.Actor{UserID: id} }

func (f *fixture) user(id string, teras, akv int64) {
	f.store.PutUser(arcade.User{
		ID:           id,
		TerasBalance: decimal.NewFromInt(teras),
		AkvBalance:   decimal.NewFromInt(akv),
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	})
}

func (f *fixture) machine(id, owner string, mutate ...func(*arcade.ArcadeMachine)) arcade.ArcadeMachine {
	m := arcade.ArcadeMachine{
		ID:                      id,
		State:                   arcade.CustodyInAkiverse,
		Game:                    "BUBBLE_ATTACK",
		Energy:                  0,
		MaxEnergy:               10,
		AccumulatorSubCategory:  "HOKUTO_100_LX",
		UpperCabinetSubCategory: "PLAIN",
		LowerCabinetSubCategory: "PLAIN",
		Version:                 1,
		CreatedAt:               testNow,
		UpdatedAt:               testNow,
	}
	if owner != "" {
		m.UserID = strPtr(owner)
	}
	for _, fn := range mutate {
		fn(&m)
	}
	f.store.PutArcadeMachine(m)
	return m
}

func (f *fixture) gameCenter(id, owner string, size arcade.GameCenterSize, mutate ...func(*arcade.GameCenter)) arcade.GameCenter {
	gc := arcade.GameCenter{
		ID:               id,
		Name:             "center " + id,
		Size:             size,
		PlacementAllowed: true,
		State:            arcade.CustodyInAkiverse,
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	}
	if owner != "" {
		gc.UserID = strPtr(owner)
	}
	for _, fn := range mutate {
		fn(&gc)
	}
	f.store.PutGameCenter(gc)
	return gc
}

// installedAt seeds m as already sitting in gameCenterID at position.
func installedAt(gameCenterID string, position int) func(*arcade.ArcadeMachine) {
	return func(m *arcade.ArcadeMachine) {
		at := testNow.Add(-time.Hour)
		m.GameCenterID = strPtr(gameCenterID)
		m.Position = intPtr(position)
		m.InstalledAt = &at
	}
}

func (f *fixture) fill(gameCenterID string, positions ...int) {
	for _, p := range positions {
		f.machine(fmt.Sprintf("%s-filler-%d", gameCenterID, p), "filler-owner", installedAt(gameCenterID, p))
	}
}

func (f *fixture) storedMachine(id string) arcade.ArcadeMachine {
	f.t.Helper()
	m, ok := f.store.ArcadeMachine(id)
	require.True(f.t, ok, "arcade machine %s missing", id)
	return m
}

func (f *fixture) teras(id string) string {
	f.t.Helper()
	u, ok := f.store.User(id)
	require.True(f.t, ok, "user %s missing", id)
	return u.TerasBalance.String()
}

func (f *fixture) akv(id string) string {
	f.t.Helper()
	u, ok := f.store.User(id)
	require.True(f.t, ok, "user %s missing", id)
	return u.AkvBalance.String()
}

func requireKind(t *testing.T, want arcade.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, arcade.KindOf(err), "err: %v", err)
}

// barrierStore holds every transaction until n of them have started, so
// concurrent callers all read state before any of them commits.
type barrierStore struct {
	*memstore.Store
	ready sync.WaitGroup
}

func newBarrierStore(ms *memstore.Store, n int) *barrierStore {
	b := &barrierStore{Store: ms}
	b.ready.Add(n)
	return b
}

func (b *barrierStore) InTx(ctx context.Context, fn func(tx arcade.Tx) error) error {
	b.ready.Done()
	b.ready.Wait()
	return b.Store.InTx(ctx, fn)
}

// racingStore lets another writer bump machineID right before each
// transaction.
type racingStore struct {
	*memstore.Store
	machineID string
}

func (r *racingStore) InTx(ctx context.Context, fn func(tx arcade.Tx) error) error {
	if m, ok := r.Store.ArcadeMachine(r.machineID); ok {
		m.Version++
		r.Store.PutArcadeMachine(m)
	}
	return r.Store.InTx(ctx, fn)
}

var errBurn = errors.New("chain unavailable")

type failingBurn struct {
	arcade.Custody
}

func (failingBurn) Burn(context.Context, arcade.ArcadeMachine) error { return errBurn }
