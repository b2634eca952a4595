package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"akiverse/internal/api"
	"akiverse/internal/arcade"
	"akiverse/internal/config"
	"akiverse/internal/custody"
	"akiverse/internal/memstore"
	"akiverse/internal/metrics"
)

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ms := memstore.New(memstore.WithClock(clock))
	svc := arcade.NewService(ms, custody.New(ms, nil), arcade.DefaultCatalog(), arcade.StaticFees{
		Installation:   decimal.NewFromInt(10),
		DismantleTeras: decimal.NewFromInt(100),
		DismantleAkv:   decimal.NewFromInt(1),
	}, nil, arcade.WithClock(clock), arcade.WithLocation(time.UTC))
	reg := prometheus.NewRegistry()
	handler := api.New(config.APIConfig{RequestTimeout: 5 * time.Second}, nil, svc, nil, metrics.New(reg), reg).Handler()

	owner := "player"
	gco := "gco"
	ms.PutUser(arcade.User{ID: owner, TerasBalance: decimal.NewFromInt(500)})
	ms.PutUser(arcade.User{ID: gco})
	ms.PutGameCenter(arcade.GameCenter{ID: "gc", UserID: &gco, Size: arcade.GameCenterSmall, PlacementAllowed: true, State: arcade.CustodyInAkiverse})
	ms.PutArcadeMachine(arcade.ArcadeMachine{
		ID: "am", UserID: &owner, State: arcade.CustodyInAkiverse, Game: "BUBBLE_ATTACK",
		Energy: 0, MaxEnergy: 10, UpperCabinetSubCategory: "PLAIN", LowerCabinetSubCategory: "PLAIN", Version: 1,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, ms
}

func TestClientLifecycleRoundTrip(t *testing.T) {
	srv, ms := newTestServer(t)
	c := NewClient(srv.URL+"/", Session{UserID: "player"})
	ctx := context.Background()

	installed, err := c.Install(ctx, "am", "gc", true)
	require.NoError(t, err)
	require.NotNil(t, installed.ArcadeMachine.GameCenterID)
	require.Equal(t, "gc", *installed.ArcadeMachine.GameCenterID)
	require.True(t, installed.ArcadeMachine.AutoRenewLease)

	updated, err := c.Update(ctx, "am", false)
	require.NoError(t, err)
	require.False(t, updated.ArcadeMachine.AutoRenewLease)

	playable, err := c.Playable(ctx, "BUBBLE_ATTACK", 5, 0)
	require.NoError(t, err)
	require.Len(t, playable, 1)
	require.Equal(t, "am", playable[0].ID)

	uninstalled, err := c.Uninstall(ctx, "am")
	require.NoError(t, err)
	require.Nil(t, uninstalled.ArcadeMachine.GameCenterID)

	withdrawn, err := c.Withdraw(ctx, "am")
	require.NoError(t, err)
	require.Len(t, withdrawn.ArcadeMachines, 1)
	require.Equal(t, arcade.CustodyMovingToWallet, withdrawn.ArcadeMachines[0].State)

	m, ok := ms.ArcadeMachine("am")
	require.True(t, ok)
	m.State = arcade.CustodyInWallet
	ms.PutArcadeMachine(m)

	deposited, err := c.Deposit(ctx, "0xabc", "am")
	require.NoError(t, err)
	require.Equal(t, arcade.CustodyMovingToAkiverse, deposited.ArcadeMachines[0].State)
}

func TestClientDismantle(t *testing.T) {
	srv, ms := newTestServer(t)
	c := NewClient(srv.URL, Session{UserID: "player"})
	m, ok := ms.ArcadeMachine("am")
	require.True(t, ok)
	m.Energy = m.MaxEnergy
	ms.PutArcadeMachine(m)

	out, err := c.Dismantle(context.Background(), "am", arcade.CurrencyTeras)
	require.NoError(t, err)
	require.Equal(t, arcade.PartRom, out.Rom.Category)
	require.Equal(t, "player", out.UpperCabinet.UserID)

	u, found := ms.User("player")
	require.True(t, found)
	require.Equal(t, "400", u.TerasBalance.String())
}

func TestClientReturnsStructuredErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	_, err := NewClient(srv.URL, Session{UserID: "stranger"}).Uninstall(ctx, "am")
	require.Error(t, err)
	require.True(t, IsAPIError(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Equal(t, string(arcade.KindPermissionDenied), apiErr.Kind)

	_, err = NewClient(srv.URL, Session{UserID: "player"}).Uninstall(ctx, "am")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	require.Equal(t, string(arcade.KindIllegalState), apiErr.Kind)

	_, err = NewClient(srv.URL, Session{}).Withdraw(ctx, "am")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Empty(t, apiErr.Kind)
}

func TestClientSendsIdentityHeaders(t *testing.T) {
	var gotUser, gotWallet string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get(api.HeaderUserID)
		gotWallet = r.Header.Get(api.HeaderWalletAddress)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"arcade_machines":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Session{UserID: "player", WalletAddress: "0xwallet"})
	out, err := c.Playable(context.Background(), "BUBBLE_ATTACK", 3, 1)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Equal(t, "player", gotUser)
	require.Equal(t, "0xwallet", gotWallet)
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, Session{UserID: "player"}).Withdraw(context.Background(), "am")
	require.Error(t, err)
	require.False(t, IsAPIError(err))
}
