package arcade_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"akiverse/internal/arcade"
)

func (f *fixture) liveSession(id, machineID string, at time.Time, state arcade.SessionState) {
	f.store.PutPlaySession(arcade.PlaySession{
		ID:              id,
		ArcadeMachineID: machineID,
		PlayerID:        "someone-else",
		State:           state,
		CreatedAt:       at,
	})
}

// plays records n completed plays by player on machineID at the given time.
func (f *fixture) plays(player, machineID string, n int, at time.Time) {
	sessionID := fmt.Sprintf("ps-%s-%s-%d", player, machineID, at.Unix())
	f.store.PutPlaySession(arcade.PlaySession{
		ID:              sessionID,
		ArcadeMachineID: machineID,
		PlayerID:        player,
		State:           arcade.SessionFinished,
		CreatedAt:       at,
	})
	for i := 0; i < n; i++ {
		ended := at.Add(time.Minute)
		f.store.PutPlay(arcade.Play{
			ID:            fmt.Sprintf("%s-play-%d", sessionID, i),
			PlaySessionID: sessionID,
			CreatedAt:     at,
			EndedAt:       &ended,
		})
	}
}

func ids(machines []arcade.ArcadeMachine) []string {
	out := make([]string, len(machines))
	for i, m := range machines {
		out[i] = m.ID
	}
	return out
}

func countPrefix(ids []string, prefix string) int {
	n := 0
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			n++
		}
	}
	return n
}

func TestListPlayableRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	p := actor("player")

	_, err := f.svc.ListPlayableAndRandomize(f.ctx, p, "NOT_A_GAME", 5, 1)
	requireKind(t, arcade.KindInvalidArgument, err)

	_, err = f.svc.ListPlayableAndRandomize(f.ctx, p, "BUBBLE_ATTACK", 3, 3)
	requireKind(t, arcade.KindInvalidArgument, err)

	_, err = f.svc.ListPlayableAndRandomize(f.ctx, p, "BUBBLE_ATTACK", 3, -1)
	requireKind(t, arcade.KindInvalidArgument, err)
}

func TestListPlayableMixesPlayingAndIdle(t *testing.T) {
	f := newFixture(t)
	f.gameCenter("gc", "gco", arcade.GameCenterLarge)
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("live-%d", i)
		f.machine(id, "owner", installedAt("gc", i))
		f.liveSession("ps-"+id, id, testNow.Add(-time.Hour), arcade.SessionPlaying)
	}
	for i := 1; i <= 12; i++ {
		f.machine(fmt.Sprintf("idle-%d", i), "owner", installedAt("gc", 10+i))
	}

	got, err := f.svc.ListPlayableAndRandomize(f.ctx, actor("player"), "BUBBLE_ATTACK", 10, 1)
	require.NoError(t, err)
	require.Len(t, got, 10)
	picked := ids(got)
	require.Equal(t, 1, countPrefix(picked, "live-"))
	require.Equal(t, 9, countPrefix(picked, "idle-"))
}

func TestListPlayableReshufflesPickedOrder(t *testing.T) {
	// Every draw is 0, so the Fisher-Yates pass rotates the picked list
	// [live, idle, idle] left by one and the playing machine lands last.
	f := newFixture(t, withServiceOptions(arcade.WithRand(&seqRand{draws: []int{0}})))
	f.gameCenter("gc", "gco", arcade.GameCenterLarge)
	f.machine("live", "owner", installedAt("gc", 1))
	f.liveSession("ps-live", "live", testNow.Add(-time.Hour), arcade.SessionPlaying)
	f.machine("idle-1", "owner", installedAt("gc", 2))
	f.machine("idle-2", "owner", installedAt("gc", 3))

	got, err := f.svc.ListPlayableAndRandomize(f.ctx, actor("player"), "BUBBLE_ATTACK", 3, 1)
	require.NoError(t, err)
	picked := ids(got)
	require.Len(t, picked, 3)
	require.Equal(t, "live", picked[2])
	require.ElementsMatch(t, []string{"idle-1", "idle-2"}, picked[:2])
}

func TestListPlayableTreatsReadyAsPlayingAndIgnoresYesterday(t *testing.T) {
	f := newFixture(t)
	f.gameCenter("gc", "gco", arcade.GameCenterLarge)
	f.machine("ready", "owner", installedAt("gc", 1))
	f.liveSession("ps-ready", "ready", testNow.Add(-time.Minute), arcade.SessionReady)
	f.machine("stale", "owner", installedAt("gc", 2))
	f.liveSession("ps-stale", "stale", testNow.Add(-24*time.Hour), arcade.SessionPlaying)

	// With no playing quota only machines without a live session today are
	// eligible.
	got, err := f.svc.ListPlayableAndRandomize(f.ctx, actor("player"), "BUBBLE_ATTACK", 5, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"stale"}, ids(got))
}

func TestListPlayableCandidateUniverse(t *testing.T) {
	f := newFixture(t)
	f.gameCenter("gc", "gco", arcade.GameCenterLarge)
	f.machine("installed", "owner", installedAt("gc", 1))
	f.machine("mine", "player")
	f.machine("managers", managerID)
	f.machine("loose", "owner")
	f.machine("other-game", "owner", installedAt("gc", 2), func(m *arcade.ArcadeMachine) { m.Game = "YUMMY_JUMP" })
	f.machine("exhausted", "owner", installedAt("gc", 3), func(m *arcade.ArcadeMachine) { m.FeverSparkRemain = intPtr(0) })
	f.machine("fevered", "owner", installedAt("gc", 4), func(m *arcade.ArcadeMachine) { m.FeverSparkRemain = intPtr(1) })
	f.machine("in-wallet", "player", func(m *arcade.ArcadeMachine) { m.State = arcade.CustodyInWallet })
	f.machine("destroyed", "owner", installedAt("gc", 5), func(m *arcade.ArcadeMachine) {
		at := testNow.Add(-time.Hour)
		m.DestroyedAt = &at
	})

	got, err := f.svc.ListPlayableAndRandomize(f.ctx, actor("player"), "BUBBLE_ATTACK", 20, 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"installed", "mine", "managers", "fevered"}, ids(got))
}

func TestListPlayableDailyCapWaivedForOwner(t *testing.T) {
	f := newFixture(t)
	f.gameCenter("gc", "gco", arcade.GameCenterLarge)
	f.machine("capped", "owner", installedAt("gc", 1))
	f.machine("below-cap", "owner", installedAt("gc", 2))
	f.machine("own", "player", installedAt("gc", 3))
	f.machine("yesterday", "owner", installedAt("gc", 4))

	today := testNow.Add(-2 * time.Hour)
	f.plays("player", "capped", 10, today)
	f.plays("player", "below-cap", 9, today)
	f.plays("player", "own", 25, today)
	f.plays("player", "yesterday", 10, testNow.Add(-24*time.Hour))

	got, err := f.svc.ListPlayableAndRandomize(f.ctx, actor("player"), "BUBBLE_ATTACK", 10, 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"below-cap", "own", "yesterday"}, ids(got))

	// The cap is per player: someone else still sees the capped machine.
	got, err = f.svc.ListPlayableAndRandomize(f.ctx, actor("other-player"), "BUBBLE_ATTACK", 10, 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"capped", "below-cap", "own", "yesterday"}, ids(got))
}

func TestListPlayableDailyCapAppliesToPlayingPool(t *testing.T) {
	f := newFixture(t)
	f.gameCenter("gc", "gco", arcade.GameCenterLarge)
	f.machine("capped-live", "owner", installedAt("gc", 1))
	f.machine("own-live", "player", installedAt("gc", 2))
	f.machine("live", "owner", installedAt("gc", 3))
	f.machine("idle", "owner", installedAt("gc", 4))
	for _, id := range []string{"capped-live", "own-live", "live"} {
		f.liveSession("ps-"+id, id, testNow.Add(-time.Hour), arcade.SessionPlaying)
	}

	today := testNow.Add(-2 * time.Hour)
	f.plays("player", "capped-live", 10, today)
	f.plays("player", "own-live", 25, today)

	got, err := f.svc.ListPlayableAndRandomize(f.ctx, actor("player"), "BUBBLE_ATTACK", 5, 3)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"own-live", "live", "idle"}, ids(got))

	got, err = f.svc.ListPlayableAndRandomize(f.ctx, actor("other-player"), "BUBBLE_ATTACK", 5, 3)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"capped-live", "own-live", "live", "idle"}, ids(got))
}

func TestListPlayableDayWindowFollowsLocation(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	// 01:00 JST on the 15th; the JST day began at 15:00 UTC on the 14th.
	now := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)
	f := newFixture(t, withServiceOptions(
		arcade.WithLocation(jst),
		arcade.WithClock(func() time.Time { return now }),
	))
	f.gameCenter("gc", "gco", arcade.GameCenterLarge)
	f.machine("am", "owner", installedAt("gc", 1))
	f.plays("player", "am", 10, time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC))

	got, err := f.svc.ListPlayableAndRandomize(f.ctx, actor("player"), "BUBBLE_ATTACK", 3, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"am"}, ids(got))

	f.plays("player", "am", 10, time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC))
	got, err = f.svc.ListPlayableAndRandomize(f.ctx, actor("player"), "BUBBLE_ATTACK", 3, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestListPlayableUsesManagerMachinesLast(t *testing.T) {
	f := newFixture(t)
	f.gameCenter("gc", "gco", arcade.GameCenterLarge)
	f.machine("player-a", "owner", installedAt("gc", 1))
	f.machine("player-b", "owner", installedAt("gc", 2))
	for i := 1; i <= 6; i++ {
		f.machine(fmt.Sprintf("manager-%d", i), managerID, installedAt("gc", 10+i))
	}

	for range 5 {
		got, err := f.svc.ListPlayableAndRandomize(f.ctx, actor("player"), "BUBBLE_ATTACK", 4, 0)
		require.NoError(t, err)
		picked := ids(got)
		require.Len(t, picked, 4)
		require.Contains(t, picked, "player-a")
		require.Contains(t, picked, "player-b")
		require.Equal(t, 2, countPrefix(picked, "manager-"))
	}
}

func TestListPlayableEmpty(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.ListPlayableAndRandomize(f.ctx, actor("player"), "CYBER_PINBALL", 5, 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}
