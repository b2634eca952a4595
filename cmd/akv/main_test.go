package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"akiverse/internal/arcade"
	cl "akiverse/internal/cli"
)

func TestParseSwitch(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "YES": true, "true": true, "1": true, "off": false, "no": false, "0": false} {
		got, err := parseSwitch(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := parseSwitch("maybe")
	require.Error(t, err)
}

func TestTrimAll(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, trimAll([]string{" a ", "", "  ", "b"}))
	require.Empty(t, trimAll(nil))
}

func TestArgOrPromptUsesArgs(t *testing.T) {
	v, err := argOrPrompt([]string{"am", " gc "}, 1, "Game center ID")
	require.NoError(t, err)
	require.Equal(t, "gc", v)

	_, err = argOrPrompt([]string{" "}, 0, "Arcade machine ID")
	require.ErrorContains(t, err, "invalid arcade machine id")
}

func TestPlacement(t *testing.T) {
	gc := "gc"
	pos := 3
	require.Equal(t, "-", placement(arcade.ArcadeMachine{}))
	require.Equal(t, "gc", placement(arcade.ArcadeMachine{GameCenterID: &gc}))
	require.Equal(t, "gc #3", placement(arcade.ArcadeMachine{GameCenterID: &gc, Position: &pos}))
}

func TestAuthedClientPrefersSessionAPI(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, cl.SaveSession(cl.Session{UserID: "player", APIBaseURL: "https://pinned.example.com"}))

	base := "http://localhost:8080"
	root := newRootCmd(&base)
	withdraw, _, err := root.Find([]string{"withdraw"})
	require.NoError(t, err)

	c, err := authedClient(withdraw, &base)
	require.NoError(t, err)
	require.Equal(t, "https://pinned.example.com", c.BaseURL)
	require.Equal(t, "player", c.Session.UserID)

	require.NoError(t, root.PersistentFlags().Set("api", "https://override.example.com/"))
	c, err = authedClient(withdraw, &base)
	require.NoError(t, err)
	require.Equal(t, "https://override.example.com", c.BaseURL)
}

func TestAuthedClientRequiresLogin(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	base := "http://localhost:8080"
	root := newRootCmd(&base)

	_, err := authedClient(root, &base)
	require.ErrorContains(t, err, "login required")
}
