package sessions_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-session-client/sessions"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	require.Equal(t, sessions.RoleAdmin, sessions.ParseRole("admin"))
	require.Equal(t, sessions.RoleSeller, sessions.ParseRole(" SELLER "))
	require.Equal(t, sessions.RoleUser, sessions.ParseRole("USER"))
	require.Equal(t, sessions.RoleUser, sessions.ParseRole(""))
	require.Equal(t, sessions.RoleUser, sessions.ParseRole("superuser"))
}

func TestSessionExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	var nilSession *sessions.Session
	require.True(t, nilSession.Expired(now))

	s := &sessions.Session{UserID: "u1"}
	require.False(t, s.Expired(now), "no expiry means not expired")

	s.ExpiresAt = now.Add(time.Minute)
	require.False(t, s.Expired(now))
	require.True(t, s.Expired(now.Add(time.Minute)))
}

func TestStore(t *testing.T) {
	store := sessions.NewStore()
	require.Equal(t, sessions.State{}, store.State())

	updates, unsubscribe := store.Subscribe()
	defer unsubscribe()
	require.False(t, (<-updates).IsAuthenticated)

	store.SetUser(sessions.Session{UserID: "u1", Email: "jane@example.com", Role: sessions.RoleSeller})
	state := <-updates
	require.True(t, state.IsAuthenticated)
	require.Equal(t, "u1", state.User.UserID)

	// Callers get copies.
	state.User.Email = "changed@example.com"
	require.Equal(t, "jane@example.com", store.State().User.Email)

	store.Clear()
	state = <-updates
	require.Nil(t, state.User)
	require.False(t, state.IsAuthenticated)
}

func TestStoreSlowSubscriberSeesLatest(t *testing.T) {
	store := sessions.NewStore()
	updates, unsubscribe := store.Subscribe()

	store.SetUser(sessions.Session{UserID: "u1"})
	store.SetUser(sessions.Session{UserID: "u2"})
	store.Clear()
	store.SetUser(sessions.Session{UserID: "u3"})

	state := <-updates
	require.Equal(t, "u3", state.User.UserID)

	unsubscribe()
	unsubscribe()
	_, open := <-updates
	require.False(t, open)
}
