package users_test

import (
	"testing"

	"github.com/jrsteele09/go-session-client/sessions"
	"github.com/jrsteele09/go-session-client/users"
	fakeuserrepo "github.com/jrsteele09/go-session-client/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"Passw0rd", true},
		{"short1A", false},
		{"alllowercase1", false},
		{"ALLUPPERCASE1", false},
		{"NoNumbersHere", false},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tt.password)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestNewUserAuthenticate(t *testing.T) {
	u, err := users.NewUser("  Shopper@Example.com ", "Shopper", "Passw0rd!", "seller")
	require.NoError(t, err)
	require.Equal(t, "shopper@example.com", u.Email)
	require.Equal(t, sessions.RoleSeller, u.Role)
	require.NotEqual(t, "Passw0rd!", u.PasswordHash)

	require.True(t, u.Authenticate("Passw0rd!"))
	require.False(t, u.Authenticate("wrong"))

	u.Blocked = true
	require.False(t, u.Authenticate("Passw0rd!"))
}

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()
	u, err := users.NewUser("a@example.com", "A", "Passw0rd!", sessions.RoleUser)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(u))
	require.NotEmpty(t, u.ID)

	got, err := repo.GetByEmail("A@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = repo.GetByID(u.ID)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", got.Email)

	got.Name = "changed"
	again, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	require.Equal(t, "A", again.Name, "callers get copies")

	require.NoError(t, repo.SetLoggedIn("a@example.com", true))
	got, err = repo.GetByID(u.ID)
	require.NoError(t, err)
	require.True(t, got.LoggedIn)

	list, err := repo.List(0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.Delete("a@example.com"))
	_, err = repo.GetByEmail("a@example.com")
	require.ErrorIs(t, err, users.ErrNotFound)
}
