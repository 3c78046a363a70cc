package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")

	s, err := LoadSession(path)
	require.NoError(t, err)
	require.Equal(t, StateAnonymous, s.State())

	require.NoError(t, s.SignedUp("ada@example.com"))
	require.Equal(t, StatePendingVerification, s.State())

	reloaded, err := LoadSession(path)
	require.NoError(t, err)
	require.Equal(t, StatePendingVerification, reloaded.State())
	require.Equal(t, "ada@example.com", reloaded.PendingEmail())

	require.NoError(t, reloaded.Verified())
	require.Equal(t, StateAnonymous, reloaded.State())

	require.NoError(t, reloaded.LoggedIn("tok", User{ID: "u1", Email: "ada@example.com"}))
	require.Equal(t, StateAuthenticated, reloaded.State())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"token":"tok","userData":{"id":"u1","fullname":"","email":"ada@example.com","isVerified":false}}`, string(raw))

	again, err := LoadSession(path)
	require.NoError(t, err)
	require.Equal(t, "tok", again.Token())
	require.Equal(t, "u1", again.User().ID)

	require.NoError(t, again.Logout())
	require.Equal(t, StateAnonymous, again.State())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestSession_Gate(t *testing.T) {
	s, err := LoadSession("")
	require.NoError(t, err)

	require.Equal(t, RouteLogin, s.Gate(RouteDashboard))
	require.Equal(t, RouteLogin, s.Gate(RouteHome))
	require.Equal(t, RouteSignup, s.Gate(RouteSignup))

	require.NoError(t, s.SignedUp("ada@example.com"))
	require.Equal(t, RouteVerifyOTP, s.Gate(RouteBasic))
	require.Equal(t, RouteLogin, s.Gate(RouteLogin))

	require.NoError(t, s.LoggedIn("tok", User{ID: "u1"}))
	require.Equal(t, RouteDashboard, s.Gate(RouteHome))
	require.Equal(t, RouteReview, s.Gate(RouteReview))
}

func TestSession_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadSession(path)
	require.Error(t, err)
}
