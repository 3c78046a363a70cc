package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// State is the lifecycle position of a client session.
type State string

const (
	StateAnonymous           State = "anonymous"
	StatePendingVerification State = "pending-verification"
	StateAuthenticated       State = "authenticated"
)

// Route names a screen of the client.
type Route string

const (
	RouteHome          Route = "/"
	RouteLogin         Route = "/login"
	RouteSignup        Route = "/signup"
	RouteVerifyOTP     Route = "/verify-otp"
	RouteDashboard     Route = "/dashboard"
	RouteBasic         Route = "/basic"
	RouteProductDetail Route = "/product-detail"
	RouteReview        Route = "/review"
	RouteView          Route = "/view"
)

var publicRoutes = map[Route]bool{
	RouteLogin:     true,
	RouteSignup:    true,
	RouteVerifyOTP: true,
}

type sessionData struct {
	Token     string `json:"token,omitempty"`
	UserData  *User  `json:"userData,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
}

// Session is the persisted authentication state of the client. The zero
// path keeps the session in memory only.
type Session struct {
	mu   sync.RWMutex
	path string
	data sessionData
}

// LoadSession reads the session file at path. A missing file yields an anonymous session.
func LoadSession(path string) (*Session, error) {
	s := &Session{path: path}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	if errDecode := json.Unmarshal(raw, &s.data); errDecode != nil {
		return nil, fmt.Errorf("decode session: %w", errDecode)
	}
	return s, nil
}

// State reports the lifecycle state. A token wins over a pending email.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.data.Token != "":
		return StateAuthenticated
	case s.data.UserEmail != "":
		return StatePendingVerification
	default:
		return StateAnonymous
	}
}

// Token returns the bearer token, if any.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Token
}

// User returns the logged in user, if any.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.UserData == nil {
		return nil
	}
	u := *s.data.UserData
	return &u
}

// PendingEmail returns the address awaiting OTP verification.
func (s *Session) PendingEmail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.UserEmail
}

// SignedUp records the address that must be verified next.
func (s *Session) SignedUp(email string) error {
	return s.update(func(d *sessionData) {
		*d = sessionData{UserEmail: email}
	})
}

// Verified leaves the pending state. The server issues no token on
// verification, so the session becomes anonymous until the next login.
func (s *Session) Verified() error {
	return s.update(func(d *sessionData) {
		d.UserEmail = ""
	})
}

// LoggedIn stores the token and user and drops any pending email.
func (s *Session) LoggedIn(token string, user User) error {
	return s.update(func(d *sessionData) {
		*d = sessionData{Token: token, UserData: &user}
	})
}

// Logout clears everything.
func (s *Session) Logout() error {
	return s.update(func(d *sessionData) {
		*d = sessionData{}
	})
}

// Gate returns the route to show when route is requested.
func (s *Session) Gate(route Route) Route {
	if publicRoutes[route] {
		return route
	}
	switch s.State() {
	case StateAuthenticated:
		if route == RouteHome {
			return RouteDashboard
		}
		return route
	case StatePendingVerification:
		return RouteVerifyOTP
	default:
		return RouteLogin
	}
}

func (s *Session) update(fn func(d *sessionData)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.data)
	return s.save()
}

func (s *Session) save() error {
	if s.path == "" {
		return nil
	}
	if s.data == (sessionData{}) {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session: %w", err)
		}
		return nil
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if errDir := os.MkdirAll(filepath.Dir(s.path), 0o700); errDir != nil {
		return fmt.Errorf("create session dir: %w", errDir)
	}
	tmp := s.path + ".tmp"
	if errWrite := os.WriteFile(tmp, raw, 0o600); errWrite != nil {
		return fmt.Errorf("write session: %w", errWrite)
	}
	if errRename := os.Rename(tmp, s.path); errRename != nil {
		return fmt.Errorf("replace session: %w", errRename)
	}
	return nil
}
