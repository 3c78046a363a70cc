package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clearlabel/transparency/internal/config"
	"github.com/clearlabel/transparency/internal/models"
	"github.com/clearlabel/transparency/internal/security"
	"github.com/clearlabel/transparency/internal/store"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const otpDispatchTimeout = 30 * time.Second

// SignupInput carries the fields required to register.
type SignupInput struct {
	Fullname string
	Email    string
	Password string
}

// Session is a freshly issued token and the account it belongs to.
type Session struct {
	Token string
	User  *models.User
}

// AuthService registers accounts and issues session tokens.
type AuthService struct {
	users    store.UserStore
	otp      *OTPService
	jwt      config.JWTConfig
	now      func() time.Time
	dispatch func(func())
}

// NewAuthService constructs an AuthService. otp may be nil, in which case signup sends no code.
func NewAuthService(users store.UserStore, otp *OTPService, jwtCfg config.JWTConfig) *AuthService {
	return &AuthService{
		users:    users,
		otp:      otp,
		jwt:      jwtCfg,
		now:      time.Now,
		dispatch: func(fn func()) { go fn() },
	}
}

// Signup creates an unverified account, starts OTP delivery in the background and
// returns a session for the new account.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	fullname := strings.TrimSpace(in.Fullname)
	email := strings.TrimSpace(in.Email)
	if fullname == "" || email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: fullname, email and password are required", ErrValidation)
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	user := &models.User{
		ID:       uuid.NewString(),
		Fullname: fullname,
		Email:    email,
		Password: hash,
	}
	if errCreate := s.users.CreateUser(ctx, user); errCreate != nil {
		if errors.Is(errCreate, store.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("signup: %w", errCreate)
	}

	s.sendInitialOTP(email)

	token, err := s.issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}

func (s *AuthService) sendInitialOTP(email string) {
	if s.otp == nil {
		return
	}
	dispatch := s.dispatch
	if dispatch == nil {
		dispatch = func(fn func()) { go fn() }
	}
	dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), otpDispatchTimeout)
		defer cancel()
		if errSend := s.otp.Send(ctx, email); errSend != nil {
			log.WithError(errSend).WithField("email", email).Warn("signup: otp dispatch failed")
		}
	})
}

// Login checks credentials and returns a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	ok, err := security.CheckPassword(user.Password, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	token, err := s.issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}

// Authenticate resolves the account behind a session token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := security.ParseUserToken(s.jwt.Secret, token)
	if err != nil {
		return nil, err
	}
	return s.Me(ctx, claims.UserID)
}

// Me loads an account by id.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *AuthService) issue(userID string) (string, error) {
	clock := s.now
	if clock == nil {
		clock = time.Now
	}
	token, err := security.IssueUserToken(s.jwt.Secret, userID, s.jwt.Expiry, clock())
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}
