package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sweety-ai/sweety-chat/internal/metrics"
	"github.com/sweety-ai/sweety-chat/internal/model"
	"github.com/sweety-ai/sweety-chat/internal/store"
	"github.com/sweety-ai/sweety-chat/internal/validate"
)

// UserService handles signup, login and session identity lookups.
type UserService struct {
	users          store.Users
	minPasswordLen int
	hashCost       int
	log            zerolog.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

// UserOption customizes a UserService.
type UserOption func(*UserService)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) UserOption {
	return func(s *UserService) { s.hashCost = cost }
}

func NewUserService(users store.Users, minPasswordLen int, log zerolog.Logger, opts ...UserOption) *UserService {
	s := &UserService{
		users:          users,
		minPasswordLen: minPasswordLen,
		hashCost:       bcrypt.DefaultCost,
		log:            log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates an active account. Username and email are trimmed and
// must be unique; a concurrent duplicate surfaces as model.ConflictError.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validate.Signup(username, email, password, s.minPasswordLen); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "invalid").Inc()
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "error").Inc()
		return nil, err
	}

	u, err := s.users.Create(ctx, &model.User{
		UserID:       uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Active:       true,
		CreationTime: time.Now().UTC(),
	})
	switch {
	case model.IsConflictError(err):
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "conflict").Inc()
		return nil, err
	case err != nil:
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "error").Inc()
		s.log.Error().Stack().Err(err).Str("username", username).Msg("create user failed")
		return nil, err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("signup", "ok").Inc()
	s.log.Info().Str("user_id", u.UserID).Str("username", u.Username).Msg("user registered")
	return u, nil
}

// Authenticate resolves login as username or email and verifies password.
// Every credential failure is model.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	login = strings.TrimSpace(login)
	if err := validate.Login(login, password); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		return nil, err
	}

	u, err := s.users.GetByLogin(ctx, login)
	if errors.Is(err, model.ErrNotFound) {
		// Spend the same bcrypt work as a real account.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		metrics.AuthAttemptsTotal.WithLabelValues("login", "denied").Inc()
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		s.log.Error().Stack().Err(err).Msg("lookup user failed")
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil || !u.Active {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "denied").Inc()
		return nil, model.ErrInvalidCredentials
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "ok").Inc()
	return u, nil
}

// CurrentUser returns the active user bound to a session, or nil when the
// session is anonymous or the account is gone.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, nil
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, nil
	}
	return u, nil
}

func (s *UserService) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.hashCost)
		if err != nil {
			s.log.Error().Err(err).Msg("generate dummy hash")
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
