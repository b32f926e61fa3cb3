// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tasktracker/tasktracker/internal/auth"
	"github.com/tasktracker/tasktracker/internal/metrics"
	"github.com/tasktracker/tasktracker/internal/model"
	"github.com/tasktracker/tasktracker/internal/repository"
)

// Auth service errors.
var (
	ErrUsernameTaken = errors.New("username is already taken")
	// ErrInvalidCredentials is returned for both unknown username and
	// wrong password, so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated covers every token failure: absent, malformed,
	// expired, or a subject that no longer resolves to a user.
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrUsernameRequired = errors.New("username must not be empty")
	ErrUsernameTooLong  = errors.New("username exceeds maximum length")
	ErrPasswordTooShort = errors.New("password is too short")
)

const (
	maxUsernameLength = 50
	minPasswordLength = 8
)

// CredentialStore is the user persistence capability the auth service
// consumes. It must enforce username uniqueness at the storage layer;
// the service cannot hold a lock between its pre-check and the insert.
type CredentialStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// IdentityCache caches resolved identities keyed by username.
// Implemented by *cache.Cache.
type IdentityCache interface {
	GetIdentity(ctx context.Context, username string) (*model.Identity, error)
	SetIdentity(ctx context.Context, id *model.Identity) error
}

// AuthService orchestrates registration, login and per-request identity
// resolution. It holds no mutable state of its own.
type AuthService struct {
	store     CredentialStore
	codec     *auth.TokenCodec
	cache     IdentityCache
	logger    *slog.Logger
	metrics   metrics.Recorder
	dummyHash string
}

// NewAuthService creates a new AuthService. The identity cache is
// optional; pass nil to resolve every subject against the store.
func NewAuthService(store CredentialStore, codec *auth.TokenCodec, identityCache IdentityCache, logger *slog.Logger, recorder metrics.Recorder) *AuthService {
	// Hash a throwaway password once so the unknown-user login path can
	// burn the same verification cost as the known-user path.
	dummyHash, err := auth.HashPassword("tasktracker-dummy-password")
	if err != nil {
		// rand.Read failing is unrecoverable anyway
		panic(fmt.Sprintf("hash dummy password: %v", err))
	}

	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return &AuthService{
		store:     store,
		codec:     codec,
		cache:     identityCache,
		logger:    logger,
		metrics:   recorder,
		dummyHash: dummyHash,
	}
}

// Register creates a new user account. The username must be unused
// (case-sensitive exact match). A concurrent registration race resolves
// at the store's uniqueness constraint and surfaces as ErrUsernameTaken.
func (s *AuthService) Register(ctx context.Context, username, password string, profileImage *string) (*model.User, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if len(username) > maxUsernameLength {
		return nil, ErrUsernameTooLong
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	_, err := s.store.GetUserByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Username:     username,
		PasswordHash: hash,
		ProfileImage: profileImage,
		CreatedAt:    time.Now(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			// Lost the race between lookup and insert.
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	s.metrics.IncUserRegistered()

	return user, nil
}

// Login verifies credentials and issues a signed token with the subject
// set to the username. Unknown user and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Equalize timing with the wrong-password path.
			auth.VerifyPassword(password, s.dummyHash)
			s.metrics.IncLoginFailure()
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("lookup username: %w", err)
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		s.metrics.IncLoginFailure()
		return "", ErrInvalidCredentials
	}

	token, err := s.codec.Issue(user.Username)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("login successful",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	s.metrics.IncLoginSuccess()

	return token, nil
}

// ResolveIdentity verifies a bearer token and resolves its subject to a
// live user. Every token failure collapses to ErrUnauthenticated; the
// specific reason is logged but never returned. Store failures propagate
// as wrapped internal errors.
func (s *AuthService) ResolveIdentity(ctx context.Context, token string) (*model.Identity, error) {
	subject, err := s.codec.Verify(token)
	if err != nil {
		s.logger.Warn("token rejected", slog.String("reason", err.Error()))
		s.metrics.IncTokenRejected()
		return nil, ErrUnauthenticated
	}

	// The signature and expiry are checked above on every call; only the
	// subject lookup is cacheable.
	if s.cache != nil {
		if cached, _ := s.cache.GetIdentity(ctx, subject); cached != nil {
			s.metrics.IncIdentityCacheHit()
			return cached, nil
		}
		s.metrics.IncIdentityCacheMiss()
	}

	user, err := s.store.GetUserByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Warn("token subject no longer exists", slog.String("subject", subject))
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("lookup token subject: %w", err)
	}

	identity := &model.Identity{
		UserID:       user.ID,
		Username:     user.Username,
		ProfileImage: user.ProfileImage,
	}

	if s.cache != nil {
		if err := s.cache.SetIdentity(ctx, identity); err != nil {
			s.logger.Warn("failed to cache identity", slog.String("error", err.Error()))
		}
	}

	return identity, nil
}
