package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PasswordHasher abstracts password hashing for account credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// IDProvider issues identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database   *gorm.DB
	Hasher     PasswordHasher
	IDProvider IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service manages account registration and credential login.
type Service struct {
	db         *gorm.DB
	hasher     PasswordHasher
	idProvider IDProvider
	clock      func() time.Time
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database handle is required")
	}
	if cfg.Hasher == nil {
		return nil, fmt.Errorf("users: password hasher is required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: id provider is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		hasher:     cfg.Hasher,
		idProvider: cfg.IDProvider,
		clock:      clock,
		logger:     logger,
	}, nil
}

// RegisterRequest carries the fields required to create an account.
type RegisterRequest struct {
	Username   string
	Email      string
	Password   string
	Role       string
	FirstName  string
	LastName   string
	Department string
}

// Register creates a new active account with a hashed password.
func (s *Service) Register(ctx context.Context, request RegisterRequest) (Account, error) {
	username := normalize(request.Username)
	if username == "" || normalize(request.Email) == "" {
		return Account{}, fmt.Errorf("%w: username and email are required", ErrInvalidAccount)
	}
	if len(request.Password) < 8 {
		return Account{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidAccount)
	}
	role := request.Role
	if role == "" {
		role = RoleOperator
	}
	if !validRole(role) {
		return Account{}, fmt.Errorf("%w: unknown role %q", ErrInvalidAccount, role)
	}

	var existing Account
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&existing).Error
	if err == nil {
		return Account{}, ErrDuplicateUsername
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, err
	}

	hash, err := s.hasher.Hash(request.Password)
	if err != nil {
		return Account{}, err
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:           id,
		Username:     username,
		Email:        normalize(request.Email),
		PasswordHash: hash,
		Role:         role,
		FirstName:    normalize(request.FirstName),
		LastName:     normalize(request.LastName),
		Department:   normalize(request.Department),
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return Account{}, err
	}
	s.logger.Info("account registered",
		zap.String("user_id", account.ID),
		zap.String("username", account.Username))
	return account, nil
}

// Login verifies the credential pair and returns the matching account.
// Unknown usernames and bad passwords both map to ErrInvalidCredentials so
// callers cannot distinguish them.
func (s *Service) Login(ctx context.Context, username, password string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("username = ?", normalize(username)).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if !s.hasher.Verify(password, account.PasswordHash) {
		return Account{}, ErrInvalidCredentials
	}
	if !account.IsActive {
		return Account{}, ErrAccountDisabled
	}
	return account, nil
}

// Get fetches an account by id.
func (s *Service) Get(ctx context.Context, userID string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}
