package users

import (
	"context"
	"errors"
	"fmt"
	"testing"

	githubsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Verify(password, hash string) bool    { return hash == "hashed:"+password }

type sequentialIDs struct {
	next int
}

func (p *sequentialIDs) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("user-%d", p.next), nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(githubsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&Account{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Hasher:     plainHasher{},
		IDProvider: &sequentialIDs{},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func register(t *testing.T, service *Service) Account {
	t.Helper()
	account, err := service.Register(context.Background(), RegisterRequest{
		Username:   "alice",
		Email:      "alice@example.com",
		Password:   "s3cret-pass",
		Role:       RoleManager,
		Department: "assembly",
	})
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	return account
}

func TestRegisterAndLogin(t *testing.T) {
	service := newTestService(t)
	account := register(t, service)

	if account.Role != RoleManager || !account.IsActive {
		t.Fatalf("unexpected account: %+v", account)
	}

	loggedIn, err := service.Login(context.Background(), "alice", "s3cret-pass")
	if err != nil {
		t.Fatalf("failed to login: %v", err)
	}
	if loggedIn.ID != account.ID {
		t.Fatalf("expected account %s, got %s", account.ID, loggedIn.ID)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	service := newTestService(t)
	register(t, service)

	if _, err := service.Login(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := service.Login(context.Background(), "nobody", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	service := newTestService(t)
	register(t, service)

	_, err := service.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "other@example.com", Password: "another-pass",
	})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username error, got %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	service := newTestService(t)
	_, err := service.Register(context.Background(), RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: "short",
	})
	if !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected invalid account error, got %v", err)
	}
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	service := newTestService(t)
	account := register(t, service)

	if err := service.db.Model(&Account{}).Where("id = ?", account.ID).
		Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to disable account: %v", err)
	}
	if _, err := service.Login(context.Background(), "alice", "s3cret-pass"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected disabled account error, got %v", err)
	}
}
