package users

import (
	"errors"
	"strings"
	"time"
)

// Account roles.
const (
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleOperator  = "operator"
	RoleInspector = "inspector"
)

var (
	// ErrInvalidAccount indicates required account fields are missing.
	ErrInvalidAccount = errors.New("users: invalid account")
	// ErrDuplicateUsername indicates the username is already registered.
	ErrDuplicateUsername = errors.New("users: username already taken")
	// ErrInvalidCredentials indicates the username/password pair did not match.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrAccountDisabled indicates the account exists but is deactivated.
	ErrAccountDisabled = errors.New("users: account disabled")
)

// Account is a registered ManufactureFlow user.
type Account struct {
	ID           string    `gorm:"column:id;primaryKey;size:190" json:"id"`
	Username     string    `gorm:"column:username;size:64;not null;uniqueIndex" json:"username"`
	Email        string    `gorm:"column:email;size:320;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;size:190;not null" json:"-"`
	Role         string    `gorm:"column:role;size:32;not null;default:operator" json:"role"`
	FirstName    string    `gorm:"column:first_name;size:190" json:"firstName"`
	LastName     string    `gorm:"column:last_name;size:190" json:"lastName"`
	Department   string    `gorm:"column:department;size:190" json:"department"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName binds accounts to their table.
func (Account) TableName() string {
	return "users"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

func validRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleOperator, RoleInspector:
		return true
	}
	return false
}
