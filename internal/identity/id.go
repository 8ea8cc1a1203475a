// Package identity issues record identifiers shared by the domain services.
package identity

import "github.com/google/uuid"

// UUIDProvider issues UUIDv7 identifiers. The time-ordered prefix keeps
// primary key inserts roughly append-only.
type UUIDProvider struct{}

// NewUUIDProvider constructs a UUIDProvider.
func NewUUIDProvider() *UUIDProvider {
	return &UUIDProvider{}
}

// NewID returns a fresh UUIDv7 string.
func (p *UUIDProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
