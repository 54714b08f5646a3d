package model

import (
	"time"

	"finedu-reconciliation/internal/domain"
)

// User is the identity collaborator's view of a customer. Read-only for the
// reconciliation engine: the identity service owns the rows.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewUser(id, email, displayName string) (*User, error) {
	if id == "" || email == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{ID: id, Email: email, DisplayName: displayName, CreatedAt: time.Now()}, nil
}
