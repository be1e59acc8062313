package account

import (
	"time"

	"github.com/odyssey-erp/accounts/internal/shared"
)

// Account represents a registered user.
type Account struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Role         shared.Role `json:"role"`
	PostalCode   *string     `json:"postalCode,omitempty"`
	Region       *string     `json:"region,omitempty"`
	Locality     *string     `json:"locality,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// UpdateInput carries the fields an admin may change.
type UpdateInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Stats summarises the account base.
type Stats struct {
	Total   int64 `json:"totalUsers"`
	Admins  int64 `json:"adminUsers"`
	Members int64 `json:"regularUsers"`
	Recent  int64 `json:"recentUsers"`
}

// BootstrapAdmin describes the administrator created on first start.
type BootstrapAdmin struct {
	Name     string
	Email    string
	Password string
}
