package auth

import (
	"github.com/odyssey-erp/accounts/internal/shared"
)

// SessionToken is a signed token together with the claims it carries. It is never
// persisted; logout revokes its ID until natural expiry.
type SessionToken struct {
	Token  string
	Claims shared.Claims
}

// LoginInput is the credential pair submitted at login.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
