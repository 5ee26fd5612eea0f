// File: internal/auth/model.go
package auth

import "medibook_backend/internal/identity"

// RegisterRequest defines the structure for registration requests.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,basicemail"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=patient doctor"`
}

// LoginRequest defines the structure for login requests.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is the body of every session broker endpoint. Token material
// never appears in it.
type AuthResponse struct {
	Message string         `json:"message,omitempty"`
	User    *identity.User `json:"user,omitempty"`
}
