// api/models/auth_models.go
package models

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/Annany2002/nebula-insights/internal/domain"
)

// --- Auth Request/Response Structs ---

// LoginRequest carries the id token issued by the identity provider
type LoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// LoginResponse defines the structure for the login response body
type LoginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
}

// --- JWT Claims ---

// CustomClaims includes standard claims and our custom userID claim for JWT
type CustomClaims struct {
	UserID int64 `json:"userID"`
	jwt.RegisteredClaims
}
