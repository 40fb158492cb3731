package models

import "github.com/golang-jwt/jwt/v5"

// UserRole identifies the caller's role carried in access tokens.
type UserRole string

// Roles recognised by the API.
const (
	RoleAdmin  UserRole = "ADMIN"
	RoleViewer UserRole = "VIEWER"
)

// JWTClaims represents the JWT payload for access tokens issued by the identity provider.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}
