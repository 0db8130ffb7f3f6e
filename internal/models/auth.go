package models

import "github.com/golang-jwt/jwt/v5"

// AuthClaims is the access token payload.
type AuthClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
