package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims are the access token claims carried on authenticated requests.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
