package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the payload of the access-token JWT.
//
// It lives in models because services, middleware and ws all read it and
// none of them may import each other.
type TokenClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
