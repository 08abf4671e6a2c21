package transfer

import "github.com/golang-jwt/jwt/v5"

type SessionClaims struct {
	Subject string `json:"sub_name"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Password string `json:"password"`
}
