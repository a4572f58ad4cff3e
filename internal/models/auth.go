package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FeedClaims is the payload of a feed bearer token. Subject carries the service login.
type FeedClaims struct {
	jwt.RegisteredClaims
}

// FeedToken is a minted bearer token.
type FeedToken struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expiresAt"`
}
