package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleClient = "client"
	RoleVet    = "vet"
	RoleAdmin  = "admin"
)

func IsValidRole(role string) bool {
	return role == RoleClient || role == RoleVet || role == RoleAdmin
}

// Requester is the authenticated caller as seen by the services: a user
// id plus one of the three roles. Token issuance lives outside this
// service; we only parse and trust tokens signed with the shared secret.
type Requester struct {
	ID   string
	Role string
}

type Manager struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (m *Manager) NewAccessToken(userID, role string) (string, error) {
	if !IsValidRole(role) {
		return "", errors.New("unknown role")
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
}

func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if !IsValidRole(claims.Role) {
		return nil, errors.New("unknown role")
	}
	return claims, nil
}
