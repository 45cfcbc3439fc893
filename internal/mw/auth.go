package mw

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"handoff-backend/internal/access"
)

const (
	actorKey  = "handoff.actor"
	roleAdmin = "admin"
)

// TokenManager signs and validates HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	issuer string
}

// NewTokenManager creates a token manager.
func NewTokenManager(secret, issuer string) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: issuer}
}

type actorClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Issue creates a signed token naming actorID as subject.
func (m *TokenManager) Issue(actorID string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := actorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if admin {
		claims.Role = roleAdmin
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns the actor it names.
func (m *TokenManager) Validate(tokenString string) (access.Actor, error) {
	if tokenString == "" {
		return access.Actor{}, fmt.Errorf("token is empty")
	}
	token, err := jwt.ParseWithClaims(tokenString, &actorClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return access.Actor{}, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*actorClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return access.Actor{}, fmt.Errorf("invalid token claims")
	}
	return access.Actor{ID: claims.Subject, Admin: claims.Role == roleAdmin}, nil
}

// Auth rejects requests without a valid bearer token and stores the actor
// on the gin context.
func Auth(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "bearer token required"})
			return
		}
		actor, err := tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "invalid bearer token"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the actor stored by Auth.
func ActorFrom(c *gin.Context) access.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(access.Actor); ok {
			return actor
		}
	}
	return access.Actor{}
}
