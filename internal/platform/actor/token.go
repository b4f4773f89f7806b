package actor

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token fails signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims carried by actor tokens.
type Claims struct {
	OrgID int64  `json:"org_id"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenProvider issues and parses HS256 actor tokens for CLI and service use.
type TokenProvider struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewTokenProvider builds a provider with the given signing secret and token
// lifetime.
func NewTokenProvider(secret string, issuer, audience string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{secret: []byte(secret), issuer: issuer, audience: audience, ttl: ttl}
}

// Issue signs a token for the actor scoped to the organization.
func (p *TokenProvider) Issue(a Actor, orgID int64, now time.Time) (string, error) {
	claims := Claims{
		OrgID: orgID,
		Role:  string(a.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(a.ID, 10),
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Parse validates the token and returns the actor and organization it names.
func (p *TokenProvider) Parse(tokenString string) (Actor, int64, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	}, jwt.WithIssuer(p.issuer), jwt.WithAudience(p.audience), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Actor{}, 0, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Actor{}, 0, ErrInvalidToken
	}
	return Actor{ID: userID, Role: Role(claims.Role)}, claims.OrgID, nil
}
