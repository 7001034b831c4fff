package integration

import (
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret = "integration-secret-0123456789abcdef"
	testIssuer = "autobrr"
)

// TestClaims holds the configurable claims for generating test JWT tokens.
type TestClaims struct {
	Username string
	Extra    map[string]any
}

// AdminClaims returns TestClaims for the autobrr admin user.
func AdminClaims() TestClaims {
	return TestClaims{Username: "admin"}
}

// tokenIssuer signs HS256 tokens with the secret the BFF is configured with.
type tokenIssuer struct {
	secret []byte
	issuer string
}

func newTokenIssuer() *tokenIssuer {
	return &tokenIssuer{secret: []byte(testSecret), issuer: testIssuer}
}

// GenerateToken creates a valid, signed JWT token with the given claims.
func (ti *tokenIssuer) GenerateToken(claims TestClaims) string {
	now := time.Now()
	return ti.sign(claims, now.Add(-time.Minute), now.Add(time.Hour))
}

// GenerateExpiredToken creates a JWT token that expired in the past.
func (ti *tokenIssuer) GenerateExpiredToken(claims TestClaims) string {
	now := time.Now()
	return ti.sign(claims, now.Add(-2*time.Hour), now.Add(-time.Hour))
}

func (ti *tokenIssuer) sign(claims TestClaims, issuedAt, expires time.Time) string {
	mapClaims := jwt.MapClaims{
		"iss":      ti.issuer,
		"sub":      claims.Username,
		"username": claims.Username,
		"iat":      jwt.NewNumericDate(issuedAt),
		"exp":      jwt.NewNumericDate(expires),
	}
	maps.Copy(mapClaims, claims.Extra)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(ti.secret)
	if err != nil {
		panic("sign JWT: " + err.Error())
	}
	return signed
}
