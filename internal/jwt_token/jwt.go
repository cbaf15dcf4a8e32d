// Package jwttoken validates the HMAC-signed access tokens the surrounding
// platform issues. Token issuance lives with the identity provider; the
// registry only extracts requester identity and catchment authority claims.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/middleware/auth"
)

// Claims represents the JWT claims on registry access tokens.
type Claims struct {
	FacilityID string   `json:"facility_id,omitempty"`
	ProviderID string   `json:"provider_id,omitempty"`
	AdminID    string   `json:"admin_id,omitempty"`
	Catchments []string `json:"catchments,omitempty"`
	jwt.RegisteredClaims
}

// JWTService validates access tokens with a shared HMAC key.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey, issuer string) *JWTService {
	return &JWTService{signingKey: []byte(signingKey), issuer: issuer}
}

// GenerateToken issues a token. Production tokens come from the identity
// provider; this is for local development and tests.
func (s *JWTService) GenerateToken(claims Claims, expiresIn time.Duration) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Issuer:    s.issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning middleware claims.
func (s *JWTService) ValidateToken(tokenString string) (*auth.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &auth.Claims{
		FacilityID: claims.FacilityID,
		ProviderID: claims.ProviderID,
		AdminID:    claims.AdminID,
		Catchments: claims.Catchments,
	}, nil
}
