package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civreg/pkg/domain-errors"
)

func TestValidateToken(t *testing.T) {
	svc := NewJWTService("test-signing-key", "civreg-test")

	t.Run("round trip preserves claims", func(t *testing.T) {
		token, err := svc.GenerateToken(Claims{
			FacilityID: "f-100",
			Catchments: []string{"10", "1020"},
		}, time.Hour)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "f-100", claims.FacilityID)
		assert.Equal(t, []string{"10", "1020"}, claims.Catchments)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.GenerateToken(Claims{FacilityID: "f-100"}, -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewJWTService("different-key", "civreg-test")
		token, err := other.GenerateToken(Claims{AdminID: "a-1"}, time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
