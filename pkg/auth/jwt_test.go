package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_IssueAndValidate(t *testing.T) {
	m := NewManager("secret", "signals_service", time.Hour)

	token, err := m.Issue("42")
	require.NoError(t, err)

	owner, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "42", owner)
}

func TestManager_Validate(t *testing.T) {
	m := NewManager("secret", "signals_service", time.Hour)

	expired := NewManager("secret", "signals_service", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Issue("42")
	require.NoError(t, err)

	otherKey, err := NewManager("other", "signals_service", time.Hour).Issue("42")
	require.NoError(t, err)

	otherIssuer, err := NewManager("secret", "someone_else", time.Hour).Issue("42")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "42"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "signals_service"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expiredToken, ErrTokenExpired},
		{"wrong key", otherKey, ErrInvalidToken},
		{"wrong issuer", otherIssuer, ErrInvalidToken},
		{"alg none", noneAlg, ErrInvalidToken},
		{"garbage", "not-a-token", ErrInvalidToken},
		{"no subject", noSubject, ErrMissingOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Validate(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestManager_IssueRequiresOwner(t *testing.T) {
	_, err := NewManager("secret", "", 0).Issue("")
	assert.ErrorIs(t, err, ErrMissingOwner)
}
