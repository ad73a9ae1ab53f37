package interfaces

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigflow/domain"
)

func TestCallerID(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	id, err := auth.CallerID(token(t, testSecret, "alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	id, err = auth.CallerID(token(t, testSecret, strings.Repeat("u", domain.MaxIdentityLen)))
	require.NoError(t, err)
	assert.Len(t, id, domain.MaxIdentityLen)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", token(t, "other-secret", "alice")},
		{"empty subject", token(t, testSecret, "")},
		{"subject too long", token(t, testSecret, strings.Repeat("u", domain.MaxIdentityLen+1))},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.CallerID(tt.token)
			assert.Error(t, err)
		})
	}

	_, err = auth.CallerID(token(t, testSecret, strings.Repeat("u", domain.MaxIdentityLen+1)))
	assert.True(t, errors.Is(err, jwt.ErrTokenInvalidClaims))
}

func TestLongSubjectIsUnauthorized(t *testing.T) {
	api := newAPI(t)

	code, env := api.do(t, http.MethodPost, "/api/jobs", strings.Repeat("u", domain.MaxIdentityLen+1), map[string]interface{}{
		"title": "Logo", "description": "d", "budget": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid credentials", env.Error)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/mine", nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
