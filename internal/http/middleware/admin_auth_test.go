package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func operatorToken(t *testing.T, secret string, ttl time.Duration) string {
	return sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
}

func serveAdmin(secret, authorization string) (*httptest.ResponseRecorder, *jwt.RegisteredClaims) {
	var seen *jwt.RegisteredClaims
	h := AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := OperatorClaims(r.Context()); ok {
			seen = &claims
		}
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/send-message", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestAdminJWTAcceptsValidToken(t *testing.T) {
	rec, claims := serveAdmin("secret", "Bearer "+operatorToken(t, "secret", 5*time.Minute))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "operator", claims.Subject)
}

func TestAdminJWTAcceptsLowercaseScheme(t *testing.T) {
	rec, _ := serveAdmin("secret", "bearer "+operatorToken(t, "secret", time.Minute))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminJWTRejects(t *testing.T) {
	noExpiry := sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{Subject: "operator"})
	hs512 := sign(t, jwt.SigningMethodHS512, []byte("secret"), jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})

	cases := []struct {
		name          string
		secret        string
		authorization string
		detail        string
	}{
		{"no secret configured", "", "Bearer " + operatorToken(t, "", time.Minute), "admin auth disabled"},
		{"missing header", "secret", "", "missing authorization header"},
		{"wrong scheme", "secret", "Basic abc", "missing authorization header"},
		{"wrong key", "secret", "Bearer " + operatorToken(t, "other", time.Minute), "invalid token"},
		{"expired", "secret", "Bearer " + operatorToken(t, "secret", -time.Minute), "invalid token"},
		{"no expiry", "secret", "Bearer " + noExpiry, "invalid token"},
		{"other algorithm", "secret", "Bearer " + hs512, "invalid token"},
		{"garbage", "secret", "Bearer not.a.jwt", "invalid token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, claims := serveAdmin(tc.secret, tc.authorization)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, claims)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.detail, body["detail"])
		})
	}
}
