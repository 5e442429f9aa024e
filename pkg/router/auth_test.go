package router

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

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject, role string, method jwt.SigningMethod) string {
	t.Helper()

	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, "admin")

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
		wantUserID uint64
		wantAdmin  bool
	}{
		{
			name:       "no token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage token",
			header:     "Bearer not-a-jwt",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong secret",
			header:     "Bearer " + signToken(t, "other", "7", "", jwt.SigningMethodHS256),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong signing method",
			header:     "Bearer " + signToken(t, testSecret, "7", "", jwt.SigningMethodHS384),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "non numeric subject",
			header:     "Bearer " + signToken(t, testSecret, "bob@example.com", "", jwt.SigningMethodHS256),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "header token",
			header:     "Bearer " + signToken(t, testSecret, "7", "", jwt.SigningMethodHS256),
			wantStatus: http.StatusOK,
			wantUserID: 7,
		},
		{
			name:       "cookie fallback",
			cookie:     signToken(t, testSecret, "8", "admin", jwt.SigningMethodHS256),
			wantStatus: http.StatusOK,
			wantUserID: 8,
			wantAdmin:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: tokenCookie, Value: tt.cookie})
			}

			var (
				gotUserID uint64
				gotAdmin  bool
			)
			h := mw.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				auth, ok := GetAuthFromContext(r.Context())
				require.True(t, ok)
				gotUserID = auth.GetUserID()
				gotAdmin = auth.GetIsAdmin()
				w.WriteHeader(http.StatusOK)
			}))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantUserID, gotUserID)
			assert.Equal(t, tt.wantAdmin, gotAdmin)
		})
	}
}

func TestAdminMiddleware(t *testing.T) {
	chain := wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), []Middleware{NewAuthMiddleware(testSecret, "admin"), NewAdminMiddleware()})

	tests := []struct {
		name       string
		role       string
		wantStatus int
	}{
		{name: "admin", role: "admin", wantStatus: http.StatusOK},
		{name: "customer", role: "customer", wantStatus: http.StatusForbidden},
		{name: "no role", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/admin/stats", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "1", tt.role, jwt.SigningMethodHS256))

			rr := httptest.NewRecorder()
			chain.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)

			if tt.wantStatus != http.StatusOK {
				var resp struct {
					Code  int    `json:"code"`
					Error string `json:"error"`
				}
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantStatus, resp.Code)
				assert.Equal(t, ErrNotAdmin.Error(), resp.Error)
			}
		})
	}
}
