package router

import (
	"context"
	"engage/entity"
	"engage/pkg/errutil"
	"engage/pkg/goutil"
	"engage/pkg/httputil"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const tokenCookie = "token"

type contextKey string

const authKey contextKey = "auth"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrNotAdmin     = errors.New("admin only")
)

// Claims are issued by the storefront's auth service. Subject carries the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type authMiddleware struct {
	secret    []byte
	adminRole string
}

// NewAuthMiddleware rejects requests without a valid HS256 token, read from
// the Authorization header or the token cookie.
func NewAuthMiddleware(secret, adminRole string) Middleware {
	return &authMiddleware{
		secret:    []byte(secret),
		adminRole: adminRole,
	}
}

func (m *authMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		auth, err := m.authenticate(r)
		if err != nil {
			log.Ctx(ctx).Warn().Msgf("authenticate failed, err: %v", err)
			httputil.ReturnServerResponse(w, nil, errutil.UnauthorizedError(err))
			return
		}

		ctx = context.WithValue(ctx, authKey, auth)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *authMiddleware) authenticate(r *http.Request) (*entity.AuthContext, error) {
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, ok := goutil.ParseID(claims.Subject)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &entity.AuthContext{
		UserID:  userID,
		IsAdmin: m.adminRole != "" && claims.Role == m.adminRole,
	}, nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}

type adminMiddleware struct{}

// NewAdminMiddleware must run after the auth middleware.
func NewAdminMiddleware() Middleware {
	return new(adminMiddleware)
}

func (m *adminMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, ok := GetAuthFromContext(r.Context())
		if !ok {
			httputil.ReturnServerResponse(w, nil, errutil.UnauthorizedError(ErrMissingToken))
			return
		}
		if !auth.GetIsAdmin() {
			httputil.ReturnServerResponse(w, nil, errutil.ForbiddenError(ErrNotAdmin))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetAuthFromContext(ctx context.Context) (*entity.AuthContext, bool) {
	val := ctx.Value(authKey)
	if auth, ok := val.(*entity.AuthContext); ok {
		return auth, true
	}
	return nil, false
}
