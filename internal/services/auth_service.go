package services

import (
	"context"
	"errors"
	"strings"
	"time"

	medbridge_errors "medbridge/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService verifies access tokens minted by the external identity
// provider. The subject claim is the provider's opaque user id.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret)}
}

// ErrTokenExpired is returned for well-signed tokens past their expiry, so
// clients know to refresh with the identity provider instead of signing in.
var ErrTokenExpired = medbridge_errors.Wrap(medbridge_errors.ErrUnauthorized, "token expired", nil)

type AccessClaims struct {
	UserID string `json:"sub"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return AccessClaims{}, medbridge_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, medbridge_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return AccessClaims{}, ErrTokenExpired
	}
	if err != nil {
		return AccessClaims{}, medbridge_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return AccessClaims{}, medbridge_errors.ErrUnauthorized
	}

	return *claims, nil
}

// IssueToken signs a token the same way the identity provider does. Only the
// dev seeding command and tests use it.
func (s *AuthService) IssueToken(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, medbridge_errors.ErrInvalidInput), errors.Is(err, medbridge_errors.ErrInvalidPair):
		return 400
	case errors.Is(err, medbridge_errors.ErrUnauthorized):
		return 401
	case errors.Is(err, medbridge_errors.ErrForbidden):
		return 403
	case errors.Is(err, medbridge_errors.ErrNotFound):
		return 404
	case errors.Is(err, medbridge_errors.ErrConflict), errors.Is(err, medbridge_errors.ErrInvalidState):
		return 409
	case errors.Is(err, medbridge_errors.ErrRoleMismatch):
		return 422
	case errors.Is(err, medbridge_errors.ErrRateLimited):
		return 429
	case errors.Is(err, medbridge_errors.ErrDependency):
		return 502
	default:
		return 500
	}
}

// Message returns the user-facing message for err, hiding internals.
func Message(err error) string {
	var typed *medbridge_errors.Error
	if errors.As(err, &typed) && typed.Message != "" {
		return typed.Message
	}
	if HTTPStatus(err) == 500 {
		return "internal server error"
	}
	return err.Error()
}

type ctxKey string

var userIDKey ctxKey = "user_id"

func WithUserContext(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
