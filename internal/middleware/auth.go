package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the verified caller: who they are, which organization is
// active, and their role in it.
type Identity struct {
	UserID         string
	OrganizationID string
	Role           string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Authenticator resolves bearer JWTs into an Identity. Tokens listed under
// blacklist:<token> in Redis are rejected; with no Redis client the
// blacklist is skipped.
type Authenticator struct {
	secret []byte
	redis  *redis.Client
	logger *zap.Logger
}

func NewAuthenticator(secret string, redisClient *redis.Client, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		redis:  redisClient,
		logger: logger,
	}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}
		token := parts[1]

		if a.blacklisted(r.Context(), token) {
			http.Error(w, "Token revoked", http.StatusUnauthorized)
			return
		}

		id, err := a.validateToken(token)
		if err != nil {
			a.logger.Debug("rejected bearer token", zap.Error(err))
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (a *Authenticator) blacklisted(ctx context.Context, token string) bool {
	if a.redis == nil {
		return false
	}
	n, err := a.redis.Exists(ctx, fmt.Sprintf("blacklist:%s", token)).Result()
	if err != nil {
		a.logger.Warn("token blacklist lookup failed", zap.Error(err))
		return false
	}
	return n > 0
}

func (a *Authenticator) validateToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, errors.New("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("unexpected claims type")
	}

	id := Identity{
		UserID:         claimString(claims, "user_id"),
		OrganizationID: claimString(claims, "org_id"),
		Role:           claimString(claims, "role"),
	}
	if id.UserID == "" || id.OrganizationID == "" {
		return Identity{}, errors.New("token is missing user_id or org_id")
	}
	return id, nil
}

func claimString(claims jwt.MapClaims, name string) string {
	v, ok := claims[name]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// RequireRole lets the request through only when the caller's role in the
// active organization is one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !slices.Contains(roles, id.Role) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
