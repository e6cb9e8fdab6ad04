package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dentexa/clinic-scheduling/internal/clinic"
)

const actorKey contextKey = "actor"

// ActorMiddleware resolves the authenticated actor from a bearer token. Token
// issuance belongs to the identity provider; this server only verifies the
// HMAC signature and reads the subject and role claims.
func ActorMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing_token", "Authorization header with bearer token is required")
				return
			}

			actor, err := parseActorToken(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseActorToken(raw, secret string) (clinic.Actor, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return clinic.Actor{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return clinic.Actor{}, jwt.ErrTokenInvalidClaims
	}

	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return clinic.Actor{}, jwt.ErrTokenInvalidSubject
	}

	role, _ := claims["role"].(string)
	switch clinic.Role(role) {
	case clinic.RolePatient, clinic.RoleDentist, clinic.RoleAdmin:
	default:
		return clinic.Actor{}, jwt.ErrTokenInvalidClaims
	}

	return clinic.Actor{ID: id, Role: clinic.Role(role)}, nil
}

// ActorFrom retrieves the authenticated actor from the request context.
func ActorFrom(ctx context.Context) (clinic.Actor, bool) {
	a, ok := ctx.Value(actorKey).(clinic.Actor)
	return a, ok
}
