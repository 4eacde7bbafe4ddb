package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/helphive/backend/internal/models"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// Token claim names shared with the token issuer.
const (
	ClaimUserID = "user_id"
	ClaimRole   = "role"
)

// JWTAuth middleware validates JWT tokens and stores the caller's principal
func JWTAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthenticated(w, "Authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthenticated(w, "Invalid authorization header format")
				return
			}

			p, err := ParseToken(jwtSecret, parts[1])
			if err != nil {
				unauthenticated(w, "Invalid or expired token")
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseToken verifies an HS256 token and returns the principal it carries.
func ParseToken(jwtSecret, tokenString string) (models.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return models.Principal{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Principal{}, jwt.ErrTokenInvalidClaims
	}

	userID, _ := claims[ClaimUserID].(string)
	rawRole, _ := claims[ClaimRole].(string)
	role, ok := models.ParseRole(rawRole)
	if userID == "" || !ok {
		return models.Principal{}, jwt.ErrTokenInvalidClaims
	}
	return models.Principal{UserID: userID, Role: role}, nil
}

// RequireRole rejects principals whose role is not listed
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				unauthenticated(w, "Unauthorized")
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, models.NewCodedErrorResponse("forbidden", "Insufficient permissions"))
		})
	}
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetPrincipal extracts the authenticated principal from context
func GetPrincipal(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(models.Principal)
	return p, ok
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	p, _ := GetPrincipal(ctx)
	return p.UserID
}

func unauthenticated(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, models.NewCodedErrorResponse("unauthenticated", msg))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
