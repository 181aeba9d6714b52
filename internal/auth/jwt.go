package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Channel roles. Every relay channel requires a token carrying the matching
// role, the admin-observer channel included.
const (
	RoleDriver = "driver"
	RoleUser   = "user"
	RoleAdmin  = "admin"
)

var ErrInvalidToken = errors.New("invalid token")
var ErrForbiddenRole = errors.New("role not allowed")

// Claims extends standard registered claims with role information.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HMAC-signed bearer tokens. It backs both the HTTP
// middleware and the WebSocket upgrade path, where the token arrives in a
// header or a query parameter.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a verifier over a shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses the token and, when roles are given, enforces that the
// token's role is one of them.
func (v *Verifier) Verify(tokenString string, roles ...string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if len(roles) > 0 {
		allowed := false
		for _, role := range roles {
			if claims.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, ErrForbiddenRole
		}
	}
	return claims, nil
}

// Middleware validates bearer tokens and injects claims into the request
// context.
func Middleware(secret string, roles ...string) func(http.Handler) http.Handler {
	verifier := NewVerifier(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := TokenFromRequest(r)
			if tokenString == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			claims, err := verifier.Verify(tokenString, roles...)
			if err != nil {
				if errors.Is(err, ErrForbiddenRole) {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext retrieves claims from context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

type claimsKey struct{}

// TokenFromRequest extracts a token from the Authorization header or, for
// clients that cannot set headers during a WebSocket upgrade, the token
// query parameter.
func TokenFromRequest(r *http.Request) string {
	if token := tokenFromHeader(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

func tokenFromHeader(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
