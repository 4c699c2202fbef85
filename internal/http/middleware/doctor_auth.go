package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const doctorIDKey contextKey = "doctorID"

// DoctorJWT enforces an HMAC-signed JWT on practitioner endpoints. The
// token's sub claim is the doctor ID and is placed in the request context.
func DoctorJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "doctor auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" {
				http.Error(w, "token missing subject", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), doctorIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithDoctorID returns a context carrying the doctor ID, as DoctorJWT would
// set it.
func WithDoctorID(ctx context.Context, doctorID string) context.Context {
	return context.WithValue(ctx, doctorIDKey, doctorID)
}

// DoctorIDFromContext returns the authenticated doctor ID if present.
func DoctorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(doctorIDKey).(string)
	return id, ok && id != ""
}
