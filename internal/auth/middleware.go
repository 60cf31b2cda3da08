package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// TokenHeader is the request header the client puts its token in.
const TokenHeader = "x-auth-token"

// Messages returned by the gate. The client displays them as-is.
const (
	MsgNoToken      = "No token, authorization denied"
	MsgInvalidToken = "Token is not valid"
)

// contextKey is unexported so no other package can read or overwrite the
// identity stored under it.
type contextKey string

const identityKey contextKey = "identity"

// TokenValidator is what the gate needs from a token codec.
// *TokenService satisfies it; tests can pass a stub.
type TokenValidator interface {
	Validate(token string) (Identity, error)
}

// RequireAuth is the gate in front of every protected route.
//
// It reads the token from the x-auth-token header (falling back to
// "Authorization: Bearer <token>"), verifies it, and stores the Identity in
// the request context. A missing or invalid token ends the request with 401
// and the next handler never runs.
//
// The gate makes no ownership decisions. "Is this your post?" is answered by
// the service layer, which gets the Identity explicitly.
//
//	r.With(auth.RequireAuth(tokens)).Get("/api/posts", h.HandleList)
func RequireAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				writeUnauthorized(w, MsgNoToken)
				return
			}

			id, err := tokens.Validate(raw)
			if err != nil {
				writeUnauthorized(w, MsgInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id. Exported for tests and for
// handlers that build contexts outside the middleware chain.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the Identity set by RequireAuth.
// ok is false on routes the gate did not run on.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// UserIDFromContext is shorthand for IdentityFromContext(ctx).UserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}

func extractToken(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(TokenHeader)); tok != "" {
		return tok
	}
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

// writeUnauthorized writes the same body shape the handler package uses for
// every other error. It is duplicated here so auth does not import handler.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "unauthenticated",
		"msg":   msg,
	})
}
