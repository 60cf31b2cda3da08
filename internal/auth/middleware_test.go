package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gateResult runs one request through RequireAuth and reports whether the
// protected handler ran and which identity it saw.
func gateResult(t *testing.T, ts *TokenService, setup func(r *http.Request)) (*httptest.ResponseRecorder, bool, Identity) {
	t.Helper()

	var called bool
	var seen Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	if setup != nil {
		setup(req)
	}
	rr := httptest.NewRecorder()
	RequireAuth(ts)(next).ServeHTTP(rr, req)
	return rr, called, seen
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestRequireAuth_NoToken(t *testing.T) {
	ts := newTestTokenService(t)

	rr, called, _ := gateResult(t, ts, nil)

	assert.False(t, called, "protected handler must not run without a token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, MsgNoToken, body["msg"])
	assert.Equal(t, "unauthenticated", body["error"])
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	ts := newTestTokenService(t)

	rr, called, _ := gateResult(t, ts, func(r *http.Request) {
		r.Header.Set(TokenHeader, "garbage")
	})

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, MsgInvalidToken, decodeBody(t, rr)["msg"])
}

func TestRequireAuth_ValidHeaderToken(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate("user-42")
	require.NoError(t, err)

	rr, called, id := gateResult(t, ts, func(r *http.Request) {
		r.Header.Set(TokenHeader, token)
	})

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user-42", id.UserID)
	assert.False(t, id.IssuedAt.IsZero())
}

func TestRequireAuth_BearerFallback(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate("user-7")

	_, called, id := gateResult(t, ts, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})

	assert.True(t, called)
	assert.Equal(t, "user-7", id.UserID)
}

func TestRequireAuth_HeaderWinsOverBearer(t *testing.T) {
	ts := newTestTokenService(t)
	headerToken, _ := ts.Generate("from-header")
	bearerToken, _ := ts.Generate("from-bearer")

	_, _, id := gateResult(t, ts, func(r *http.Request) {
		r.Header.Set(TokenHeader, headerToken)
		r.Header.Set("Authorization", "Bearer "+bearerToken)
	})

	assert.Equal(t, "from-header", id.UserID)
}

func TestRequireAuth_NonBearerAuthorizationIgnored(t *testing.T) {
	ts := newTestTokenService(t)

	rr, called, _ := gateResult(t, ts, func(r *http.Request) {
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	})

	assert.False(t, called)
	assert.Equal(t, MsgNoToken, decodeBody(t, rr)["msg"])
}

func TestIdentityFromContext_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := IdentityFromContext(req.Context())
	assert.False(t, ok)

	_, ok = UserIDFromContext(req.Context())
	assert.False(t, ok)
}

func TestWithIdentity_RoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithIdentity(req.Context(), Identity{UserID: "u1"})

	uid, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", uid)
}
