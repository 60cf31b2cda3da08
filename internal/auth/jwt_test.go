package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-at-least-16-chars!!"

// newTestTokenService creates a TokenService with a fixed secret and no expiry.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", 0)
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_ValidSecret(t *testing.T) {
	_, err := NewTokenService("this-is-16-chars", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
}

func TestNewTokenService_NegativeTTL(t *testing.T) {
	_, err := NewTokenService(testSecret, -time.Second)
	if err == nil {
		t.Fatal("NewTokenService() should reject a negative TTL")
	}
}

// =========================================================================
// GENERATE
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := strings.Count(token, "."); got != 2 {
		t.Errorf("Generate() token has %d dots, want 2 (header.payload.signature)", got)
	}
}

func TestGenerate_EmptyUserID(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Generate(""); err == nil {
		t.Fatal("Generate() should refuse to sign a token without a subject")
	}
}

func TestGenerate_DifferentUsersGetDifferentTokens(t *testing.T) {
	ts := newTestTokenService(t)

	token1, _ := ts.Generate("user-aaa")
	token2, _ := ts.Generate("user-bbb")

	if token1 == token2 {
		t.Error("Generate() returned identical tokens for different user IDs")
	}
}

func TestGenerate_NoTTLMeansNoExpiry(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate("user-123")

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &claims{})
	if err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if parsed.Claims.(*claims).ExpiresAt != nil {
		t.Error("token from a zero-TTL service should not carry an exp claim")
	}
}

// =========================================================================
// VALIDATE
// =========================================================================

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	before := time.Now().Add(-time.Second)

	token, err := ts.Generate("user-abc-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	id, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if id.UserID != "user-abc-123" {
		t.Errorf("Validate() UserID = %q, want %q", id.UserID, "user-abc-123")
	}
	if id.IssuedAt.Before(before) {
		t.Errorf("Validate() IssuedAt = %v, want >= %v", id.IssuedAt, before)
	}
}

func TestValidate_Rejections(t *testing.T) {
	ts := newTestTokenService(t)
	good, _ := ts.Generate("user-123")
	expired, _ := ts.GenerateWithDuration("user-123", -time.Second)

	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", 0)
	foreign, _ := other.Generate("user-123")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-123", "iss": issuer})
	noneToken, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": issuer})
	noSubjectToken, _ := noSubject.SignedString([]byte(testSecret))

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-123", "iss": "someone-else"})
	wrongIssuerToken, _ := wrongIssuer.SignedString([]byte(testSecret))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"tampered signature", good[:len(good)-3] + "xxx"},
		{"expired", expired},
		{"signed with another secret", foreign},
		{"alg none", noneToken},
		{"no subject", noSubjectToken},
		{"wrong issuer", wrongIssuerToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(tt.token)
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestValidate_TTLRequiresExpiry(t *testing.T) {
	noExpiry := newTestTokenService(t)
	token, _ := noExpiry.Generate("user-123")

	// Same secret, but this service issues expiring tokens and so
	// insists on an exp claim.
	strict, _ := NewTokenService(testSecret, time.Hour)
	if _, err := strict.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Validate() error = %v, want ErrInvalidToken for a token without exp", err)
	}
}

func TestValidate_SecretRotationInvalidatesTokens(t *testing.T) {
	before, _ := NewTokenService("secret-one-is-long-enough", 0)
	token, _ := before.Generate("user-123")

	after, _ := NewTokenService("secret-two-is-long-enough", 0)
	if _, err := after.Validate(token); err == nil {
		t.Fatal("rotating the secret should invalidate previously issued tokens")
	}
}

func TestGenerateWithDuration_FutureToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("user-123", time.Hour)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	id, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() on 1h token error = %v", err)
	}
	if id.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", id.UserID, "user-123")
	}
}

func TestGenerateWithDuration_ZeroRejected(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.GenerateWithDuration("user-123", 0); err == nil {
		t.Fatal("GenerateWithDuration(0) should fail")
	}
}
