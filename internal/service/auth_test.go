package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/devconnect/internal/apperror"
	"github.com/sakif/devconnect/internal/auth"
)

// newTestAuthService returns an AuthService wired with fake dependencies.
func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	// Cost 4 is the bcrypt minimum, which keeps these tests fast.
	ps := auth.NewPasswordServiceForTest(4)

	return NewAuthService(repo, ts, ps, discardLogger())
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_Success(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.Register(context.Background(), " Jane Doe ", "Jane@Example.com", "secret1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.Token == "" {
		t.Fatal("Register() returned empty Token")
	}
	u := result.User
	if u.ID == "" || u.Name != "Jane Doe" || u.Email != "jane@example.com" {
		t.Errorf("user = %+v, want trimmed name and lowercased email", u)
	}
	if u.PasswordHash == "" || u.PasswordHash == "secret1" {
		t.Errorf("PasswordHash = %q, want a bcrypt hash", u.PasswordHash)
	}
	if !strings.HasPrefix(u.Avatar, "https://www.gravatar.com/avatar/") {
		t.Errorf("Avatar = %q, want a gravatar URL", u.Avatar)
	}

	id, err := svc.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if id.UserID != u.ID {
		t.Errorf("token subject = %q, want %q", id.UserID, u.ID)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
		field    string
	}{
		{"missing name", "  ", "a@b.co", "secret1", "name"},
		{"bad email", "Jane", "not-an-email", "secret1", "email"},
		{"display-name email", "Jane", "Jane <jane@b.co>", "secret1", "email"},
		{"short password", "Jane", "a@b.co", "12345", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAuthService(t, newFakeUserRepo())

			_, err := svc.Register(context.Background(), tt.userName, tt.email, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Register() error = %v, want ErrValidation", err)
			}
			var appErr *apperror.AppError
			errors.As(err, &appErr)
			if appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Jane", "jane@example.com", "secret1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	_, err := svc.Register(ctx, "Other", "JANE@example.com", "secret2")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Register() error = %v, want ErrConflict", err)
	}
}

func TestRegister_RepositoryError(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = errors.New("database is down")
	svc := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), "Jane", "jane@example.com", "secret1")
	if err == nil {
		t.Fatal("Register() should fail when the repository fails")
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		t.Errorf("store failure surfaced as domain error %v", err)
	}
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLogin_Success(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Jane", "jane@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := svc.Login(ctx, "JANE@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.User.ID != reg.User.ID {
		t.Errorf("User.ID = %q, want %q", result.User.ID, reg.User.ID)
	}
	if result.Token == "" {
		t.Error("Login() returned empty Token")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Jane", "jane@example.com", "secret1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// A GitHub-only account has no password to match.
	if _, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 9, Login: "gh", Email: "gh@example.com"}); err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "jane@example.com", "nope-nope"},
		{"unknown email", "who@example.com", "secret1"},
		{"malformed email", "jane", "secret1"},
		{"empty password", "jane@example.com", ""},
		{"github-only account", "gh@example.com", "anything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.email, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Login() error = %v, want ErrValidation", err)
			}
			var appErr *apperror.AppError
			errors.As(err, &appErr)
			if appErr.Message != MsgInvalidCredentials {
				t.Errorf("Message = %q, want %q", appErr.Message, MsgInvalidCredentials)
			}
		})
	}
}

// =========================================================================
// LoginOrRegisterGitHub TESTS
// =========================================================================

func TestLoginOrRegisterGitHub_NewUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID:        42,
		Login:     "octocat",
		AvatarURL: "https://avatars.githubusercontent.com/u/42",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	if result.Token == "" {
		t.Fatal("LoginOrRegisterGitHub() returned empty Token")
	}
	if result.User.Name != "octocat" {
		t.Errorf("Name = %q, want login as fallback display name", result.User.Name)
	}
	if result.User.GitHubID != 42 {
		t.Errorf("GitHubID = %d, want 42", result.User.GitHubID)
	}
}

func TestLoginOrRegisterGitHub_ExistingUserGetsUpdatedProfile(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	first, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "old"})
	if err != nil {
		t.Fatalf("first login error = %v", err)
	}
	second, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "old", Name: "New Name"})
	if err != nil {
		t.Fatalf("second login error = %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Errorf("ID changed across logins: %q -> %q", first.User.ID, second.User.ID)
	}
	if second.User.Name != "New Name" {
		t.Errorf("Name = %q, want %q", second.User.Name, "New Name")
	}
}

func TestLoginOrRegisterGitHub_NilGitHubUser(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())

	if _, err := svc.LoginOrRegisterGitHub(context.Background(), nil); err == nil {
		t.Fatal("LoginOrRegisterGitHub(nil) should return an error")
	}
}

func TestLoginOrRegisterGitHub_RepositoryError(t *testing.T) {
	repo := newFakeUserRepo()
	repo.upsertErr = errors.New("database is down")
	svc := newTestAuthService(t, repo)

	if _, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "x"}); err == nil {
		t.Fatal("LoginOrRegisterGitHub() should propagate repository errors")
	}
}

// =========================================================================
// GetUserByID / ValidateToken TESTS
// =========================================================================

func TestGetUserByID(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	u := repo.addUser("jane")

	found, err := svc.GetUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Name != "jane" {
		t.Errorf("Name = %q, want %q", found.Name, "jane")
	}
}

func TestGetUserByID_Errors(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	if _, err := svc.GetUserByID(ctx, ""); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("GetUserByID(\"\") error = %v, want ErrUnauthenticated", err)
	}
	if _, err := svc.GetUserByID(ctx, "user-404"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestValidateToken_InvalidToken(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.ValidateToken("this.is.garbage")
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}
