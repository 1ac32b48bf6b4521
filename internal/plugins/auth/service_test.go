package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/innohedge/console/internal/apiclient"
	"github.com/innohedge/console/internal/apperror"
)

// --- Mock API ---

// mockAuthAPI implements AuthAPI for testing.
type mockAuthAPI struct {
	loginFn          func(ctx context.Context, req apiclient.LoginRequest) (string, error)
	forgotPasswordFn func(ctx context.Context, email string) error
	resetPasswordFn  func(ctx context.Context, token, password string) error

	loginCalls int
	resetCalls int
}

func (m *mockAuthAPI) Login(ctx context.Context, req apiclient.LoginRequest) (string, error) {
	m.loginCalls++
	if m.loginFn != nil {
		return m.loginFn(ctx, req)
	}
	return "api-token", nil
}

func (m *mockAuthAPI) ForgotPassword(ctx context.Context, email string) error {
	if m.forgotPasswordFn != nil {
		return m.forgotPasswordFn(ctx, email)
	}
	return nil
}

func (m *mockAuthAPI) ResetPassword(ctx context.Context, token, password string) error {
	m.resetCalls++
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, token, password)
	}
	return nil
}

// --- Test Helpers ---

// newTestAuthService creates an authService backed by miniredis.
func newTestAuthService(t *testing.T, api *mockAuthAPI) (*authService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return &authService{
		api:         api,
		redis:       rdb,
		sessionTTL:  24 * time.Hour,
		rememberTTL: 720 * time.Hour,
	}, mr
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// --- Login Tests ---

func TestLogin_CreatesSession(t *testing.T) {
	api := &mockAuthAPI{
		loginFn: func(ctx context.Context, req apiclient.LoginRequest) (string, error) {
			if req.Email != "Admin@Example.com" || req.Password != "pw" || req.RememberMe {
				t.Errorf("unexpected login request %+v", req)
			}
			return "jwt-1", nil
		},
	}
	svc, mr := newTestAuthService(t, api)

	session, err := svc.Login(context.Background(), LoginInput{Email: " Admin@Example.com ", Password: "pw"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID == "" || session.APIToken != "jwt-1" || session.Email != "Admin@Example.com" {
		t.Errorf("session = %+v", session)
	}

	key := sessionKeyPrefix + session.ID
	if !mr.Exists(key) {
		t.Fatalf("expected %s in redis", key)
	}
	if ttl := mr.TTL(key); ttl != 24*time.Hour {
		t.Errorf("ttl = %v, want 24h", ttl)
	}

	got, err := svc.ValidateSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if got.APIToken != "jwt-1" || got.ID != session.ID {
		t.Errorf("validated session = %+v", got)
	}
}

func TestLogin_RememberMeUsesLongTTL(t *testing.T) {
	svc, mr := newTestAuthService(t, &mockAuthAPI{})

	session, err := svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "pw", RememberMe: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl := mr.TTL(sessionKeyPrefix + session.ID); ttl != 720*time.Hour {
		t.Errorf("ttl = %v, want 720h", ttl)
	}
}

func TestLogin_BackendRejection(t *testing.T) {
	api := &mockAuthAPI{
		loginFn: func(ctx context.Context, req apiclient.LoginRequest) (string, error) {
			return "", &apiclient.Error{Op: "POST /auth/login", Status: 401, Message: "Invalid credentials"}
		},
	}
	svc, mr := newTestAuthService(t, api)

	_, err := svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "bad"})
	if got := apiclient.MessageOr(err, "fallback"); got != "Invalid credentials" {
		t.Errorf("message = %q", got)
	}
	if len(mr.Keys()) != 0 {
		t.Errorf("no session should be stored, got %v", mr.Keys())
	}
}

func TestLogin_MissingFields(t *testing.T) {
	api := &mockAuthAPI{}
	svc, _ := newTestAuthService(t, api)

	_, err := svc.Login(context.Background(), LoginInput{Email: "a@x.com"})
	assertAppError(t, err, http.StatusUnprocessableEntity)
	if api.loginCalls != 0 {
		t.Error("backend must not be called without credentials")
	}
}

// --- Session Tests ---

func TestValidateSession_Unknown(t *testing.T) {
	svc, _ := newTestAuthService(t, &mockAuthAPI{})

	_, err := svc.ValidateSession(context.Background(), "nope")
	assertAppError(t, err, http.StatusUnauthorized)

	_, err = svc.ValidateSession(context.Background(), "")
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestValidateSession_Expired(t *testing.T) {
	svc, mr := newTestAuthService(t, &mockAuthAPI{})

	session, err := svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	mr.FastForward(25 * time.Hour)

	_, err = svc.ValidateSession(context.Background(), session.ID)
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestDestroySession(t *testing.T) {
	svc, mr := newTestAuthService(t, &mockAuthAPI{})

	session, _ := svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "pw"})
	if err := svc.DestroySession(context.Background(), session.ID); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}
	if mr.Exists(sessionKeyPrefix + session.ID) {
		t.Error("session still in redis")
	}
	// Destroying twice is fine.
	if err := svc.DestroySession(context.Background(), session.ID); err != nil {
		t.Errorf("second DestroySession: %v", err)
	}
}

func TestGenerateSessionToken_Unique(t *testing.T) {
	a, _ := generateSessionToken()
	b, _ := generateSessionToken()
	if len(a) != sessionTokenBytes*2 || a == b {
		t.Errorf("tokens %q / %q", a, b)
	}
}

// --- Password Tests ---

func TestForgotPassword_TrimsEmailKeepingCase(t *testing.T) {
	var got string
	api := &mockAuthAPI{
		forgotPasswordFn: func(ctx context.Context, email string) error {
			got = email
			return nil
		},
	}
	svc, _ := newTestAuthService(t, api)

	if err := svc.ForgotPassword(context.Background(), " A@X.com"); err != nil {
		t.Fatal(err)
	}
	if got != "A@X.com" {
		t.Errorf("email = %q", got)
	}
	assertAppError(t, svc.ForgotPassword(context.Background(), "  "), http.StatusUnprocessableEntity)
}

func TestResetPassword_RequiresToken(t *testing.T) {
	api := &mockAuthAPI{}
	svc, _ := newTestAuthService(t, api)

	assertAppError(t, svc.ResetPassword(context.Background(), "", "pw"), http.StatusUnprocessableEntity)
	if api.resetCalls != 0 {
		t.Error("backend must not be called without a token")
	}
}
