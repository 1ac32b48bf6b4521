package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/innohedge/console/internal/apiclient"
)

// recordingReleaser records released session IDs.
type recordingReleaser struct {
	released []string
}

func (r *recordingReleaser) Release(id string) { r.released = append(r.released, id) }

// newTestServer wires the auth routes onto a fresh echo instance.
func newTestServer(t *testing.T, api *mockAuthAPI) (*echo.Echo, *authService, *recordingReleaser) {
	t.Helper()
	svc, _ := newTestAuthService(t, api)
	rel := &recordingReleaser{}
	e := echo.New()
	RegisterRoutes(e, NewHandler(svc, rel), svc)
	return e, svc, rel
}

func postForm(e *echo.Echo, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginHandler_SuccessSetsCookieAndRedirects(t *testing.T) {
	e, svc, _ := newTestServer(t, &mockAuthAPI{})

	rec := postForm(e, "/login", url.Values{"email": {"a@x.com"}, "password": {"pw"}, "rememberMe": {"on"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
	cookie := findCookie(rec, sessionCookieName)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("missing session cookie")
	}
	if cookie.MaxAge != int(svc.rememberTTL.Seconds()) {
		t.Errorf("MaxAge = %d", cookie.MaxAge)
	}
	session, err := svc.ValidateSession(context.Background(), cookie.Value)
	if err != nil || !session.RememberMe {
		t.Errorf("session = %+v, err = %v", session, err)
	}
}

func TestLoginHandler_FailureShowsMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"backend message", &apiclient.Error{Status: 401, Message: "Invalid credentials"}, "Invalid credentials"},
		{"no message", &apiclient.Error{Status: 500}, msgLoginFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAuthAPI{
				loginFn: func(ctx context.Context, req apiclient.LoginRequest) (string, error) { return "", tt.err },
			}
			e, _, _ := newTestServer(t, api)

			rec := postForm(e, "/login", url.Values{"email": {"a@x.com"}, "password": {"pw"}})
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
			if findCookie(rec, sessionCookieName) != nil {
				t.Error("no session cookie on failure")
			}
		})
	}
}

func TestLoginForm_ResetBanner(t *testing.T) {
	e, _, _ := newTestServer(t, &mockAuthAPI{})

	req := httptest.NewRequest(http.MethodGet, "/login?reset=success", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgResetSucceeded) {
		t.Error("missing reset success banner")
	}
}

func TestLogout_ReleasesAndClears(t *testing.T) {
	api := &mockAuthAPI{}
	e, svc, rel := newTestServer(t, api)

	session, err := svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	api.loginCalls = 0

	rec := postForm(e, "/logout", nil, &http.Cookie{Name: sessionCookieName, Value: session.ID})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if c := findCookie(rec, sessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Error("session cookie not cleared")
	}
	if len(rel.released) != 1 || rel.released[0] != session.ID {
		t.Errorf("released = %v", rel.released)
	}
	if _, err := svc.ValidateSession(context.Background(), session.ID); err == nil {
		t.Error("session should be gone")
	}
	if api.loginCalls != 0 {
		t.Error("logout must not call the backend")
	}
}

func TestForgotPasswordHandler(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, msgResetLinkSent},
		{"backend message", &apiclient.Error{Status: 404, Message: "No such user"}, "No such user"},
		{"fallback", &apiclient.Error{Status: 500}, msgGenericFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAuthAPI{
				forgotPasswordFn: func(ctx context.Context, email string) error { return tt.err },
			}
			e, _, _ := newTestServer(t, api)

			rec := postForm(e, "/forgot-password", url.Values{"email": {"a@x.com"}})
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}
}

func TestResetPasswordHandler_Mismatch(t *testing.T) {
	api := &mockAuthAPI{}
	e, _, _ := newTestServer(t, api)

	rec := postForm(e, "/reset-password", url.Values{"token": {"t"}, "password": {"a"}, "confirm": {"b"}})
	if !strings.Contains(rec.Body.String(), msgPasswordsDiffer) {
		t.Error("missing mismatch message")
	}
	if api.resetCalls != 0 {
		t.Error("mismatch must not reach the backend")
	}
}

func TestResetPasswordHandler_Success(t *testing.T) {
	api := &mockAuthAPI{
		resetPasswordFn: func(ctx context.Context, token, password string) error {
			if token != "t" || password != "new-pw" {
				t.Errorf("token=%q password=%q", token, password)
			}
			return nil
		},
	}
	e, _, _ := newTestServer(t, api)

	rec := postForm(e, "/reset-password", url.Values{"token": {"t"}, "password": {"new-pw"}, "confirm": {"new-pw"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login?reset=success" {
		t.Errorf("status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRequireAuth(t *testing.T) {
	svc, _ := newTestAuthService(t, &mockAuthAPI{})
	e := echo.New()
	e.GET("/private", func(c echo.Context) error {
		return c.String(http.StatusOK, GetSession(c).Email)
	}, RequireAuth(svc))

	// No cookie.
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("anonymous: status = %d", rec.Code)
	}

	// Valid session.
	session, _ := svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "pw"})
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session.ID})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "a@x.com" {
		t.Errorf("authed: status = %d body = %q", rec.Code, rec.Body.String())
	}
}
