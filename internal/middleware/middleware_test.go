package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestCSRF_IssuesCookieOnGet(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := CSRF()(okHandler)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	token := GetCSRFToken(c)
	if len(token) != csrfTokenLength*2 {
		t.Fatalf("token = %q", token)
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), csrfCookieName+"="+token) {
		t.Errorf("Set-Cookie = %q", rec.Header().Get("Set-Cookie"))
	}
}

func TestCSRF_ValidatesPost(t *testing.T) {
	tests := []struct {
		name      string
		formToken string
		header    string
		wantErr   bool
	}{
		{"form field", "abc", "", false},
		{"header", "", "abc", false},
		{"missing", "", "", true},
		{"mismatch", "xyz", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			form := url.Values{}
			if tt.formToken != "" {
				form.Set(CSRFFormField, tt.formToken)
			}
			req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(form.Encode()))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
			req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc"})
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			err := CSRF()(okHandler)(c)
			if tt.wantErr {
				he, ok := err.(*echo.HTTPError)
				if !ok || he.Code != http.StatusForbidden {
					t.Errorf("err = %v, want 403", err)
				}
			} else if err != nil {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestRateLimiter_Window(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d rejected", i)
		}
	}
	ok, retry := l.Allow("1.2.3.4")
	if ok || retry != time.Minute {
		t.Errorf("third request = %v, %v", ok, retry)
	}
	if ok, _ := l.Allow("5.6.7.8"); !ok {
		t.Error("other IPs must not share the budget")
	}

	now = now.Add(time.Minute)
	if ok, _ := l.Allow("1.2.3.4"); !ok {
		t.Error("new window should allow again")
	}
}

func TestRateLimiter_Middleware429(t *testing.T) {
	e := echo.New()
	mw := NewRateLimiter(1, time.Hour).Middleware()

	call := func() (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "9.9.9.9:1234"
		rec := httptest.NewRecorder()
		return rec, mw(okHandler)(e.NewContext(req, rec))
	}

	if _, err := call(); err != nil {
		t.Fatalf("first call: %v", err)
	}
	rec, err := call()
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want 429", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestIPExtractor(t *testing.T) {
	extract := buildIPExtractor([]string{"10.0.0.0/8", "bogus"})

	tests := []struct {
		name, remote, xff, realIP, want string
	}{
		{"untrusted peer ignores headers", "8.8.8.8:1", "1.1.1.1", "", "8.8.8.8"},
		{"trusted peer uses X-Real-IP", "10.1.2.3:1", "1.1.1.1", "2.2.2.2", "2.2.2.2"},
		{"trusted peer uses leftmost XFF", "10.1.2.3:1", "1.1.1.1, 10.0.0.1", "", "1.1.1.1"},
		{"trusted peer without headers", "10.1.2.3:1", "", "", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := extract(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestLogger_PropagatesRequestID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := RequestLogger()(okHandler)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("response request id = %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := SecurityHeaders(false)(okHandler)(c); err != nil {
		t.Fatal(err)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must be off when not serving HTTPS")
	}
}
