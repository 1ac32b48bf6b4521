package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestServer returns a client pointed at an httptest server driven by h.
func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/api")
}

func TestListUsers_SendsBearerAndParses(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/admin/users" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		io.WriteString(w, `[
			{"_id":"u1","email":"a@x.com","role":"viewer","createdAt":"2025-01-02T03:04:05Z"},
			{"id":2,"email":"b@x.com","role":"Admin"}
		]`)
	})

	users, err := c.ListUsers(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d", len(users))
	}
	if users[0].ID != "u1" || users[0].Role != RoleViewer {
		t.Errorf("users[0] = %+v", users[0])
	}
	if !users[0].CreatedAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", users[0].CreatedAt)
	}
	if users[1].ID != "2" || users[1].Role != RoleAdmin || !users[1].CreatedAt.IsZero() {
		t.Errorf("users[1] = %+v", users[1])
	}
}

func TestListUsers_RejectsUnknownRole(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"_id":"u1","email":"a@x.com","role":"superuser"}]`)
	})

	_, err := c.ListUsers(context.Background(), "tok")
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
}

func TestRequestIDFromContext(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Request-ID"); got != "req-42" {
			t.Errorf("X-Request-ID = %q", got)
		}
		io.WriteString(w, `[]`)
	})

	ctx := WithRequestID(context.Background(), "req-42")
	if _, err := c.ListActivity(ctx, "tok"); err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
}

func TestProtectedCall_WithoutToken(t *testing.T) {
	called := false
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	if _, err := c.ListForms(context.Background(), ""); !errors.Is(err, ErrNoCredential) {
		t.Errorf("err = %v", err)
	}
	if called {
		t.Error("no request should be issued without a credential")
	}
}

func TestErrorMessageExtraction(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"message":"Admins only"}`)
	})

	err := c.DeleteUser(context.Background(), "tok", "u1")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "Admins only" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !IsUnauthorized(err) {
		t.Error("403 should count as unauthorized")
	}
	if got := MessageOr(err, "fallback"); got != "Admins only" {
		t.Errorf("MessageOr = %q", got)
	}
}

func TestMessageOr_Fallback(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "<html>oops</html>")
	})

	err := c.ForgotPassword(context.Background(), "a@x.com")
	if got := MessageOr(err, "Something went wrong!"); got != "Something went wrong!" {
		t.Errorf("MessageOr = %q", got)
	}
	if got := MessageOr(errors.New("dial"), "fb"); got != "fb" {
		t.Errorf("MessageOr(plain) = %q", got)
	}
}

func TestUpdateUserRole_Body(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.EscapedPath() != "/api/admin/users/u%2F1" {
			t.Errorf("%s %s", r.Method, r.URL.EscapedPath())
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["role"] != "Editor" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.UpdateUserRole(context.Background(), "tok", "u/1", RoleEditor); err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
}

func TestUpdateUserRole_InvalidRoleNotSent(t *testing.T) {
	called := false
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	if err := c.UpdateUserRole(context.Background(), "tok", "u1", Role("Owner")); err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("invalid role must not reach the backend")
	}
}

func TestGetTraffic_Bounds(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"rawTraffic":[`)
	for i := 0; i < 120; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"endpoint":"/p","timestamp":1700000000000}`)
	}
	sb.WriteString(`],"dailyStats":[`)
	for i := 0; i < 40; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"date":"2025-01-01","visits":3,"uniqueVisitors":2}`)
	}
	sb.WriteString(`]}`)
	payload := sb.String()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, payload)
	})

	tr, err := c.GetTraffic(context.Background(), "tok")
	if err != nil {
		t.Fatalf("GetTraffic: %v", err)
	}
	if len(tr.RawTraffic) != MaxRawTraffic {
		t.Errorf("raw = %d", len(tr.RawTraffic))
	}
	if len(tr.DailyStats) != MaxDailyStats {
		t.Errorf("daily = %d", len(tr.DailyStats))
	}
	if !tr.RawTraffic[0].Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("timestamp = %v", tr.RawTraffic[0].Timestamp)
	}
}

func TestGetTraffic_EmptyPayload(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})

	tr, err := c.GetTraffic(context.Background(), "tok")
	if err != nil {
		t.Fatalf("GetTraffic: %v", err)
	}
	if tr.RawTraffic == nil || tr.DailyStats == nil {
		t.Error("expected non-nil empty slices")
	}
}

func TestSettings_RoundTripKeepsUnknownFields(t *testing.T) {
	var received map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `{"siteTitle":"InnoHedge","supportEmail":"s@x.com","maintenance":true}`)
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&received)
		}
	})

	s, err := c.GetSettings(context.Background(), "tok")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	s.SiteTitle = "New Title"
	if err := c.UpdateSettings(context.Background(), "tok", s); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if received["siteTitle"] != "New Title" || received["maintenance"] != true {
		t.Errorf("received = %v", received)
	}
}

func TestLogin(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not send a bearer credential")
		}
		var req LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "a@x.com" || !req.RememberMe {
			t.Errorf("req = %+v", req)
		}
		io.WriteString(w, `{"token":"jwt"}`)
	})

	token, err := c.Login(context.Background(), LoginRequest{Email: "a@x.com", Password: "pw", RememberMe: true})
	if err != nil || token != "jwt" {
		t.Fatalf("Login = %q, %v", token, err)
	}
}

func TestLogin_MissingToken(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})
	if _, err := c.Login(context.Background(), LoginRequest{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, WithTimeout(50*time.Millisecond))
	if _, err := c.GetAnalytics(context.Background(), "tok"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"Admin", RoleAdmin, true},
		{"editor", RoleEditor, true},
		{" VIEWER ", RoleViewer, true},
		{"user", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseRole(%q) = %q, %v", tt.in, got, err)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestWithHTTPClient(t *testing.T) {
	var gotURL string
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"siteTitle":"T","supportEmail":"s@x.com"}`)),
			Request:    r,
		}, nil
	})}

	c := New("http://backend.invalid/api", WithHTTPClient(hc))
	s, err := c.GetSettings(context.Background(), "tok")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if gotURL != "http://backend.invalid/api/admin/settings" || s.SiteTitle != "T" {
		t.Errorf("url = %q, settings = %+v", gotURL, s)
	}
}
