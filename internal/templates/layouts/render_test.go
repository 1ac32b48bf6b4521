package layouts

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"testing/fstest"
)

func TestPages_RenderWithLayoutData(t *testing.T) {
	fsys := fstest.MapFS{
		"views/hello.html": {Data: []byte(`{{define "title"}}Hello{{end}}{{define "content"}}<p>Hi {{.Page}}</p>{{end}}`)},
		"views/other.html": {Data: []byte(`{{define "title"}}Other{{end}}{{define "content"}}<p>other</p>{{end}}`)},
	}
	pages, err := ParsePages(fsys, "views/*.html")
	if err != nil {
		t.Fatalf("ParsePages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d", len(pages))
	}

	ctx := SetBrand(context.Background(), "InnoHedge", "support@innohedge.com")
	ctx = SetCSRFToken(ctx, "tok123")
	ctx = SetIsAuthenticated(ctx, true)
	ctx = SetUserEmail(ctx, "admin@innohedge.com")

	var buf bytes.Buffer
	if err := pages.Page("hello", "<b>you</b>").Render(ctx, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<title>Hello | InnoHedge</title>",
		`content="tok123"`,
		"admin@innohedge.com",
		"Logout",
		"Hi &lt;b&gt;you&lt;/b&gt;",
		"support@innohedge.com",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "<p>other</p>") {
		t.Error("pages must not share content blocks")
	}
}

func TestPages_Unknown(t *testing.T) {
	pages := Pages{}
	if err := pages.Page("missing", nil).Render(context.Background(), &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown page")
	}
}

func TestParsePages_NoMatch(t *testing.T) {
	if _, err := ParsePages(fstest.MapFS{}, "views/*.html"); err == nil {
		t.Fatal("expected error when nothing matches")
	}
}
