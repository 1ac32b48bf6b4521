package layouts

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"
)

//go:embed base.html
var baseFS embed.FS

// View is the data every page template receives: the layout data from the
// request context plus the page's own data.
type View struct {
	Layout Data
	Page   any
}

// Funcs are available to every page template.
var Funcs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04:05")
	},
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format(time.DateOnly)
	},
	"percent": func(n, max int) int {
		if max <= 0 {
			return 0
		}
		return n * 100 / max
	},
	"year": func() int { return time.Now().Year() },
}

// Pages is a set of page templates parsed against the base layout.
type Pages map[string]*template.Template

// ParsePages parses every file in fsys matching pattern as its own page on
// top of the base layout. Pages are keyed by file name without extension.
// Each page defines "title" and "content".
func ParsePages(fsys fs.FS, pattern string) (Pages, error) {
	base, err := template.New("base.html").Funcs(Funcs).ParseFS(baseFS, "base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base layout: %w", err)
	}

	files, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no pages match %s", pattern)
	}

	pages := make(Pages, len(files))
	for _, f := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(fsys, f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f, err)
		}
		name := strings.TrimSuffix(path.Base(f), path.Ext(f))
		pages[name] = t
	}
	return pages, nil
}

// MustParsePages is ParsePages for package-level page sets.
func MustParsePages(fsys fs.FS, pattern string) Pages {
	p, err := ParsePages(fsys, pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Page returns the named page as a templ.Component so handlers render it
// through middleware.Render like any other component.
func (p Pages) Page(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, ok := p[name]
		if !ok {
			return fmt.Errorf("unknown page %q", name)
		}
		return t.ExecuteTemplate(w, "layout", View{Layout: FromContext(ctx), Page: data})
	})
}
