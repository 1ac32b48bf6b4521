// Package pages holds the shared pages that do not belong to any plugin.
package pages

import (
	"embed"

	"github.com/a-h/templ"

	"github.com/innohedge/console/internal/templates/layouts"
)

//go:embed views/*.html
var viewsFS embed.FS

var pages = layouts.MustParsePages(viewsFS, "views/*.html")

// errorPage is the data for views/error.html.
type errorPage struct {
	Code    int
	Message string
}

// ErrorPage renders a full error page for the given status code.
func ErrorPage(code int, message string) templ.Component {
	return pages.Page("error", errorPage{Code: code, Message: message})
}
