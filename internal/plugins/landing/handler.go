// Package landing serves the public brand landing page and its contact form.
package landing

import (
	"context"
	"embed"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/innohedge/console/internal/apiclient"
	"github.com/innohedge/console/internal/brand"
	"github.com/innohedge/console/internal/middleware"
	"github.com/innohedge/console/internal/templates/layouts"
)

//go:embed views/*.html
var viewsFS embed.FS

var pages = layouts.MustParsePages(viewsFS, "views/*.html")

const (
	msgContactSent   = "Thank you! Your inquiry has been sent successfully."
	msgContactFailed = "An error occurred. Please try again."
)

// recaptchaField is the form field the reCAPTCHA widget fills in.
const recaptchaField = "g-recaptcha-response"

// ContactAPI submits contact form entries to the backend. It is satisfied
// by *apiclient.Client.
type ContactAPI interface {
	SubmitContact(ctx context.Context, req apiclient.ContactRequest) error
}

// Handler serves the landing page.
type Handler struct {
	api     ContactAPI
	brand   brand.Brand
	siteKey string
}

// NewHandler creates a landing handler for one brand. siteKey is the public
// reCAPTCHA key; the widget is left out when it is empty.
func NewHandler(api ContactAPI, b brand.Brand, siteKey string) *Handler {
	return &Handler{api: api, brand: b, siteKey: siteKey}
}

// contactForm holds the submitted field values for re-display.
type contactForm struct {
	Name    string
	Email   string
	Message string
}

// indexPage is the data for views/index.html.
type indexPage struct {
	Brand   brand.Brand
	SiteKey string
	Form    contactForm
	Sent    string
	Error   string
}

// Index renders the landing page (GET /).
func (h *Handler) Index(c echo.Context) error {
	page := indexPage{Brand: h.brand, SiteKey: h.siteKey}
	return middleware.Render(c, http.StatusOK, pages.Page("index", page))
}

// Contact submits the contact form (POST /contact). On success the form is
// cleared and a thank-you notice shown; on failure the entries are kept.
func (h *Handler) Contact(c echo.Context) error {
	form := contactForm{
		Name:    strings.TrimSpace(c.FormValue("name")),
		Email:   strings.TrimSpace(c.FormValue("email")),
		Message: strings.TrimSpace(c.FormValue("message")),
	}
	req := apiclient.ContactRequest{
		Name:           form.Name,
		Email:          form.Email,
		Message:        form.Message,
		RecaptchaToken: c.FormValue(recaptchaField),
	}

	page := indexPage{Brand: h.brand, SiteKey: h.siteKey}
	if err := h.api.SubmitContact(c.Request().Context(), req); err != nil {
		slog.Warn("contact submission failed", slog.Any("error", err))
		page.Form = form
		page.Error = apiclient.MessageOr(err, msgContactFailed)
		return middleware.Render(c, http.StatusOK, pages.Page("index", page))
	}

	page.Sent = msgContactSent
	return middleware.Render(c, http.StatusOK, pages.Page("index", page))
}
