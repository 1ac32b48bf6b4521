// data.go provides typed context helpers for passing layout data from
// handlers/middleware to page templates. Only simple types are stored so
// this package never imports plugin packages.
//
// Data flow: Handler/Middleware → Echo Context → LayoutInjector → Go Context → template
package layouts

import "context"

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey string

const (
	keyIsAuthenticated ctxKey = "layout_is_authenticated"
	keyUserEmail       ctxKey = "layout_user_email"
	keyCSRFToken       ctxKey = "layout_csrf_token"
	keyBrandName       ctxKey = "layout_brand_name"
	keySupportEmail    ctxKey = "layout_support_email"
	keyActivePath      ctxKey = "layout_active_path"
)

// --- Setters (called by the layout injector in app/routes.go) ---

// SetIsAuthenticated marks whether the current request has a valid session.
func SetIsAuthenticated(ctx context.Context, authed bool) context.Context {
	return context.WithValue(ctx, keyIsAuthenticated, authed)
}

// SetUserEmail stores the signed-in admin's email in context.
func SetUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, keyUserEmail, email)
}

// SetCSRFToken stores the CSRF token for forms.
func SetCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, keyCSRFToken, token)
}

// SetBrand stores the brand name and support address shown in the chrome.
func SetBrand(ctx context.Context, name, supportEmail string) context.Context {
	ctx = context.WithValue(ctx, keyBrandName, name)
	return context.WithValue(ctx, keySupportEmail, supportEmail)
}

// SetActivePath stores the request path for nav highlighting.
func SetActivePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, keyActivePath, path)
}

// --- Getters (called from templates via Data) ---

// IsAuthenticated returns true if the request has a valid session.
func IsAuthenticated(ctx context.Context) bool {
	v, _ := ctx.Value(keyIsAuthenticated).(bool)
	return v
}

// GetUserEmail returns the signed-in admin's email.
func GetUserEmail(ctx context.Context) string {
	v, _ := ctx.Value(keyUserEmail).(string)
	return v
}

// GetCSRFToken returns the CSRF token.
func GetCSRFToken(ctx context.Context) string {
	v, _ := ctx.Value(keyCSRFToken).(string)
	return v
}

// GetBrandName returns the brand display name.
func GetBrandName(ctx context.Context) string {
	v, _ := ctx.Value(keyBrandName).(string)
	return v
}

// GetSupportEmail returns the brand support address.
func GetSupportEmail(ctx context.Context) string {
	v, _ := ctx.Value(keySupportEmail).(string)
	return v
}

// GetActivePath returns the current request path.
func GetActivePath(ctx context.Context) string {
	v, _ := ctx.Value(keyActivePath).(string)
	return v
}

// Data is the layout half of every page's template data.
type Data struct {
	IsAuthenticated bool
	UserEmail       string
	CSRFToken       string
	BrandName       string
	SupportEmail    string
	ActivePath      string
}

// FromContext collects layout data from ctx.
func FromContext(ctx context.Context) Data {
	return Data{
		IsAuthenticated: IsAuthenticated(ctx),
		UserEmail:       GetUserEmail(ctx),
		CSRFToken:       GetCSRFToken(ctx),
		BrandName:       GetBrandName(ctx),
		SupportEmail:    GetSupportEmail(ctx),
		ActivePath:      GetActivePath(ctx),
	}
}
