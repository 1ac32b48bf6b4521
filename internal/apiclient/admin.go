package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// ListUsers fetches every user account (GET /admin/users).
func (c *Client) ListUsers(ctx context.Context, token string) ([]User, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	var users []User
	if err := c.do(ctx, http.MethodGet, "/admin/users", token, nil, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// UpdateUserRole changes a user's role (PUT /admin/users/{id}).
func (c *Client) UpdateUserRole(ctx context.Context, token, userID string, role Role) error {
	if err := requireToken(token); err != nil {
		return err
	}
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	body := map[string]Role{"role": role}
	return c.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(userID), token, body, nil)
}

// DeleteUser removes a user (DELETE /admin/users/{id}).
func (c *Client) DeleteUser(ctx context.Context, token, userID string) error {
	if err := requireToken(token); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(userID), token, nil, nil)
}

// ListForms fetches every contact form submission (GET /admin/forms).
func (c *Client) ListForms(ctx context.Context, token string) ([]FormSubmission, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	var forms []FormSubmission
	if err := c.do(ctx, http.MethodGet, "/admin/forms", token, nil, &forms); err != nil {
		return nil, err
	}
	if forms == nil {
		forms = []FormSubmission{}
	}
	return forms, nil
}

// DeleteForm removes a form submission (DELETE /admin/forms/{id}).
func (c *Client) DeleteForm(ctx context.Context, token, formID string) error {
	if err := requireToken(token); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/admin/forms/"+url.PathEscape(formID), token, nil, nil)
}

// GetAnalytics fetches the aggregate counters (GET /admin/analytics).
func (c *Client) GetAnalytics(ctx context.Context, token string) (Analytics, error) {
	if err := requireToken(token); err != nil {
		return Analytics{}, err
	}
	var a Analytics
	if err := c.do(ctx, http.MethodGet, "/admin/analytics", token, nil, &a); err != nil {
		return Analytics{}, err
	}
	if err := a.validate(); err != nil {
		return Analytics{}, err
	}
	return a, nil
}

// GetSettings fetches the site settings (GET /admin/settings).
func (c *Client) GetSettings(ctx context.Context, token string) (Settings, error) {
	if err := requireToken(token); err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := c.do(ctx, http.MethodGet, "/admin/settings", token, nil, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// UpdateSettings saves the full settings object (PUT /admin/settings).
func (c *Client) UpdateSettings(ctx context.Context, token string, s Settings) error {
	if err := requireToken(token); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/admin/settings", token, s, nil)
}

// ListActivity fetches the activity log (GET /admin/activity).
func (c *Client) ListActivity(ctx context.Context, token string) ([]ActivityEntry, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	var entries []ActivityEntry
	if err := c.do(ctx, http.MethodGet, "/admin/activity", token, nil, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []ActivityEntry{}
	}
	return entries, nil
}

// GetTraffic fetches raw hits and daily stats (GET /admin/traffic).
func (c *Client) GetTraffic(ctx context.Context, token string) (Traffic, error) {
	if err := requireToken(token); err != nil {
		return Traffic{}, err
	}
	var t Traffic
	if err := c.do(ctx, http.MethodGet, "/admin/traffic", token, nil, &t); err != nil {
		return Traffic{}, err
	}
	t.normalize()
	return t, nil
}
