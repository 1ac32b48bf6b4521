package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/innohedge/console/internal/apiclient"
	"github.com/innohedge/console/internal/apperror"
	"github.com/innohedge/console/internal/middleware"
	"github.com/innohedge/console/internal/plugins/auth"
	"github.com/innohedge/console/internal/push"
	"github.com/innohedge/console/internal/sanitize"
	"github.com/innohedge/console/internal/templates/layouts"
)

//go:embed views/*.html
var viewsFS embed.FS

var pages = layouts.MustParsePages(viewsFS, "views/*.html")

// previewLength is the number of characters of a message shown in the
// form submissions table.
const previewLength = 80

// streamHeartbeat is how often an idle traffic stream sends a comment line.
const streamHeartbeat = 25 * time.Second

// Handler serves the dashboard pages. Every route runs behind
// auth.RequireAuth; the session's orchestrator comes from the registry.
type Handler struct {
	registry *Registry
	now      func() time.Time
}

// NewHandler creates a new dashboard handler.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry, now: time.Now}
}

// orchestrator returns the orchestrator of the current login session,
// mounting it on first use.
func (h *Handler) orchestrator(c echo.Context) (*Orchestrator, error) {
	session := auth.GetSession(c)
	if session == nil {
		return nil, apperror.NewUnauthorized("login required")
	}
	o, err := h.registry.Acquire(c.Request().Context(), session.ID, session.APIToken)
	if errors.Is(err, ErrNoSession) {
		return nil, apperror.NewUnauthorized("login required")
	}
	return o, err
}

// backToDashboard finishes a form post with a redirect, so notices queued
// by the mutation show on the next page view.
func backToDashboard(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

// mutationResult maps a mutation error to the response. Failures the user
// should see are already queued as notices by the orchestrator.
func mutationResult(c echo.Context, op string, err error) error {
	switch {
	case err == nil:
	case errors.Is(err, ErrNotLoaded), errors.Is(err, ErrClosed):
		slog.Debug("dashboard mutation skipped", slog.String("op", op), slog.Any("error", err))
	default:
		slog.Debug("dashboard mutation failed", slog.String("op", op), slog.Any("error", err))
	}
	return backToDashboard(c)
}

// --- Pages ---

// formRow is a form submission with its user-supplied text sanitized.
type formRow struct {
	ID          string
	Name        string
	Email       string
	Message     string
	Preview     string
	SubmittedAt time.Time
}

func newFormRow(f apiclient.FormSubmission) formRow {
	return formRow{
		ID:          f.ID,
		Name:        sanitize.Text(f.Name),
		Email:       sanitize.Text(f.Email),
		Message:     sanitize.Text(f.Message),
		Preview:     sanitize.Preview(f.Message, previewLength),
		SubmittedAt: f.SubmittedAt,
	}
}

// bar is one chart bar with its height relative to the series maximum.
type bar struct {
	Label   string
	Count   int
	Percent int
}

func dayBars(in []DayCount) []bar {
	out := make([]bar, len(in))
	max := 0
	for _, d := range in {
		if d.Count > max {
			max = d.Count
		}
	}
	for i, d := range in {
		out[i] = bar{Label: d.Date, Count: d.Count, Percent: percentOf(d.Count, max)}
	}
	return out
}

func monthBars(in []MonthCount) []bar {
	out := make([]bar, len(in))
	max := 0
	for _, m := range in {
		if m.Count > max {
			max = m.Count
		}
	}
	for i, m := range in {
		out[i] = bar{Label: m.Month, Count: m.Count, Percent: percentOf(m.Count, max)}
	}
	return out
}

func categoryBars(in []CategoryCount) []bar {
	out := make([]bar, len(in))
	total := 0
	for _, c := range in {
		total += c.Count
	}
	for i, c := range in {
		out[i] = bar{Label: c.Label, Count: c.Count, Percent: percentOf(c.Count, total)}
	}
	return out
}

func percentOf(n, max int) int {
	if max <= 0 {
		return 0
	}
	return n * 100 / max
}

// chart is one titled bar chart on the analytics tab.
type chart struct {
	Title string
	Bars  []bar
}

// tabLink is one sidebar entry.
type tabLink struct {
	Tab    Tab
	Label  string
	Active bool
}

// dashboardPage is the data for views/dashboard.html.
type dashboardPage struct {
	View      ViewState
	Tabs      []tabLink
	Notices   []Notice
	Roles     []apiclient.Role
	Users     []apiclient.User
	Forms     []formRow
	Analytics apiclient.Analytics
	Traffic   apiclient.Traffic
	Settings  apiclient.Settings
	Activity  []apiclient.ActivityEntry
	Charts    []chart

	SelectedUser *apiclient.User
	SelectedForm *formRow
}

// loadingPage is the data for views/loading.html.
type loadingPage struct {
	RefreshSeconds int
}

func (h *Handler) buildPage(snap Snapshot, notices []Notice) dashboardPage {
	charts := snap.ChartsAt(h.now())

	tabs := make([]tabLink, len(Tabs))
	for i, t := range Tabs {
		tabs[i] = tabLink{Tab: t, Label: t.Label(), Active: t == snap.View.Tab}
	}

	users := snap.FilteredUsers()
	forms := snap.FilteredForms()
	rows := make([]formRow, len(forms))
	for i, f := range forms {
		rows[i] = newFormRow(f)
	}

	page := dashboardPage{
		View:      snap.View,
		Tabs:      tabs,
		Notices:   notices,
		Roles:     apiclient.Roles,
		Users:     users,
		Forms:     rows,
		Analytics: snap.Analytics,
		Traffic:   snap.Traffic,
		Settings:  snap.Settings,
		Activity:  snap.Activity,
		Charts: []chart{
			{Title: "Form submissions (7 days)", Bars: dayBars(charts.Submissions)},
			{Title: "Registrations (6 months)", Bars: monthBars(charts.Registrations)},
			{Title: "Activity", Bars: categoryBars(charts.Activity)},
			{Title: "Roles", Bars: categoryBars(charts.Roles)},
		},
	}
	if sel := snap.View.Selected; sel != nil {
		page.SelectedUser = sel.User
		if sel.Form != nil {
			row := newFormRow(*sel.Form)
			page.SelectedForm = &row
		}
	}
	return page
}

// Show renders the dashboard (GET /dashboard). The query may switch the
// tab (?tab=), set the search (?q=) or close the detail modal (?close=1).
// While the initial load is outstanding, or after it failed, the loading
// page is shown instead.
func (h *Handler) Show(c echo.Context) error {
	o, err := h.orchestrator(c)
	if err != nil {
		return err
	}

	if tab, ok := ParseTab(c.QueryParam("tab")); ok {
		o.SetTab(tab)
	}
	if c.QueryParams().Has("q") {
		o.SetSearch(c.QueryParam("q"))
	}
	if c.QueryParam("close") == "1" {
		o.ClearSelection()
	}

	snap := o.Snapshot()
	if snap.View.Loading {
		return middleware.Render(c, http.StatusOK, pages.Page("loading", loadingPage{RefreshSeconds: 3}))
	}
	return middleware.Render(c, http.StatusOK, pages.Page("dashboard", h.buildPage(snap, o.DrainNotices())))
}

// Reload tears down the session's orchestrator and mounts a fresh one
// (POST /dashboard/reload).
func (h *Handler) Reload(c echo.Context) error {
	session := auth.GetSession(c)
	if session == nil {
		return apperror.NewUnauthorized("login required")
	}
	if _, err := h.registry.Reload(c.Request().Context(), session.ID, session.APIToken); err != nil {
		return err
	}
	return backToDashboard(c)
}

// ToggleSidebar flips the sidebar (POST /dashboard/sidebar).
func (h *Handler) ToggleSidebar(c echo.Context) error {
	o, err := h.orchestrator(c)
	if err != nil {
		return err
	}
	o.ToggleSidebar()
	return backToDashboard(c)
}

// SelectUser opens a user in the detail modal (GET /dashboard/users/:id).
func (h *Handler) SelectUser(c echo.Context) error {
	o, err := h.orchestrator(c)
	if err != nil {
		return err
	}
	if !o.SelectUser(c.Param("id")) {
		return apperror.NewNotFound("user not found")
	}
	return backToDashboard(c)
}

// SelectForm opens a form submission in the detail modal
// (GET /dashboard/forms/:id).
func (h *Handler) SelectForm(c echo.Context) error {
	o, err := h.orchestrator(c)
	if err != nil {
		return err
	}
	if !o.SelectForm(c.Param("id")) {
		return apperror.NewNotFound("form submission not found")
	}
	return backToDashboard(c)
}

// --- Mutations ---

// UpdateRole changes a user's role (POST /dashboard/users/:id/role).
func (h *Handler) UpdateRole(c echo.Context) error {
	o, err := h.orchestrator(c)
	if err != nil {
		return err
	}
	err = o.UpdateUserRole(c.Request().Context(), c.Param("id"), c.FormValue("role"))
	return mutationResult(c, "update_role", err)
}

// confirmPage is the data for views/confirm.html.
type confirmPage struct {
	Prompt  string
	Subject string
	Action  string
}

// ConfirmDeleteUser asks before deleting a user (GET /dashboard/users/:id/delete).
func (h *Handler) ConfirmDeleteUser(c echo.Context) error {
	o, err := h.orchestrator(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	subject := id
	for _, u := range o.Snapshot().Users {
		if u.ID == id {
			subject = u.Email
			break
		}
	}
	page := confirmPage{
		Prompt:  PromptDeleteUser,
		Subject: subject,
		Action:  fmt.Sprintf("/dashboard/users/%s/delete", id),
	}
	return middleware.Render(c, http.StatusOK, pages.Page("confirm", page))
}

// DeleteUser deletes a user once the confirmation form says yes
// (POST /dashboard/users/:id/delete).
func (h *Handler) DeleteUser(c echo.Context) error {
	o, err := h.orchestrator(c)
	if err != nil {
		return err
	}
	err = o.DeleteUser(c.Request().Context(), c.Param("id"), formConfirmer(c))
	return mutationResult(c, "delete_user", err)
}

// ConfirmDeleteForm asks before deleting a form submission
// (GET /dashboard/forms/:id/delete).
func (h *Handler) ConfirmDeleteForm(c echo.Context) error {
	o, err := h.orchestrator(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	subject := id
	for _, f := range o.Snapshot().Forms {
		if f.ID == id {
			subject = sanitize.Text(f.Name) + " <" + sanitize.Text(f.Email) + ">"
			break
		}
	}
	page := confirmPage{
		Prompt:  PromptDeleteForm,
		Subject: subject,
		Action:  fmt.Sprintf("/dashboard/forms/%s/delete", id),
	}
	return middleware.Render(c, http.StatusOK, pages.Page("confirm", page))
}

// DeleteForm deletes a form submission once confirmed
// (POST /dashboard/forms/:id/delete).
func (h *Handler) DeleteForm(c echo.Context) error {
	o, err := h.orchestrator(c)
	if err != nil {
		return err
	}
	err = o.DeleteForm(c.Request().Context(), c.Param("id"), formConfirmer(c))
	return mutationResult(c, "delete_form", err)
}

// formConfirmer approves when the posted confirm field is "yes".
func formConfirmer(c echo.Context) Confirmer {
	answer := strings.ToLower(strings.TrimSpace(c.FormValue("confirm")))
	return ConfirmFunc(func(context.Context, string) bool { return answer == "yes" })
}

// UpdateSettings saves the site settings (POST /dashboard/settings).
// Settings fields the form does not show are carried over unchanged.
func (h *Handler) UpdateSettings(c echo.Context) error {
	o, err := h.orchestrator(c)
	if err != nil {
		return err
	}
	s := o.Snapshot().Settings
	s.SiteTitle = strings.TrimSpace(c.FormValue("siteTitle"))
	s.SupportEmail = strings.TrimSpace(c.FormValue("supportEmail"))

	err = o.UpdateSettings(c.Request().Context(), s)
	return mutationResult(c, "update_settings", err)
}

// --- Live traffic ---

// TrafficStream relays live traffic hits as Server-Sent Events
// (GET /dashboard/traffic/stream). Each hit is sent as a "newTraffic"
// event whose data is {endpoint, timestamp}.
func (h *Handler) TrafficStream(c echo.Context) error {
	o, err := h.orchestrator(c)
	if err != nil {
		return err
	}
	hits, unsubscribe := o.SubscribeTraffic()
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case hit, ok := <-hits:
			if !ok {
				return nil
			}
			if err := writeTrafficEvent(res, hit); err != nil {
				slog.Debug("traffic stream write failed", slog.Any("error", err))
				return nil
			}
			res.Flush()
		}
	}
}

// writeTrafficEvent writes one SSE frame.
func writeTrafficEvent(w *echo.Response, hit apiclient.TrafficHit) error {
	data, err := json.Marshal(hit)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", push.EventNewTraffic, data)
	return err
}
