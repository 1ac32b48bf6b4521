// Package dashboard is the admin dashboard plugin. Its core is the
// Orchestrator, which loads the six backend collections for one session,
// keeps traffic live from a push channel, derives filtered and aggregated
// views, and applies remote mutations to local state once the backend has
// accepted them.
package dashboard

import (
	"errors"
	"time"

	"github.com/innohedge/console/internal/apiclient"
)

// Tab is a dashboard section.
type Tab string

const (
	TabAnalytics Tab = "analytics"
	TabUsers     Tab = "users"
	TabForms     Tab = "forms"
	TabSettings  Tab = "settings"
	TabTraffic   Tab = "traffic"
	TabActivity  Tab = "activity"
)

// Tabs lists every tab in sidebar order.
var Tabs = []Tab{TabAnalytics, TabUsers, TabForms, TabSettings, TabTraffic, TabActivity}

// ParseTab reports whether s names a known tab.
func ParseTab(s string) (Tab, bool) {
	for _, t := range Tabs {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Label is the sidebar caption for the tab.
func (t Tab) Label() string {
	switch t {
	case TabAnalytics:
		return "Analytics"
	case TabUsers:
		return "Users"
	case TabForms:
		return "Form Submissions"
	case TabSettings:
		return "Settings"
	case TabTraffic:
		return "Traffic"
	case TabActivity:
		return "Activity Log"
	}
	return string(t)
}

// NoticeLevel classifies a notice for display.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a one-shot message for the user, shown once and then dropped.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// User-facing notices for mutation outcomes.
const (
	msgRoleUpdated      = "User Updated"
	msgRoleFailed       = "You can't edit user"
	msgRoleInvalid      = "Invalid role"
	msgUserDeleted      = "User removed"
	msgUserDeleteFailed = "You can't delete this user"
	msgFormDeleted      = "Form submission deleted"
	msgFormDeleteFailed = "Failed to delete form submission"
	msgSettingsSaved    = "Settings updated successfully!"
	msgSettingsFailed   = "Failed to update settings"
)

// Confirmation prompts for destructive operations.
const (
	PromptDeleteUser = "Are you sure you want to delete this user?"
	PromptDeleteForm = "Are you sure you want to delete this form submission?"
)

var (
	// ErrNoSession is returned by Mount when there is no bearer credential.
	ErrNoSession = errors.New("dashboard: no session credential")

	// ErrNotLoaded rejects mutations before the initial load has succeeded.
	ErrNotLoaded = errors.New("dashboard: data not loaded")

	// ErrClosed is returned once the orchestrator has been torn down.
	ErrClosed = errors.New("dashboard: orchestrator closed")

	// ErrAlreadyMounted is returned by a second call to Mount.
	ErrAlreadyMounted = errors.New("dashboard: already mounted")
)

// Selection is the item open in the detail modal. At most one field is set.
type Selection struct {
	User *apiclient.User
	Form *apiclient.FormSubmission
}

// ViewState is the presentation state of one dashboard.
type ViewState struct {
	Tab         Tab
	Search      string
	Selected    *Selection
	SidebarOpen bool
	Loading     bool
}

// Snapshot is a consistent copy of an orchestrator's state, safe to read
// without locking.
type Snapshot struct {
	View      ViewState
	Users     []apiclient.User
	Forms     []apiclient.FormSubmission
	Analytics apiclient.Analytics
	Traffic   apiclient.Traffic
	Settings  apiclient.Settings
	Activity  []apiclient.ActivityEntry
}

// FilteredUsers applies the current search query to Users.
func (s Snapshot) FilteredUsers() []apiclient.User {
	return FilterUsers(s.Users, s.View.Search)
}

// FilteredForms applies the current search query to Forms.
func (s Snapshot) FilteredForms() []apiclient.FormSubmission {
	return FilterForms(s.Forms, s.View.Search)
}

// DayCount is one point of a per-day series. Date is YYYY-MM-DD (UTC).
type DayCount struct {
	Date  string
	Count int
}

// MonthCount is one point of a per-month series. Month is YYYY-MM (UTC).
type MonthCount struct {
	Month string
	Count int
}

// CategoryCount is one slice of a categorical breakdown.
type CategoryCount struct {
	Label string
	Count int
}

// Charts holds every derived chart series for one snapshot.
type Charts struct {
	Submissions   []DayCount
	Registrations []MonthCount
	Activity      []CategoryCount
	Roles         []CategoryCount
}

// ChartsAt derives all chart series relative to now.
func (s Snapshot) ChartsAt(now time.Time) Charts {
	return Charts{
		Submissions:   SubmissionTimeline(s.Forms, now),
		Registrations: RegistrationTimeline(s.Users, now),
		Activity:      ActivityBreakdown(s.Activity),
		Roles:         RoleDistribution(s.Users),
	}
}
