package dashboard

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/innohedge/console/internal/apiclient"
)

// Derived views are pure functions of their inputs and are recomputed on
// every render; nothing here is stored on the orchestrator.

const (
	submissionDays    = 7
	registrationMonth = 6
)

// normalizeQuery lower-cases q. Whitespace is significant; invalid UTF-8
// is treated as an empty query.
func normalizeQuery(q string) string {
	if !utf8.ValidString(q) {
		return ""
	}
	return strings.ToLower(q)
}

// FilterUsers returns the users whose email contains query,
// case-insensitively, in their original order. An empty query matches all.
func FilterUsers(users []apiclient.User, query string) []apiclient.User {
	q := normalizeQuery(query)
	out := make([]apiclient.User, 0, len(users))
	for _, u := range users {
		if q == "" || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	return out
}

// FilterForms is FilterUsers for form submissions.
func FilterForms(forms []apiclient.FormSubmission, query string) []apiclient.FormSubmission {
	q := normalizeQuery(query)
	out := make([]apiclient.FormSubmission, 0, len(forms))
	for _, f := range forms {
		if q == "" || strings.Contains(strings.ToLower(f.Email), q) {
			out = append(out, f)
		}
	}
	return out
}

// SubmissionTimeline counts submissions per UTC day for the seven days
// ending on now's day, oldest first.
func SubmissionTimeline(forms []apiclient.FormSubmission, now time.Time) []DayCount {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	out := make([]DayCount, submissionDays)
	index := make(map[string]int, submissionDays)
	for i := range out {
		day := today.AddDate(0, 0, i-(submissionDays-1)).Format(time.DateOnly)
		out[i] = DayCount{Date: day}
		index[day] = i
	}

	for _, f := range forms {
		if f.SubmittedAt.IsZero() {
			continue
		}
		if i, ok := index[f.SubmittedAt.UTC().Format(time.DateOnly)]; ok {
			out[i].Count++
		}
	}
	return out
}

// RegistrationTimeline counts users created per UTC month for the six
// months ending on now's month, oldest first. Users without a creation
// time are skipped.
func RegistrationTimeline(users []apiclient.User, now time.Time) []MonthCount {
	now = now.UTC()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	out := make([]MonthCount, registrationMonth)
	index := make(map[string]int, registrationMonth)
	for i := range out {
		key := month.AddDate(0, i-(registrationMonth-1), 0).Format("2006-01")
		out[i] = MonthCount{Month: key}
		index[key] = i
	}

	for _, u := range users {
		if u.CreatedAt.IsZero() {
			continue
		}
		if i, ok := index[u.CreatedAt.UTC().Format("2006-01")]; ok {
			out[i].Count++
		}
	}
	return out
}

// Activity categories, matched in this order.
const (
	CategoryUpdated  = "Updated"
	CategoryDeleted  = "Deleted"
	CategoryCreated  = "Created"
	CategorySettings = "Settings"
	CategoryOther    = "Other"
)

// classifyAction buckets an activity action by its first matching keyword.
func classifyAction(action string) string {
	switch {
	case strings.Contains(action, "Updated"):
		return CategoryUpdated
	case strings.Contains(action, "Deleted"):
		return CategoryDeleted
	case strings.Contains(action, "Created"):
		return CategoryCreated
	case strings.Contains(action, "settings"):
		return CategorySettings
	default:
		return CategoryOther
	}
}

// ActivityBreakdown counts entries per category, largest first. Ties keep
// the order in which the categories first appear.
func ActivityBreakdown(entries []apiclient.ActivityEntry) []CategoryCount {
	var out []CategoryCount
	index := make(map[string]int)
	for _, e := range entries {
		label := classifyAction(e.Action)
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, CategoryCount{Label: label})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	if out == nil {
		out = []CategoryCount{}
	}
	return out
}

// RoleDistribution counts users per role, always in Admin, Editor, Viewer
// order, zero counts included.
func RoleDistribution(users []apiclient.User) []CategoryCount {
	out := make([]CategoryCount, len(apiclient.Roles))
	for i, r := range apiclient.Roles {
		out[i].Label = string(r)
	}
	for _, u := range users {
		for i, r := range apiclient.Roles {
			if u.Role == r {
				out[i].Count++
				break
			}
		}
	}
	return out
}
