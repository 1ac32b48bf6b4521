package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxRawTraffic is the number of raw traffic hits kept, most recent first.
const MaxRawTraffic = 100

// MaxDailyStats is the number of daily traffic rows kept.
const MaxDailyStats = 30

// Role is a user's permission level on the backend.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// Roles lists every assignable role in display order.
var Roles = []Role{RoleAdmin, RoleEditor, RoleViewer}

// ParseRole matches s case-insensitively against the fixed role set.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return "", &SchemaError{Field: "role", Reason: fmt.Sprintf("unknown role %q", s)}
}

// SchemaError reports a payload that does not match the expected schema.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// User is an account as listed by GET /admin/users.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts both "_id" and "id" and validates the role.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		DocID     json.RawMessage `json:"_id"`
		ID        json.RawMessage `json:"id"`
		Email     string          `json:"email"`
		Role      string          `json:"role"`
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw.DocID, raw.ID)
	if err != nil {
		return err
	}
	if raw.Email == "" {
		return &SchemaError{Field: "user.email", Reason: "missing"}
	}
	role, err := ParseRole(raw.Role)
	if err != nil {
		return err
	}
	created, err := decodeTime(raw.CreatedAt)
	if err != nil {
		return &SchemaError{Field: "user.createdAt", Reason: err.Error()}
	}

	*u = User{ID: id, Email: raw.Email, Role: role, CreatedAt: created}
	return nil
}

// FormSubmission is a contact form entry as listed by GET /admin/forms.
type FormSubmission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Message     string    `json:"message"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// UnmarshalJSON accepts both "_id" and "id".
func (f *FormSubmission) UnmarshalJSON(data []byte) error {
	var raw struct {
		DocID       json.RawMessage `json:"_id"`
		ID          json.RawMessage `json:"id"`
		Name        string          `json:"name"`
		Email       string          `json:"email"`
		Message     string          `json:"message"`
		SubmittedAt json.RawMessage `json:"submittedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw.DocID, raw.ID)
	if err != nil {
		return err
	}
	if raw.Email == "" {
		return &SchemaError{Field: "form.email", Reason: "missing"}
	}
	submitted, err := decodeTime(raw.SubmittedAt)
	if err != nil {
		return &SchemaError{Field: "form.submittedAt", Reason: err.Error()}
	}

	*f = FormSubmission{
		ID:          id,
		Name:        raw.Name,
		Email:       raw.Email,
		Message:     raw.Message,
		SubmittedAt: submitted,
	}
	return nil
}

// Analytics holds the aggregate counters from GET /admin/analytics.
type Analytics struct {
	Signups     int `json:"signups"`
	Submissions int `json:"submissions"`
	Traffic     int `json:"traffic"`
}

func (a Analytics) validate() error {
	if a.Signups < 0 || a.Submissions < 0 || a.Traffic < 0 {
		return &SchemaError{Field: "analytics", Reason: "negative counter"}
	}
	return nil
}

// TrafficHit is one request recorded by the backend.
type TrafficHit struct {
	Endpoint  string    `json:"endpoint"`
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON requires an endpoint and a parseable timestamp.
func (h *TrafficHit) UnmarshalJSON(data []byte) error {
	var raw struct {
		Endpoint  string          `json:"endpoint"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Endpoint == "" {
		return &SchemaError{Field: "traffic.endpoint", Reason: "missing"}
	}
	ts, err := decodeTime(raw.Timestamp)
	if err != nil {
		return &SchemaError{Field: "traffic.timestamp", Reason: err.Error()}
	}
	*h = TrafficHit{Endpoint: raw.Endpoint, Timestamp: ts}
	return nil
}

// DailyStat is one day of aggregated traffic.
type DailyStat struct {
	Date           string `json:"date"`
	Visits         int    `json:"visits"`
	UniqueVisitors int    `json:"uniqueVisitors"`
}

// Traffic is the payload of GET /admin/traffic.
type Traffic struct {
	RawTraffic []TrafficHit `json:"rawTraffic"`
	DailyStats []DailyStat  `json:"dailyStats"`
}

// normalize enforces the size bounds on both sequences.
func (t *Traffic) normalize() {
	if t.RawTraffic == nil {
		t.RawTraffic = []TrafficHit{}
	}
	if len(t.RawTraffic) > MaxRawTraffic {
		t.RawTraffic = t.RawTraffic[:MaxRawTraffic]
	}
	if t.DailyStats == nil {
		t.DailyStats = []DailyStat{}
	}
	if len(t.DailyStats) > MaxDailyStats {
		t.DailyStats = t.DailyStats[:MaxDailyStats]
	}
}

// Settings holds site-wide settings. Fields the console does not know are
// kept in Extra and written back unchanged on save.
type Settings struct {
	SiteTitle    string
	SupportEmail string
	Extra        map[string]json.RawMessage
}

// UnmarshalJSON splits known fields from the rest.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	out := Settings{}
	for key, val := range all {
		switch key {
		case "siteTitle":
			if err := json.Unmarshal(val, &out.SiteTitle); err != nil {
				return &SchemaError{Field: "settings.siteTitle", Reason: err.Error()}
			}
		case "supportEmail":
			if err := json.Unmarshal(val, &out.SupportEmail); err != nil {
				return &SchemaError{Field: "settings.supportEmail", Reason: err.Error()}
			}
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]json.RawMessage)
			}
			out.Extra[key] = val
		}
	}
	*s = out
	return nil
}

// MarshalJSON writes Extra first so the known fields always win.
func (s Settings) MarshalJSON() ([]byte, error) {
	all := make(map[string]any, len(s.Extra)+2)
	for k, v := range s.Extra {
		all[k] = v
	}
	all["siteTitle"] = s.SiteTitle
	all["supportEmail"] = s.SupportEmail
	return json.Marshal(all)
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := Settings{SiteTitle: s.SiteTitle, SupportEmail: s.SupportEmail}
	if s.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// ActivityEntry is one line of the admin activity log.
type ActivityEntry struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON tolerates both timestamp encodings.
func (a *ActivityEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Action    string          `json:"action"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := decodeTime(raw.Timestamp)
	if err != nil {
		return &SchemaError{Field: "activity.timestamp", Reason: err.Error()}
	}
	*a = ActivityEntry{Action: raw.Action, Timestamp: ts}
	return nil
}

// --- Request bodies ---

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// ContactRequest is the body of POST /forms/submit.
type ContactRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Message        string `json:"message"`
	RecaptchaToken string `json:"recaptchaToken"`
}

// --- Decoding helpers ---

// decodeID returns the first non-empty identifier. Identifiers may be JSON
// strings or numbers.
func decodeID(candidates ...json.RawMessage) (string, error) {
	for _, raw := range candidates {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		if raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return "", &SchemaError{Field: "id", Reason: err.Error()}
			}
			if s != "" {
				return s, nil
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", &SchemaError{Field: "id", Reason: "not a string or number"}
		}
		return n.String(), nil
	}
	return "", &SchemaError{Field: "id", Reason: "missing"}
}

// decodeTime accepts an RFC 3339 string, Unix milliseconds, or null/absent
// (zero time).
func decodeTime(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("not an RFC 3339 timestamp: %q", s)
		}
		return t.UTC(), nil
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a timestamp: %s", raw)
	}
	return time.UnixMilli(ms).UTC(), nil
}
