package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/innohedge/console/internal/apiclient"
	"github.com/innohedge/console/internal/push"
)

// AdminAPI is the subset of the backend API the dashboard needs. It is
// satisfied by *apiclient.Client.
type AdminAPI interface {
	ListUsers(ctx context.Context, token string) ([]apiclient.User, error)
	UpdateUserRole(ctx context.Context, token, userID string, role apiclient.Role) error
	DeleteUser(ctx context.Context, token, userID string) error
	ListForms(ctx context.Context, token string) ([]apiclient.FormSubmission, error)
	DeleteForm(ctx context.Context, token, formID string) error
	GetAnalytics(ctx context.Context, token string) (apiclient.Analytics, error)
	GetSettings(ctx context.Context, token string) (apiclient.Settings, error)
	UpdateSettings(ctx context.Context, token string, s apiclient.Settings) error
	ListActivity(ctx context.Context, token string) ([]apiclient.ActivityEntry, error)
	GetTraffic(ctx context.Context, token string) (apiclient.Traffic, error)
}

// Confirmer approves destructive operations. A nil Confirmer declines.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Options tunes an orchestrator.
type Options struct {
	// LoadTimeout bounds the initial load. Zero means no bound.
	LoadTimeout time.Duration

	// DefaultSettings is shown until the backend settings have loaded.
	DefaultSettings apiclient.Settings

	// Now is the clock used for activity timestamps. Defaults to time.Now.
	Now func() time.Time
}

// trafficListenerBuffer is the per-listener backlog before hits are dropped.
const trafficListenerBuffer = 16

// Orchestrator owns the dashboard state for one session. All state
// transitions happen under mu; the push consumer goroutine and request
// handlers are the only writers.
type Orchestrator struct {
	api    AdminAPI
	dialer push.Dialer
	token  string
	opts   Options

	// ctx is canceled on Close so in-flight work stops and late results
	// are discarded.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	mounted   bool
	loaded    bool
	closed    bool
	view      ViewState
	users     []apiclient.User
	forms     []apiclient.FormSubmission
	analytics apiclient.Analytics
	traffic   apiclient.Traffic
	settings  apiclient.Settings
	activity  []apiclient.ActivityEntry
	notices   []Notice
	channel   push.Channel
	listeners map[int]chan apiclient.TrafficHit
	nextID    int
}

// New creates an unmounted orchestrator for the given bearer credential.
func New(api AdminAPI, dialer push.Dialer, token string, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if dialer == nil {
		dialer = push.NopDialer{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		api:    api,
		dialer: dialer,
		token:  token,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		view: ViewState{
			Tab:         TabUsers,
			SidebarOpen: true,
			Loading:     true,
		},
		users:     []apiclient.User{},
		forms:     []apiclient.FormSubmission{},
		traffic:   apiclient.Traffic{RawTraffic: []apiclient.TrafficHit{}, DailyStats: []apiclient.DailyStat{}},
		settings:  opts.DefaultSettings.Clone(),
		activity:  []apiclient.ActivityEntry{},
		listeners: make(map[int]chan apiclient.TrafficHit),
	}
}

// bind derives a context from parent that is also canceled when the
// orchestrator closes.
func (o *Orchestrator) bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(o.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Mount loads all six collections concurrently and, once they are in,
// opens the push channel. Without a credential it returns ErrNoSession
// and issues no requests. If any fetch fails the whole load fails: the
// error is logged, collections keep their initial values and the view
// stays loading. There is no retry; a reload mounts a fresh orchestrator.
func (o *Orchestrator) Mount(ctx context.Context) error {
	if o.token == "" {
		return ErrNoSession
	}

	o.mu.Lock()
	switch {
	case o.closed:
		o.mu.Unlock()
		return ErrClosed
	case o.mounted:
		o.mu.Unlock()
		return ErrAlreadyMounted
	}
	o.mounted = true
	o.mu.Unlock()

	loadCtx, done := o.bind(ctx)
	defer done()
	if o.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(loadCtx, o.opts.LoadTimeout)
		defer cancel()
	}

	var (
		users     []apiclient.User
		forms     []apiclient.FormSubmission
		analytics apiclient.Analytics
		settings  apiclient.Settings
		activity  []apiclient.ActivityEntry
		traffic   apiclient.Traffic
	)

	g, gctx := errgroup.WithContext(loadCtx)
	g.Go(func() (err error) {
		users, err = o.api.ListUsers(gctx, o.token)
		return wrapLoad("users", err)
	})
	g.Go(func() (err error) {
		forms, err = o.api.ListForms(gctx, o.token)
		return wrapLoad("forms", err)
	})
	g.Go(func() (err error) {
		analytics, err = o.api.GetAnalytics(gctx, o.token)
		return wrapLoad("analytics", err)
	})
	g.Go(func() (err error) {
		settings, err = o.api.GetSettings(gctx, o.token)
		return wrapLoad("settings", err)
	})
	g.Go(func() (err error) {
		activity, err = o.api.ListActivity(gctx, o.token)
		return wrapLoad("activity", err)
	})
	g.Go(func() (err error) {
		traffic, err = o.api.GetTraffic(gctx, o.token)
		return wrapLoad("traffic", err)
	})

	if err := g.Wait(); err != nil {
		if o.Closed() {
			return ErrClosed
		}
		slog.Error("dashboard load failed", slog.Any("error", err))
		return err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.users = users
	o.forms = forms
	o.analytics = analytics
	o.settings = settings
	o.activity = activity
	o.traffic = traffic
	o.loaded = true
	o.view.Loading = false
	o.mu.Unlock()

	slog.Info("dashboard mounted",
		slog.Int("users", len(users)),
		slog.Int("forms", len(forms)),
		slog.Int("traffic", len(traffic.RawTraffic)),
	)

	o.openPush()
	return nil
}

func wrapLoad(resource string, err error) error {
	if err != nil {
		return fmt.Errorf("loading %s: %w", resource, err)
	}
	return nil
}

// openPush dials the push channel and starts the consumer. A failed dial
// leaves the dashboard usable without live traffic.
func (o *Orchestrator) openPush() {
	ch, err := o.dialer.Dial(o.ctx, o.token)
	if err != nil {
		slog.Warn("dashboard push unavailable", slog.Any("error", err))
		return
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		ch.Close()
		return
	}
	o.channel = ch
	o.mu.Unlock()

	go o.consume(ch)
}

// consume applies events in receipt order until the channel closes.
func (o *Orchestrator) consume(ch push.Channel) {
	for ev := range ch.Events() {
		if ev.Name != push.EventNewTraffic {
			slog.Debug("dashboard ignored push event", slog.String("event", ev.Name))
			continue
		}
		hit, err := push.DecodeTraffic(ev)
		if err != nil {
			slog.Warn("dashboard dropped malformed traffic event", slog.Any("error", err))
			continue
		}
		o.applyTraffic(hit)
	}
}

// applyTraffic prepends hit to rawTraffic and truncates it to the cap.
// Hits arriving after Close are ignored.
func (o *Orchestrator) applyTraffic(hit apiclient.TrafficHit) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	n := len(o.traffic.RawTraffic) + 1
	if n > apiclient.MaxRawTraffic {
		n = apiclient.MaxRawTraffic
	}
	raw := make([]apiclient.TrafficHit, n)
	raw[0] = hit
	copy(raw[1:], o.traffic.RawTraffic)
	o.traffic.RawTraffic = raw

	for _, l := range o.listeners {
		select {
		case l <- hit:
		default:
		}
	}
}

// SubscribeTraffic returns a channel of live traffic hits and a function
// that ends the subscription. Slow readers miss hits rather than block the
// orchestrator. The channel is closed on unsubscribe or Close.
func (o *Orchestrator) SubscribeTraffic() (<-chan apiclient.TrafficHit, func()) {
	ch := make(chan apiclient.TrafficHit, trafficListenerBuffer)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextID
	o.nextID++
	o.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if l, ok := o.listeners[id]; ok {
				delete(o.listeners, id)
				close(l)
			}
		})
	}
}

// Close tears the orchestrator down: in-flight work is canceled, the push
// channel is closed and later events are ignored. Safe to call repeatedly.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	ch := o.channel
	o.channel = nil
	for id, l := range o.listeners {
		delete(o.listeners, id)
		close(l)
	}
	o.mu.Unlock()

	o.cancel()
	if ch != nil {
		return ch.Close()
	}
	return nil
}

// Closed reports whether Close has been called.
func (o *Orchestrator) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Snapshot returns a deep copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	view := o.view
	if o.view.Selected != nil {
		sel := Selection{}
		if u := o.view.Selected.User; u != nil {
			cp := *u
			sel.User = &cp
		}
		if f := o.view.Selected.Form; f != nil {
			cp := *f
			sel.Form = &cp
		}
		view.Selected = &sel
	}

	return Snapshot{
		View:      view,
		Users:     append([]apiclient.User{}, o.users...),
		Forms:     append([]apiclient.FormSubmission{}, o.forms...),
		Analytics: o.analytics,
		Traffic: apiclient.Traffic{
			RawTraffic: append([]apiclient.TrafficHit{}, o.traffic.RawTraffic...),
			DailyStats: append([]apiclient.DailyStat{}, o.traffic.DailyStats...),
		},
		Settings: o.settings.Clone(),
		Activity: append([]apiclient.ActivityEntry{}, o.activity...),
	}
}

// DrainNotices returns the pending notices and clears the queue.
func (o *Orchestrator) DrainNotices() []Notice {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.notices
	o.notices = nil
	return out
}

// --- View state ---

// SetTab switches the active tab.
func (o *Orchestrator) SetTab(t Tab) {
	o.mu.Lock()
	o.view.Tab = t
	o.mu.Unlock()
}

// SetSearch stores the search query. Invalid UTF-8 is stored as empty.
func (o *Orchestrator) SetSearch(q string) {
	if normalizeQuery(q) == "" {
		q = ""
	}
	o.mu.Lock()
	o.view.Search = q
	o.mu.Unlock()
}

// ToggleSidebar flips the sidebar and returns the new state.
func (o *Orchestrator) ToggleSidebar() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.view.SidebarOpen = !o.view.SidebarOpen
	return o.view.SidebarOpen
}

// SelectUser opens the user with the given id in the detail modal.
// It reports false if no such user is loaded.
func (o *Orchestrator) SelectUser(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, u := range o.users {
		if u.ID == id {
			cp := u
			o.view.Selected = &Selection{User: &cp}
			return true
		}
	}
	return false
}

// SelectForm opens the form submission with the given id in the detail modal.
func (o *Orchestrator) SelectForm(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, f := range o.forms {
		if f.ID == id {
			cp := f
			o.view.Selected = &Selection{Form: &cp}
			return true
		}
	}
	return false
}

// ClearSelection closes the detail modal.
func (o *Orchestrator) ClearSelection() {
	o.mu.Lock()
	o.view.Selected = nil
	o.mu.Unlock()
}

// --- Mutations ---

// checkLoaded rejects mutations on a closed or not yet loaded orchestrator.
// Caller must hold mu.
func (o *Orchestrator) checkLoaded() error {
	if o.closed {
		return ErrClosed
	}
	if !o.loaded {
		return ErrNotLoaded
	}
	return nil
}

func (o *Orchestrator) ready() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.checkLoaded()
}

// notify queues a notice. Caller must hold mu.
func (o *Orchestrator) notify(level NoticeLevel, msg string) {
	o.notices = append(o.notices, Notice{Level: level, Message: msg})
}

// record appends an activity entry. Caller must hold mu.
func (o *Orchestrator) record(action string) {
	o.activity = append(o.activity, apiclient.ActivityEntry{Action: action, Timestamp: o.opts.Now().UTC()})
}

// fail queues an error notice unless the orchestrator is closed.
func (o *Orchestrator) fail(msg string) {
	o.mu.Lock()
	if !o.closed {
		o.notify(NoticeError, msg)
	}
	o.mu.Unlock()
}

// UpdateUserRole sets a user's role on the backend and, once accepted,
// replaces it locally. Unknown roles are rejected without a request.
func (o *Orchestrator) UpdateUserRole(ctx context.Context, userID, role string) error {
	if err := o.ready(); err != nil {
		return err
	}

	r, err := apiclient.ParseRole(role)
	if err != nil {
		o.fail(msgRoleInvalid)
		return err
	}

	callCtx, done := o.bind(ctx)
	defer done()
	if err := o.api.UpdateUserRole(callCtx, o.token, userID, r); err != nil {
		slog.Warn("dashboard role update failed",
			slog.String("user_id", userID),
			slog.String("role", string(r)),
			slog.Any("error", err),
		)
		o.fail(msgRoleFailed)
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	for i := range o.users {
		if o.users[i].ID == userID {
			o.users[i].Role = r
		}
	}
	if sel := o.view.Selected; sel != nil && sel.User != nil && sel.User.ID == userID {
		sel.User.Role = r
	}
	o.record("Updated user role to " + string(r))
	o.notify(NoticeSuccess, msgRoleUpdated)
	slog.Info("dashboard user role updated", slog.String("user_id", userID), slog.String("role", string(r)))
	return nil
}

// DeleteUser removes a user once confirm approves and the backend accepts.
// Declining is a silent no-op.
func (o *Orchestrator) DeleteUser(ctx context.Context, userID string, confirm Confirmer) error {
	if err := o.ready(); err != nil {
		return err
	}
	if confirm == nil || !confirm.Confirm(ctx, PromptDeleteUser) {
		return nil
	}

	callCtx, done := o.bind(ctx)
	defer done()
	if err := o.api.DeleteUser(callCtx, o.token, userID); err != nil {
		slog.Warn("dashboard user delete failed", slog.String("user_id", userID), slog.Any("error", err))
		o.fail(msgUserDeleteFailed)
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	kept := o.users[:0:0]
	for _, u := range o.users {
		if u.ID != userID {
			kept = append(kept, u)
		}
	}
	o.users = kept
	if sel := o.view.Selected; sel != nil && sel.User != nil && sel.User.ID == userID {
		o.view.Selected = nil
	}
	o.record("Deleted user " + userID)
	o.notify(NoticeSuccess, msgUserDeleted)
	slog.Info("dashboard user deleted", slog.String("user_id", userID))
	return nil
}

// DeleteForm removes a form submission once confirm approves and the
// backend accepts.
func (o *Orchestrator) DeleteForm(ctx context.Context, formID string, confirm Confirmer) error {
	if err := o.ready(); err != nil {
		return err
	}
	if confirm == nil || !confirm.Confirm(ctx, PromptDeleteForm) {
		return nil
	}

	callCtx, done := o.bind(ctx)
	defer done()
	if err := o.api.DeleteForm(callCtx, o.token, formID); err != nil {
		slog.Warn("dashboard form delete failed", slog.String("form_id", formID), slog.Any("error", err))
		o.fail(msgFormDeleteFailed)
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	kept := o.forms[:0:0]
	for _, f := range o.forms {
		if f.ID != formID {
			kept = append(kept, f)
		}
	}
	o.forms = kept
	if sel := o.view.Selected; sel != nil && sel.Form != nil && sel.Form.ID == formID {
		o.view.Selected = nil
	}
	o.record("Deleted form submission " + formID)
	o.notify(NoticeSuccess, msgFormDeleted)
	slog.Info("dashboard form deleted", slog.String("form_id", formID))
	return nil
}

// UpdateSettings stores s locally and saves it to the backend. On failure
// the edited values stay in place so the user can retry the save.
func (o *Orchestrator) UpdateSettings(ctx context.Context, s apiclient.Settings) error {
	o.mu.Lock()
	if err := o.checkLoaded(); err != nil {
		o.mu.Unlock()
		return err
	}
	o.settings = s.Clone()
	o.mu.Unlock()

	callCtx, done := o.bind(ctx)
	defer done()
	if err := o.api.UpdateSettings(callCtx, o.token, s); err != nil {
		slog.Warn("dashboard settings update failed", slog.Any("error", err))
		o.fail(msgSettingsFailed)
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.record("Updated site settings")
	o.notify(NoticeSuccess, msgSettingsSaved)
	slog.Info("dashboard settings updated")
	return nil
}
