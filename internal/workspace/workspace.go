// Package workspace keeps the per-tab view state of the front server: the
// tab's session, its API client, the cached catalog, the open booking
// drawer and the appointment list. It also relays session changes and
// post-booking navigation to the tab's event stream.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/internal/appointments"
	"github.com/wolfman30/reserv/internal/booking"
	"github.com/wolfman30/reserv/internal/catalog"
	"github.com/wolfman30/reserv/internal/observability/metrics"
	"github.com/wolfman30/reserv/internal/provider"
	"github.com/wolfman30/reserv/internal/session"
	"github.com/wolfman30/reserv/pkg/logging"
)

var (
	ErrNotLoggedIn     = errors.New("workspace: not logged in")
	ErrNoDrawer        = errors.New("workspace: no booking drawer open")
	ErrServiceNotFound = errors.New("workspace: service not found")
	ErrClosed          = errors.New("workspace: closed")
)

// SessionView is the public part of the tab's session.
type SessionView struct {
	SessionID string          `json:"sessionId"`
	LoggedIn  bool            `json:"loggedIn"`
	Profile   session.Profile `json:"profile"`
}

// CatalogView is the filtered catalog page.
type CatalogView struct {
	Categories []string           `json:"categories"`
	Providers  []catalog.Provider `json:"providers"`
	Services   []catalog.Service  `json:"services"`
	Criteria   catalog.Criteria   `json:"criteria"`
	Error      string             `json:"error,omitempty"`
}

// Workspace is the state of one browser tab.
type Workspace struct {
	id      string
	session *session.Store
	api     *apiclient.Client
	cfg     Settings
	metrics *metrics.WorkflowMetrics
	logger  *logging.Logger
	now     func() time.Time
	events  *hub

	ctx         context.Context
	cancel      context.CancelFunc
	stopSession func()
	relayDone   chan struct{}

	mu       sync.Mutex
	lastSeen time.Time
	catalog  *catalog.Catalog
	drawer   *booking.Drawer
	list     *appointments.ListModel
	listRole session.Role
	closed   bool
}

func newWorkspace(store *session.Store, api *apiclient.Client, cfg Settings, m *metrics.WorkflowMetrics, logger *logging.Logger, now func() time.Time) *Workspace {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Workspace{
		id:        store.ID(),
		session:   store,
		api:       api,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With("session_id", store.ID()),
		now:       now,
		events:    newHub(),
		ctx:       ctx,
		cancel:    cancel,
		relayDone: make(chan struct{}),
		lastSeen:  now(),
	}
	changes, stop := store.Subscribe()
	w.stopSession = stop
	go w.relay(changes)
	return w
}

func (w *Workspace) ID() string { return w.id }
func (w *Workspace) Session() *session.Store { return w.session }
func (w *Workspace) API() *apiclient.Client { return w.api }
func (w *Workspace) Editor() *provider.Editor { return provider.NewEditor(w.api, w.logger) }
func (w *Workspace) Logger() *logging.Logger { return w.logger }
func (w *Workspace) Context() context.Context { return w.ctx }

// relay republishes session changes and drops role-bound state on logout.
func (w *Workspace) relay(changes <-chan session.Event) {
	defer close(w.relayDone)
	for ev := range changes {
		if !ev.LoggedIn {
			w.teardown()
		}
		p := ev.Profile
		w.events.publish(Event{Type: EventAuthChanged, LoggedIn: ev.LoggedIn, Profile: &p, At: ev.At})
	}
}

// Subscribe returns the tab's event stream. The channel closes when the
// workspace closes or cancel is called.
func (w *Workspace) Subscribe() (<-chan Event, func()) {
	return w.events.subscribe()
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

// LastSeen is the time of the last request for this tab.
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Workspace) SessionView() SessionView {
	return SessionView{
		SessionID: w.id,
		LoggedIn:  w.session.IsLoggedIn(),
		Profile:   w.session.Profile(),
	}
}

// Login exchanges credentials and stores the token. The role comes from the
// response, or from the token's claims when the response omits it.
func (w *Workspace) Login(ctx context.Context, email, password string) (SessionView, error) {
	email = strings.TrimSpace(email)
	res, err := w.api.Login(ctx, apiclient.LoginRequest{Email: email, Password: password})
	if err != nil {
		return w.SessionView(), err
	}
	role := session.ParseRole(res.Role)
	if role == session.RoleNone {
		role = session.RoleFromToken(res.Token)
	}
	profileEmail := res.Email
	if profileEmail == "" {
		profileEmail = email
	}
	if err := w.session.Set(ctx, res.Token, session.Profile{Email: profileEmail, Role: role}); err != nil {
		if errors.Is(err, session.ErrEmptyToken) {
			return w.SessionView(), fmt.Errorf("workspace: login: %w", err)
		}
		w.logger.Warn("login stored in memory only", "error", err)
	}
	w.logger.Info("logged in", "role", string(role))
	return w.SessionView(), nil
}

// Logout clears the session and drops everything that belonged to it.
func (w *Workspace) Logout(ctx context.Context) error {
	err := w.session.Clear(ctx)
	w.teardown()
	if err != nil {
		return fmt.Errorf("workspace: logout: %w", err)
	}
	w.logger.Info("logged out")
	return nil
}

func (w *Workspace) requireLogin() error {
	if !w.session.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	return nil
}

// Catalog returns the filtered catalog. The first call, or refresh, loads
// it from the API.
func (w *Workspace) Catalog(ctx context.Context, c catalog.Criteria, refresh bool) (CatalogView, error) {
	if err := w.requireLogin(); err != nil {
		return CatalogView{}, err
	}
	cat, err := w.loadCatalog(ctx, refresh)
	if err != nil {
		return CatalogView{}, err
	}
	return CatalogView{
		Categories: cat.Categories,
		Providers:  cat.Providers,
		Services:   catalog.Filter(cat.Services, c, cat.Index()),
		Criteria:   c,
		Error:      cat.Error,
	}, nil
}

func (w *Workspace) loadCatalog(ctx context.Context, refresh bool) (catalog.Catalog, error) {
	w.mu.Lock()
	cached := w.catalog
	w.mu.Unlock()
	if cached != nil && !refresh {
		return *cached, nil
	}

	cat, err := catalog.NewLoader(w.api, w.logger).Load(ctx)
	if err != nil {
		return catalog.Catalog{}, err
	}
	w.mu.Lock()
	if cat.Error == "" {
		w.catalog = &cat
	}
	w.mu.Unlock()
	return cat, nil
}

// OpenDrawer opens the booking drawer for serviceID, closing any drawer
// that was already open.
func (w *Workspace) OpenDrawer(ctx context.Context, serviceID string) (*booking.Drawer, error) {
	if err := w.requireLogin(); err != nil {
		return nil, err
	}
	cat, err := w.loadCatalog(ctx, false)
	if err != nil {
		return nil, err
	}
	var (
		svc   catalog.Service
		found bool
	)
	for _, s := range cat.Services {
		if s.ID == serviceID {
			svc, found = s, true
			break
		}
	}
	if !found {
		return nil, ErrServiceNotFound
	}

	d := booking.OpenDrawer(svc, cat.Providers, "", booking.DrawerDeps{
		Slots:        w.api,
		Creator:      w.api,
		Navigate:     w.navigate,
		ConfirmDelay: w.cfg.ConfirmDelay,
		Logger:       w.logger,
		Metrics:      w.metrics,
		Clock:        w.now,
		Location:     w.cfg.Location,
	})

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		d.Close()
		return nil, ErrClosed
	}
	prev := w.drawer
	w.drawer = d
	w.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	w.logger.Debug("drawer opened", "service_id", serviceID)
	return d, nil
}

// Drawer returns the open drawer.
func (w *Workspace) Drawer() (*booking.Drawer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.drawer == nil {
		return nil, ErrNoDrawer
	}
	return w.drawer, nil
}

// CloseDrawer closes the drawer, canceling its slot request and any
// pending confirmation.
func (w *Workspace) CloseDrawer() {
	w.mu.Lock()
	d := w.drawer
	w.drawer = nil
	w.mu.Unlock()
	if d != nil {
		d.Close()
	}
}

// navigate runs on the confirmation timer. The appointment list is dropped
// so the destination page reloads it.
func (w *Workspace) navigate(path string) {
	w.mu.Lock()
	list := w.list
	w.list = nil
	w.mu.Unlock()
	if list != nil {
		list.Close()
	}
	w.events.publish(Event{Type: EventNavigate, LoggedIn: w.session.IsLoggedIn(), Path: path, At: w.now().UTC()})
}

// Appointments returns the list for the current role, loading it on first
// use.
func (w *Workspace) Appointments(ctx context.Context) (*appointments.ListModel, error) {
	if err := w.requireLogin(); err != nil {
		return nil, err
	}
	role := w.session.Role()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	if w.list != nil && w.listRole == role {
		list := w.list
		w.mu.Unlock()
		return list, nil
	}
	stale := w.list
	list := appointments.NewListModel(appointments.SourceFor(w.api, role), w.logger,
		appointments.WithNoticeDelay(w.cfg.NoticeDelay),
		appointments.WithLocation(w.cfg.Location),
	)
	w.list = list
	w.listRole = role
	w.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	// A failed load is not cached so the next request retries it. The
	// dropped list still renders this response's error view.
	if err := list.Load(ctx); err != nil {
		w.dropList(list)
		if apiclient.IsCanceled(err) {
			return nil, err
		}
	}
	return list, nil
}

func (w *Workspace) dropList(list *appointments.ListModel) {
	w.mu.Lock()
	if w.list == list {
		w.list = nil
	}
	w.mu.Unlock()
	list.Close()
}

func (w *Workspace) Profile(ctx context.Context) (*apiclient.UserProfile, error) {
	if err := w.requireLogin(); err != nil {
		return nil, err
	}
	return w.api.Profile(ctx)
}

// teardown drops the drawer, list and catalog. Safe to call repeatedly.
func (w *Workspace) teardown() {
	w.mu.Lock()
	d, list := w.drawer, w.list
	w.drawer, w.list, w.catalog = nil, nil, nil
	w.mu.Unlock()
	if d != nil {
		d.Close()
	}
	if list != nil {
		list.Close()
	}
}

// Close releases the workspace. Outstanding requests are canceled, timers
// stop and every event subscriber is closed.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.stopSession()
	<-w.relayDone
	w.teardown()
	w.events.close()
}
