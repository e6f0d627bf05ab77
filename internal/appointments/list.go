package appointments

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/internal/session"
	"github.com/wolfman30/reserv/pkg/logging"
)

var tracer = otel.Tracer("reserv.appointments")

const (
	defaultNoticeDelay = 3 * time.Second

	MsgLoadFailed   = "Failed to load appointments"
	MsgDeleted      = "Appointment deleted."
	MsgDeleteFailed = "Failed to delete appointment."
)

// ErrNotFound is returned by Delete for an id that is not in the list.
var ErrNotFound = errors.New("appointments: not found")

// Source lists and deletes appointments for the logged-in account.
type Source interface {
	List(ctx context.Context) ([]apiclient.AppointmentDTO, error)
	Delete(ctx context.Context, id string) error
}

type clientSource struct{ api *apiclient.Client }

func (s clientSource) List(ctx context.Context) ([]apiclient.AppointmentDTO, error) {
	return s.api.ClientAppointments(ctx)
}

func (s clientSource) Delete(ctx context.Context, id string) error {
	return s.api.DeleteAppointment(ctx, id)
}

type providerSource struct{ clientSource }

func (s providerSource) List(ctx context.Context) ([]apiclient.AppointmentDTO, error) {
	return s.api.ProviderAppointments(ctx)
}

// SourceFor picks the list endpoint matching role.
func SourceFor(api *apiclient.Client, role session.Role) Source {
	if role == session.RoleProvider {
		return providerSource{clientSource{api: api}}
	}
	return clientSource{api: api}
}

// Notice is a transient message shown after a background action.
type Notice struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Counts are the partition sizes after search and range filtering.
type Counts struct {
	Upcoming int `json:"upcoming"`
	Past     int `json:"past"`
	All      int `json:"all"`
}

// View is one render of the list.
type View struct {
	Tab          Tab           `json:"tab"`
	Appointments []Appointment `json:"appointments"`
	Counts       Counts        `json:"counts"`
	Loaded       bool          `json:"loaded"`
	Loading      bool          `json:"loading"`
	Error        string        `json:"error,omitempty"`
	Notice       *Notice       `json:"notice,omitempty"`
}

// Option configures a ListModel.
type Option func(*ListModel)

// WithNoticeDelay sets how long a notice stays visible.
func WithNoticeDelay(d time.Duration) Option {
	return func(m *ListModel) {
		if d > 0 {
			m.noticeDelay = d
		}
	}
}

// WithLocation sets the zone for zone-less backend date-times.
func WithLocation(loc *time.Location) Option {
	return func(m *ListModel) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// ListModel holds one account's appointments with optimistic delete.
type ListModel struct {
	source      Source
	logger      *logging.Logger
	noticeDelay time.Duration
	loc         *time.Location

	mu          sync.Mutex
	items       []Appointment
	loaded      bool
	loading     bool
	errMsg      string
	notice      *Notice
	noticeGen   uint64
	noticeTimer *time.Timer
	closed      bool
}

func NewListModel(source Source, logger *logging.Logger, opts ...Option) *ListModel {
	if logger == nil {
		logger = logging.Default()
	}
	m := &ListModel{
		source:      source,
		logger:      logger,
		noticeDelay: defaultNoticeDelay,
		loc:         time.Local,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the list with the source's current contents. Rows with
// unparseable dates are skipped.
func (m *ListModel) Load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "appointments.load")
	defer span.End()

	m.mu.Lock()
	m.loading = true
	m.errMsg = ""
	m.mu.Unlock()

	dtos, err := m.source.List(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false
	if err != nil {
		if !apiclient.IsCanceled(err) {
			m.errMsg = userMessage(err, MsgLoadFailed)
			m.logger.Warn("appointments load failed", "error", err)
		}
		return fmt.Errorf("appointments: load: %w", err)
	}

	items := make([]Appointment, 0, len(dtos))
	for _, d := range dtos {
		a, err := FromDTO(d, m.loc)
		if err != nil {
			m.logger.Warn("skipping appointment", "id", d.ID.String(), "error", err)
			continue
		}
		items = append(items, a)
	}
	m.items = items
	m.loaded = true
	span.SetAttributes(attribute.Int("appointments.count", len(items)))
	return nil
}

// View filters by query and date range, partitions around now and returns
// the tab's slice. now is captured once by the caller.
func (m *ListModel) View(tab Tab, query, from, to string, now time.Time) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := Partition(InRange(Search(m.items, query), from, to), now)
	v := View{
		Tab:          tab,
		Appointments: p.Pick(tab),
		Counts:       Counts{Upcoming: len(p.Upcoming), Past: len(p.Past), All: len(p.All)},
		Loaded:       m.loaded,
		Loading:      m.loading,
		Error:        m.errMsg,
	}
	if m.notice != nil {
		n := *m.notice
		v.Notice = &n
	}
	return v
}

// Delete removes id from the list before calling the backend and puts it
// back at its previous position if the call fails. Either outcome posts a
// notice that is dismissed after the notice delay.
func (m *ListModel) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "appointments.delete")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", id))

	m.mu.Lock()
	idx := slices.IndexFunc(m.items, func(a Appointment) bool { return a.ID == id })
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	removed := m.items[idx]
	m.items = slices.Delete(m.items, idx, idx+1)
	m.mu.Unlock()

	err := m.source.Delete(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		// A reload during the call may already hold the row.
		if !slices.ContainsFunc(m.items, func(a Appointment) bool { return a.ID == id }) {
			pos := min(idx, len(m.items))
			m.items = slices.Insert(m.items, pos, removed)
		}
		if apiclient.IsCanceled(err) {
			return fmt.Errorf("appointments: delete %s: %w", id, err)
		}
		m.logger.Warn("appointment delete failed; restored", "id", id, "error", err)
		m.postNoticeLocked(Notice{Kind: "error", Message: userMessage(err, MsgDeleteFailed)})
		return fmt.Errorf("appointments: delete %s: %w", id, err)
	}
	m.postNoticeLocked(Notice{Kind: "success", Message: MsgDeleted})
	return nil
}

func (m *ListModel) postNoticeLocked(n Notice) {
	if m.closed {
		return
	}
	m.notice = &n
	m.noticeGen++
	gen := m.noticeGen
	if m.noticeTimer != nil {
		m.noticeTimer.Stop()
	}
	m.noticeTimer = time.AfterFunc(m.noticeDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.noticeGen == gen {
			m.notice = nil
		}
	})
}

// Close stops the notice timer. Only View is valid afterwards.
func (m *ListModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.noticeGen++
	if m.noticeTimer != nil {
		m.noticeTimer.Stop()
		m.noticeTimer = nil
	}
}

func userMessage(err error, fallback string) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
