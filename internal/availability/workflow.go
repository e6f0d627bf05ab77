// Package availability drives the slot picker of the booking drawer: one
// service, one selected date, at most one slot request in flight.
package availability

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/internal/observability/metrics"
	"github.com/wolfman30/reserv/pkg/logging"
)

var tracer = otel.Tracer("reserv.availability")

// MsgUnavailable is shown when a slot fetch fails without a server message.
const MsgUnavailable = "Could not load availability."

var (
	// ErrFrozen is returned while a booking submission holds the pickers.
	ErrFrozen = errors.New("availability: booking in progress")
	// ErrUnknownSlot is returned when selecting a slot not in the list.
	ErrUnknownSlot = errors.New("availability: slot not available")
	// ErrInvalidDate is returned for dates that are not YYYY-MM-DD.
	ErrInvalidDate = errors.New("availability: invalid date")
	ErrClosed      = errors.New("availability: closed")
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateError   State = "error"
)

// Fetcher loads the raw slots of a service on a date.
type Fetcher interface {
	AvailableSlots(ctx context.Context, serviceID, date string) ([]string, error)
}

// Snapshot is the picker state at one instant.
type Snapshot struct {
	State     State    `json:"state"`
	ServiceID string   `json:"serviceId"`
	Date      string   `json:"date,omitempty"`
	Slots     []string `json:"slots"`
	Selected  string   `json:"selected,omitempty"`
	Error     string   `json:"error,omitempty"`
	Frozen    bool     `json:"frozen"`
}

type Option func(*Workflow)

// WithClock sets the clock used by the today filter.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

// WithLocation sets the zone that defines "today".
func WithLocation(loc *time.Location) Option {
	return func(w *Workflow) {
		if loc != nil {
			w.loc = loc
		}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

func WithMetrics(m *metrics.WorkflowMetrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// Workflow is the Idle/Loading/Loaded/Error state machine for one service.
// Selecting a date cancels the previous request; a result is applied only
// while its generation is still current.
type Workflow struct {
	fetcher   Fetcher
	serviceID string
	now       func() time.Time
	loc       *time.Location
	logger    *logging.Logger
	metrics   *metrics.WorkflowMetrics

	lifetime context.Context
	stop     context.CancelFunc

	mu       sync.Mutex
	state    State
	date     string
	raw      []string
	slots    []string
	selected string
	errMsg   string
	frozen   bool
	closed   bool
	gen      uint64
	cancel   context.CancelFunc
	settled  chan struct{}
}

// New returns an idle workflow for serviceID.
func New(fetcher Fetcher, serviceID string, opts ...Option) *Workflow {
	lifetime, stop := context.WithCancel(context.Background())
	w := &Workflow{
		fetcher:   fetcher,
		serviceID: serviceID,
		now:       time.Now,
		loc:       time.Local,
		logger:    logging.Default(),
		lifetime:  lifetime,
		stop:      stop,
		state:     StateIdle,
		slots:     []string{},
		settled:   closedChan(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// SelectDate switches to date. The previous request is canceled and the
// selected slot cleared before the new request starts; the returned
// snapshot is Loading (or Idle for an empty date or service id). Use Wait
// for the settled state.
func (w *Workflow) SelectDate(ctx context.Context, date string) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return w.snapshotLocked(), ErrClosed
	}
	if w.frozen {
		return w.snapshotLocked(), ErrFrozen
	}
	if date != "" && !ValidDate(date) {
		return w.snapshotLocked(), ErrInvalidDate
	}

	w.invalidateLocked()
	w.date = date
	w.selected = ""
	w.raw = nil
	w.slots = []string{}
	w.errMsg = ""

	if date == "" || w.serviceID == "" {
		w.state = StateIdle
		return w.snapshotLocked(), nil
	}

	w.state = StateLoading
	fetchCtx, cancel := context.WithCancel(w.lifetime)
	fetchCtx = trace.ContextWithSpan(fetchCtx, trace.SpanFromContext(ctx))
	w.cancel = cancel
	settled := make(chan struct{})
	w.settled = settled
	gen := w.gen

	go w.fetch(fetchCtx, gen, date, settled)
	return w.snapshotLocked(), nil
}

// invalidateLocked cancels the in-flight request and bumps the generation
// so a late result is discarded even if the transport ignored the cancel.
func (w *Workflow) invalidateLocked() {
	w.gen++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *Workflow) fetch(ctx context.Context, gen uint64, date string, settled chan struct{}) {
	defer close(settled)

	ctx, span := tracer.Start(ctx, "availability.fetch")
	span.SetAttributes(
		attribute.String("service.id", w.serviceID),
		attribute.String("slots.date", date),
	)
	defer span.End()

	slots, err := w.fetcher.AvailableSlots(ctx, w.serviceID, date)

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.gen {
		w.metrics.ObserveSlotFetch("stale")
		span.SetAttributes(attribute.Bool("slots.stale", true))
		return
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if err != nil {
		if apiclient.IsCanceled(err) {
			w.metrics.ObserveSlotFetch("canceled")
			return
		}
		w.metrics.ObserveSlotFetch("error")
		w.logger.Warn("slot fetch failed", "service_id", w.serviceID, "date", date, "error", err)
		w.state = StateError
		w.errMsg = errorMessage(err)
		return
	}

	w.metrics.ObserveSlotFetch("loaded")
	w.state = StateLoaded
	w.raw = slices.Clone(slots)
	w.applyFilterLocked(w.now())
	span.SetAttributes(attribute.Int("slots.count", len(w.slots)))
}

func errorMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return MsgUnavailable
}

// applyFilterLocked recomputes the visible slots from the raw list and
// clears the selection if it is no longer offered.
func (w *Workflow) applyFilterLocked(now time.Time) {
	if w.state != StateLoaded {
		return
	}
	w.slots = FilterPast(slices.Clone(w.raw), w.date, now.In(w.loc))
	if w.slots == nil {
		w.slots = []string{}
	}
	if w.selected != "" && !slices.Contains(w.slots, w.selected) {
		w.selected = ""
	}
}

// Refresh re-applies the today filter at now.
func (w *Workflow) Refresh(now time.Time) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applyFilterLocked(now)
	return w.snapshotLocked()
}

// SelectSlot selects one of the offered slots; "" clears the selection.
func (w *Workflow) SelectSlot(slot string) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return w.snapshotLocked(), ErrClosed
	}
	if w.frozen {
		return w.snapshotLocked(), ErrFrozen
	}
	w.applyFilterLocked(w.now())
	if slot == "" {
		w.selected = ""
		return w.snapshotLocked(), nil
	}
	if w.state != StateLoaded || !slices.Contains(w.slots, slot) {
		return w.snapshotLocked(), ErrUnknownSlot
	}
	w.selected = slot
	return w.snapshotLocked(), nil
}

// Snapshot returns the current state with the today filter evaluated now.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applyFilterLocked(w.now())
	return w.snapshotLocked()
}

// Wait blocks until no request is in flight or ctx is done, then returns
// the current snapshot.
func (w *Workflow) Wait(ctx context.Context) (Snapshot, error) {
	for {
		w.mu.Lock()
		if w.state != StateLoading {
			w.applyFilterLocked(w.now())
			snap := w.snapshotLocked()
			w.mu.Unlock()
			return snap, nil
		}
		settled := w.settled
		w.mu.Unlock()

		select {
		case <-settled:
		case <-ctx.Done():
			return w.Snapshot(), ctx.Err()
		}
	}
}

// Freeze locks date and slot selection while a booking is submitted.
func (w *Workflow) Freeze() {
	w.mu.Lock()
	w.frozen = true
	w.mu.Unlock()
}

func (w *Workflow) Unfreeze() {
	w.mu.Lock()
	w.frozen = false
	w.mu.Unlock()
}

// Selection returns the chosen date and slot.
func (w *Workflow) Selection() (date, slot string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applyFilterLocked(w.now())
	return w.date, w.selected
}

// Close cancels any in-flight request; later results are discarded.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.invalidateLocked()
	if w.state == StateLoading {
		w.state = StateIdle
	}
	w.stop()
}

func (w *Workflow) snapshotLocked() Snapshot {
	return Snapshot{
		State:     w.state,
		ServiceID: w.serviceID,
		Date:      w.date,
		Slots:     slices.Clone(w.slots),
		Selected:  w.selected,
		Error:     w.errMsg,
		Frozen:    w.frozen,
	}
}
