package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/internal/availability"
	"github.com/wolfman30/reserv/internal/catalog"
	"github.com/wolfman30/reserv/internal/observability/metrics"
	"github.com/wolfman30/reserv/pkg/logging"
)

// ErrDrawerClosed is returned by drawer operations after the drawer was
// closed or the booking completed.
var ErrDrawerClosed = errors.New("booking: drawer closed")

// DrawerDeps wires a drawer to the API and the navigation sink.
type DrawerDeps struct {
	Slots        availability.Fetcher
	Creator      Creator
	Navigate     func(path string)
	ConfirmDelay time.Duration
	Logger       *logging.Logger
	Metrics      *metrics.WorkflowMetrics
	Clock        func() time.Time
	Location     *time.Location
}

// DrawerSnapshot is the booking drawer's render state.
type DrawerSnapshot struct {
	Open         bool                           `json:"open"`
	Service      catalog.Service                `json:"service"`
	ProviderName string                         `json:"providerName,omitempty"`
	Bookable     bool                           `json:"bookable"`
	Availability availability.Snapshot          `json:"availability"`
	Submitting   bool                           `json:"submitting"`
	Error        string                         `json:"error,omitempty"`
	Booked       *apiclient.AppointmentResponse `json:"booked,omitempty"`
	Confirmation *ConfirmationState             `json:"confirmation,omitempty"`
}

// Drawer is the booking view for one service: slot picker, submit and the
// confirmation sequence that follows a successful booking.
type Drawer struct {
	service   catalog.Service
	providers []catalog.Provider
	clientID  string
	deps      DrawerDeps
	slots     *availability.Workflow
	submitter *Submitter

	mu           sync.Mutex
	open         bool
	closed       bool
	errMsg       string
	booked       *apiclient.AppointmentResponse
	confirmation *Confirmation
}

// OpenDrawer opens the drawer for svc. clientID may be empty.
func OpenDrawer(svc catalog.Service, providers []catalog.Provider, clientID string, deps DrawerDeps) *Drawer {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	slots := availability.New(deps.Slots, svc.ID,
		availability.WithClock(deps.Clock),
		availability.WithLocation(deps.Location),
		availability.WithLogger(deps.Logger),
		availability.WithMetrics(deps.Metrics),
	)
	return &Drawer{
		service:   svc,
		providers: providers,
		clientID:  clientID,
		deps:      deps,
		slots:     slots,
		submitter: NewSubmitter(deps.Creator, deps.Logger,
			WithPickers(slots),
			WithSubmitterMetrics(deps.Metrics),
		),
		open: true,
	}
}

// ServiceID is the id of the service being booked.
func (d *Drawer) ServiceID() string { return d.service.ID }

func (d *Drawer) isOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// SelectDate starts loading slots for date and clears the selected slot.
func (d *Drawer) SelectDate(ctx context.Context, date string) (DrawerSnapshot, error) {
	if !d.isOpen() {
		return d.Snapshot(), ErrDrawerClosed
	}
	d.clearError()
	_, err := d.slots.SelectDate(ctx, date)
	return d.Snapshot(), err
}

func (d *Drawer) SelectSlot(slot string) (DrawerSnapshot, error) {
	if !d.isOpen() {
		return d.Snapshot(), ErrDrawerClosed
	}
	d.clearError()
	_, err := d.slots.SelectSlot(slot)
	return d.Snapshot(), err
}

// Wait blocks until the slot request settles or ctx is done.
func (d *Drawer) Wait(ctx context.Context) (DrawerSnapshot, error) {
	_, err := d.slots.Wait(ctx)
	return d.Snapshot(), err
}

// Confirm submits the selected slot. On success the drawer closes and the
// confirmation sequence starts.
func (d *Drawer) Confirm(ctx context.Context) (DrawerSnapshot, error) {
	if !d.isOpen() {
		return d.Snapshot(), ErrDrawerClosed
	}
	date, slot := d.slots.Selection()
	resp, err := d.submitter.Confirm(ctx, Request{
		Service:   d.service,
		Providers: d.providers,
		Date:      date,
		Slot:      slot,
		ClientID:  d.clientID,
	})
	if err != nil {
		if !apiclient.IsCanceled(err) && !errors.Is(err, ErrInProgress) {
			d.mu.Lock()
			d.errMsg = Message(err)
			d.mu.Unlock()
		}
		return d.Snapshot(), err
	}

	d.mu.Lock()
	d.booked = resp
	d.errMsg = ""
	d.open = false
	// A drawer closed while the POST was in flight records the booking
	// but never navigates.
	if !d.closed {
		d.confirmation = StartConfirmation(d.deps.ConfirmDelay, d.deps.Navigate)
	}
	d.mu.Unlock()
	d.slots.Close()
	return d.Snapshot(), nil
}

// NavigateNow skips the remaining confirmation delay.
func (d *Drawer) NavigateNow() bool {
	d.mu.Lock()
	c := d.confirmation
	d.mu.Unlock()
	if c == nil {
		return false
	}
	return c.NavigateNow()
}

// Close tears the drawer down: the slot request is canceled and a pending
// confirmation stops without navigating.
func (d *Drawer) Close() {
	d.mu.Lock()
	d.open = false
	d.closed = true
	c := d.confirmation
	d.mu.Unlock()

	d.slots.Close()
	if c != nil {
		c.Stop()
	}
}

func (d *Drawer) clearError() {
	d.mu.Lock()
	d.errMsg = ""
	d.mu.Unlock()
}

func (d *Drawer) Snapshot() DrawerSnapshot {
	avail := d.slots.Snapshot()

	d.mu.Lock()
	defer d.mu.Unlock()
	snap := DrawerSnapshot{
		Open:         d.open,
		Service:      d.service,
		ProviderName: ProviderName(d.service, d.providers),
		Bookable:     ResolveProviderID(d.service, d.providers) != "",
		Availability: avail,
		Submitting:   d.submitter.InProgress(),
		Error:        d.errMsg,
		Booked:       d.booked,
	}
	if d.confirmation != nil {
		st := d.confirmation.State()
		snap.Confirmation = &st
	}
	return snap
}
