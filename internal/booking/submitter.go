package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/internal/catalog"
	"github.com/wolfman30/reserv/internal/observability/metrics"
	"github.com/wolfman30/reserv/pkg/logging"
)

var tracer = otel.Tracer("reserv.booking")

const (
	MsgSelectDateTime = "Please select a date and time."
	MsgMissingService = "Missing service id."
	MsgNoProvider     = "This service has no provider assigned; booking is unavailable."
	MsgBookingFailed  = "Booking failed."
)

// ErrInProgress is returned when a confirm is already running.
var ErrInProgress = errors.New("booking: submission in progress")

// ValidationError is a local rejection; nothing was sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Creator posts appointments. *apiclient.Client satisfies it.
type Creator interface {
	CreateAppointment(ctx context.Context, req apiclient.AppointmentRequest) (*apiclient.AppointmentResponse, error)
}

// Freezer is the picker lock held for the duration of a confirm.
type Freezer interface {
	Freeze()
	Unfreeze()
}

// Request is everything Confirm needs. ClientID is optional.
type Request struct {
	Service   catalog.Service
	Providers []catalog.Provider
	Date      string
	Slot      string
	ClientID  string
}

// StartAt formats the booking start as "<date>T<slot>:00".
func StartAt(date, slot string) string {
	return date + "T" + slot + ":00"
}

type SubmitterOption func(*Submitter)

// WithPickers freezes p while a confirm runs.
func WithPickers(p Freezer) SubmitterOption {
	return func(s *Submitter) { s.pickers = p }
}

func WithSubmitterMetrics(m *metrics.WorkflowMetrics) SubmitterOption {
	return func(s *Submitter) { s.metrics = m }
}

// Submitter validates and posts bookings, one at a time.
type Submitter struct {
	api     Creator
	logger  *logging.Logger
	metrics *metrics.WorkflowMetrics
	pickers Freezer

	mu   sync.Mutex
	busy bool
}

func NewSubmitter(api Creator, logger *logging.Logger, opts ...SubmitterOption) *Submitter {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Submitter{api: api, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InProgress reports whether a confirm is running.
func (s *Submitter) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Confirm validates req and posts it. Validation failures return a
// *ValidationError without any network call. The pickers stay frozen until
// Confirm returns, whatever the outcome.
func (s *Submitter) Confirm(ctx context.Context, req Request) (*apiclient.AppointmentResponse, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.metrics.ObserveBooking("busy")
		return nil, ErrInProgress
	}
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if s.pickers != nil {
		s.pickers.Freeze()
		defer s.pickers.Unfreeze()
	}

	ctx, span := tracer.Start(ctx, "booking.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("service.id", req.Service.ID))

	body, verr := validate(req)
	if verr != nil {
		s.metrics.ObserveBooking("rejected")
		span.SetAttributes(attribute.String("booking.rejected", verr.Message))
		return nil, verr
	}

	resp, err := s.api.CreateAppointment(ctx, body)
	if err != nil {
		if apiclient.IsCanceled(err) {
			return nil, err
		}
		s.metrics.ObserveBooking("failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "create appointment failed")
		s.logger.Warn("booking failed", "service_id", body.ServiceID.String(), "start_at", body.StartAt, "error", err)
		return nil, fmt.Errorf("booking: confirm: %w", err)
	}
	s.metrics.ObserveBooking("success")
	s.logger.Info("booking created", "appointment_id", resp.ID.String(), "service_id", body.ServiceID.String(), "start_at", body.StartAt)
	return resp, nil
}

func validate(req Request) (apiclient.AppointmentRequest, *ValidationError) {
	date, slot := strings.TrimSpace(req.Date), strings.TrimSpace(req.Slot)
	if date == "" || slot == "" {
		return apiclient.AppointmentRequest{}, &ValidationError{Message: MsgSelectDateTime}
	}
	serviceID := strings.TrimSpace(req.Service.ID)
	if serviceID == "" {
		return apiclient.AppointmentRequest{}, &ValidationError{Message: MsgMissingService}
	}
	providerID := ResolveProviderID(req.Service, req.Providers)
	if providerID == "" {
		return apiclient.AppointmentRequest{}, &ValidationError{Message: MsgNoProvider}
	}
	return apiclient.AppointmentRequest{
		ServiceID:  apiclient.ID(serviceID),
		ProviderID: apiclient.ID(providerID),
		StartAt:    StartAt(date, slot),
		ClientID:   apiclient.ID(strings.TrimSpace(req.ClientID)),
	}, nil
}

// Message is the user-facing text for a Confirm error.
func Message(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, ErrInProgress) {
		return "A booking is already being submitted."
	}
	return MsgBookingFailed
}
