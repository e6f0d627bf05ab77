package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/pkg/logging"
)

const (
	MsgLoadFailed  = "Failed to load your service."
	MsgSaveFailed  = "Failed to update service."
	MsgSaved       = "Service updated."
	MsgRegistered  = "Service registered."
	MsgRegisterErr = "Service registration failed."
)

// API is the slice of the backend the provider screens use.
type API interface {
	ProviderService(ctx context.Context) (*apiclient.ProviderService, error)
	UpdateProviderService(ctx context.Context, id string, svc apiclient.ProviderService) error
	RegisterService(ctx context.Context, req apiclient.ServiceRegistration) error
}

// Editor loads and saves the signed-in provider's service.
type Editor struct {
	api    API
	logger *logging.Logger
}

func NewEditor(api API, logger *logging.Logger) *Editor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Editor{api: api, logger: logger}
}

// Load fetches the provider's service as an editable form. A provider with
// no service yet gets a *FormError carrying the backend's explanation.
func (e *Editor) Load(ctx context.Context) (Form, error) {
	svc, err := e.api.ProviderService(ctx)
	if err != nil {
		if errors.Is(err, apiclient.ErrNoProviderService) {
			return Form{}, &FormError{Message: apiclient.MsgNoProviderService}
		}
		if errors.Is(err, apiclient.ErrServiceIDMissing) {
			return Form{}, &FormError{Message: apiclient.MsgServiceIDMissing}
		}
		return Form{}, fmt.Errorf("provider: load service: %w", err)
	}
	return FormFromService(*svc), nil
}

// Save validates f and sends it as an update. Validation failures return
// a *FormError without any network call.
func (e *Editor) Save(ctx context.Context, f Form) (Form, error) {
	svc, err := f.Update()
	if err != nil {
		return f, err
	}
	if err := e.api.UpdateProviderService(ctx, svc.ID.String(), svc); err != nil {
		e.logger.Warn("service update failed", "service_id", svc.ID.String(), "error", err)
		return f, fmt.Errorf("provider: update service: %w", err)
	}
	e.logger.Info("service updated", "service_id", svc.ID.String())
	return FormFromService(svc), nil
}

// Register validates f and registers it as a new service.
func (e *Editor) Register(ctx context.Context, f Form) error {
	req, err := f.Registration()
	if err != nil {
		return err
	}
	if err := e.api.RegisterService(ctx, req); err != nil {
		e.logger.Warn("service registration failed", "provider_email", req.ProviderEmail, "error", err)
		return fmt.Errorf("provider: register service: %w", err)
	}
	e.logger.Info("service registered", "provider_email", req.ProviderEmail, "service_type", req.ServiceType)
	return nil
}

// Message is the user-facing text for an Editor error.
func Message(err error, fallback string) string {
	var ferr *FormError
	if errors.As(err, &ferr) {
		return ferr.Message
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
