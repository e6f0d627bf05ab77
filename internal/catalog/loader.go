package catalog

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/pkg/logging"
)

var tracer = otel.Tracer("reserv.catalog")

// MsgLoadFailed is shown when the service list could not be fetched.
const MsgLoadFailed = "Failed to load data."

// Source is the subset of the API client the loader reads from.
type Source interface {
	ServiceTypes(ctx context.Context) ([]string, error)
	Services(ctx context.Context) ([]apiclient.ServiceDTO, error)
	Providers(ctx context.Context) ([]apiclient.ProviderRef, error)
}

// Catalog is everything the booking page needs to render its filters and
// cards.
type Catalog struct {
	Categories []string   `json:"categories"`
	Services   []Service  `json:"services"`
	Providers  []Provider `json:"providers"`
	Error      string     `json:"error,omitempty"`
}

// Index returns the provider index of c.
func (c Catalog) Index() Index { return NewIndex(c.Providers) }

type Loader struct {
	source Source
	logger *logging.Logger
}

func NewLoader(source Source, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.Default()
	}
	return &Loader{source: source, logger: logger}
}

// Load fetches service types, services and providers concurrently. A
// failing branch leaves its part empty instead of failing the whole load.
// A canceled branch cancels its siblings and fails the load.
func (l *Loader) Load(ctx context.Context) (Catalog, error) {
	ctx, span := tracer.Start(ctx, "catalog.load")
	defer span.End()

	var (
		types     []string
		dtos      []apiclient.ServiceDTO
		refs      []apiclient.ProviderRef
		servicesE error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if types, err = l.source.ServiceTypes(gctx); err != nil {
			l.warn("service types", err)
			types = nil
		}
		return canceled(err)
	})
	g.Go(func() error {
		var err error
		if dtos, err = l.source.Services(gctx); err != nil {
			l.warn("services", err)
			dtos, servicesE = nil, err
		}
		return canceled(err)
	})
	g.Go(func() error {
		var err error
		if refs, err = l.source.Providers(gctx); err != nil {
			l.warn("providers", err)
			refs = nil
		}
		return canceled(err)
	})
	if err := g.Wait(); err != nil {
		return Catalog{}, fmt.Errorf("catalog: load: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Catalog{}, fmt.Errorf("catalog: load: %w", err)
	}

	cat := Catalog{
		Categories: []string{All},
		Services:   FromDTOs(dtos),
		Providers:  ProvidersFromDTO(refs),
	}
	for _, t := range types {
		if pretty := PrettyCategory(t); pretty != "" {
			cat.Categories = append(cat.Categories, pretty)
		}
	}
	if len(cat.Providers) == 0 && len(cat.Services) > 0 {
		cat.Providers = DeriveProviders(cat.Services)
	}
	if servicesE != nil {
		cat.Error = MsgLoadFailed
	}

	span.SetAttributes(
		attribute.Int("catalog.services", len(cat.Services)),
		attribute.Int("catalog.providers", len(cat.Providers)),
	)
	return cat, nil
}

// canceled passes through cancellation errors only.
func canceled(err error) error {
	if apiclient.IsCanceled(err) {
		return err
	}
	return nil
}

func (l *Loader) warn(part string, err error) {
	if apiclient.IsCanceled(err) {
		return
	}
	l.logger.Warn("catalog fetch failed", "part", part, "error", err)
}
