// Package telemetry records carapace provider activity as OpenTelemetry metrics.
//
// # Usage
//
//	listener, err := telemetry.NewListener(otel.Meter("carapace"))
//	provider, err := services.Build(carapace.WithListener(listener))
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/carapace"
)

// Metric names recorded by Listener.
const (
	MetricCallSitesBuilt   = "carapace.callsites.built"
	MetricServicesResolved = "carapace.services.resolved"
	MetricScopesCreated    = "carapace.scopes.created"
	MetricScopesDisposed   = "carapace.scopes.disposed"
	MetricScopeDisposables = "carapace.scope.disposables"
)

// Listener is a carapace.Listener that records metrics.
type Listener struct {
	callSitesBuilt   metric.Int64Counter
	servicesResolved metric.Int64Counter
	scopesCreated    metric.Int64Counter
	scopesDisposed   metric.Int64Counter
	scopeDisposables metric.Int64Histogram
}

var _ carapace.Listener = (*Listener)(nil)

// NewListener creates metric instruments on the given meter.
func NewListener(meter metric.Meter) (*Listener, error) {
	callSitesBuilt, err := meter.Int64Counter(MetricCallSitesBuilt,
		metric.WithDescription("Number of call sites built"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricCallSitesBuilt, err)
	}

	servicesResolved, err := meter.Int64Counter(MetricServicesResolved,
		metric.WithDescription("Number of top-level service resolutions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricServicesResolved, err)
	}

	scopesCreated, err := meter.Int64Counter(MetricScopesCreated,
		metric.WithDescription("Number of child scopes created"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricScopesCreated, err)
	}

	scopesDisposed, err := meter.Int64Counter(MetricScopesDisposed,
		metric.WithDescription("Number of scopes disposed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricScopesDisposed, err)
	}

	scopeDisposables, err := meter.Int64Histogram(MetricScopeDisposables,
		metric.WithDescription("Disposable instances released per scope"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricScopeDisposables, err)
	}

	return &Listener{
		callSitesBuilt:   callSitesBuilt,
		servicesResolved: servicesResolved,
		scopesCreated:    scopesCreated,
		scopesDisposed:   scopesDisposed,
		scopeDisposables: scopeDisposables,
	}, nil
}

// ProviderBuilt implements carapace.Listener.
func (l *Listener) ProviderBuilt(*carapace.Provider) {}

// CallSiteBuilt implements carapace.Listener.
func (l *Listener) CallSiteBuilt(cs carapace.CallSite) {
	l.callSitesBuilt.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", cs.Kind().String()),
		attribute.String("cache", cs.Cache().Location.String()),
	))
}

// ServiceResolved implements carapace.Listener.
func (l *Listener) ServiceResolved(id carapace.ServiceIdentifier, scope *carapace.Scope, err error) {
	l.servicesResolved.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", id.String()),
		attribute.Bool("root", scope.IsRoot()),
		attribute.String("outcome", outcome(err)),
	))
}

// ScopeCreated implements carapace.Listener.
func (l *Listener) ScopeCreated(*carapace.Scope) {
	l.scopesCreated.Add(context.Background(), 1)
}

// ScopeDisposed implements carapace.Listener.
func (l *Listener) ScopeDisposed(scope *carapace.Scope, disposables int, err error) {
	attrs := metric.WithAttributes(
		attribute.Bool("root", scope.IsRoot()),
		attribute.String("outcome", outcome(err)),
	)

	l.scopesDisposed.Add(context.Background(), 1, attrs)
	l.scopeDisposables.Record(context.Background(), int64(disposables), attrs)
}

// ProviderDisposed implements carapace.Listener.
func (l *Listener) ProviderDisposed(*carapace.Provider, error) {}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
