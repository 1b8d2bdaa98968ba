// Package carapace is a dependency-injection runtime.
//
// Services are described in a ServiceCollection, compiled into call-site
// trees by a Provider, and resolved against scopes. Singletons are shared by
// the whole provider, scoped services once per Scope, and transients are
// built on every resolution. Disposable results are owned by the scope that
// produced them and released in reverse order when the scope is disposed.
package carapace

import (
	"reflect"

	"github.com/xraph/go-utils/di"
)

// ServiceProvider resolves services. Both *Provider and *Scope implement it,
// and it is available to every service without registration.
type ServiceProvider interface {
	// GetService returns the service for serviceType, or nil when none is registered.
	GetService(serviceType reflect.Type) (any, error)

	// GetKeyedService returns the service registered for serviceType under key, or nil.
	GetKeyedService(serviceType reflect.Type, key any) (any, error)

	// GetRequiredService is GetService but fails with ErrServiceNotFound instead of returning nil.
	GetRequiredService(serviceType reflect.Type) (any, error)

	// GetRequiredKeyedService is GetKeyedService but fails instead of returning nil.
	GetRequiredKeyedService(serviceType reflect.Type, key any) (any, error)
}

// ScopeFactory creates child scopes. It is available without registration.
type ScopeFactory interface {
	CreateScope() (*Scope, error)
}

// ServiceInspector answers whether a type can be resolved without resolving it.
// It is available without registration.
type ServiceInspector interface {
	IsService(serviceType reflect.Type) bool
	IsKeyedService(serviceType reflect.Type, key any) bool
}

// Disposable is a service that releases resources synchronously.
type Disposable = di.Disposable

// AsyncDisposable is a service that releases resources in the background.
// The returned channel delivers the outcome once; a closed channel means success.
type AsyncDisposable interface {
	DisposeAsync() <-chan error
}

var (
	serviceProviderType  = reflect.TypeFor[ServiceProvider]()
	scopeFactoryType     = reflect.TypeFor[ScopeFactory]()
	serviceInspectorType = reflect.TypeFor[ServiceInspector]()
	scopeType            = reflect.TypeFor[*Scope]()
)

// New builds a provider from the collection.
func New(services *ServiceCollection, opts ...Option) (*Provider, error) {
	return services.Build(opts...)
}
