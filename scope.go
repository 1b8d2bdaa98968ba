package carapace

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Scope is a unit of instance sharing and disposal. The root scope holds the
// provider's singletons; child scopes hold one instance per scoped service
// and own every disposable they produced.
//
// Scope implements ServiceProvider and ScopeFactory and is safe for
// concurrent use.
type Scope struct {
	id       uuid.UUID
	provider *Provider
	isRoot   bool
	seq      uint64

	mu          sync.Mutex
	// resolved holds scoped entries of child scopes. Root-cached values live
	// in their call site's cell, so the root scope leaves it nil.
	resolved    map[ServiceCacheKey]*valueCell
	disposables []any
	disposed    bool
}

func newScope(p *Provider, isRoot bool) *Scope {
	s := &Scope{
		id:       uuid.New(),
		provider: p,
		isRoot:   isRoot,
	}
	if !isRoot {
		s.resolved = make(map[ServiceCacheKey]*valueCell)
	}

	return s
}

// ID returns the unique scope identifier.
func (s *Scope) ID() uuid.UUID {
	return s.id
}

// IsRoot reports whether this is the provider's root scope.
func (s *Scope) IsRoot() bool {
	return s.isRoot
}

// IsDisposed reports whether Dispose has been called.
func (s *Scope) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.disposed
}

// Provider returns the provider the scope belongs to.
func (s *Scope) Provider() *Provider {
	return s.provider
}

// String returns a human-readable representation of the scope
func (s *Scope) String() string {
	if s.isRoot {
		return fmt.Sprintf("root scope %s", s.id)
	}

	return fmt.Sprintf("scope %s", s.id)
}

// GetService returns the service for serviceType, or nil when none is registered.
func (s *Scope) GetService(serviceType reflect.Type) (any, error) {
	return s.GetKeyedService(serviceType, nil)
}

// GetKeyedService returns the service registered for serviceType under key, or nil.
func (s *Scope) GetKeyedService(serviceType reflect.Type, key any) (any, error) {
	if s.IsDisposed() {
		return nil, ErrDisposed(s.String())
	}

	return s.provider.getService(ServiceIdentifier{ServiceType: serviceType, Key: key}, s)
}

// GetRequiredService returns the service for serviceType or ErrServiceNotFound.
func (s *Scope) GetRequiredService(serviceType reflect.Type) (any, error) {
	return s.GetRequiredKeyedService(serviceType, nil)
}

// GetRequiredKeyedService returns the keyed service or ErrServiceNotFound.
func (s *Scope) GetRequiredKeyedService(serviceType reflect.Type, key any) (any, error) {
	return required(ServiceIdentifier{ServiceType: serviceType, Key: key}, s.GetKeyedService)
}

// IsService reports whether serviceType can be resolved.
func (s *Scope) IsService(serviceType reflect.Type) bool {
	return s.provider.IsService(serviceType)
}

// IsKeyedService reports whether serviceType registered under key can be resolved.
func (s *Scope) IsKeyedService(serviceType reflect.Type, key any) bool {
	return s.provider.IsKeyedService(serviceType, key)
}

// CreateScope creates a new child scope of the same provider.
func (s *Scope) CreateScope() (*Scope, error) {
	return s.provider.CreateScope()
}

// Dispose releases the scope. See DisposeContext.
func (s *Scope) Dispose() error {
	return s.DisposeContext(context.Background())
}

// DisposeContext releases every disposable the scope captured, last captured
// first, each exactly once. Disposing the root scope first disposes the live
// child scopes, newest first, and the provider itself. Later calls return nil.
// ctx only bounds waiting on asynchronous disposals; all failures are combined.
func (s *Scope) DisposeContext(ctx context.Context) error {
	disposables, ok := s.beginDispose()
	if !ok {
		return nil
	}

	var err error

	if s.isRoot {
		err = multierr.Append(err, s.provider.disposeScopes(ctx))
	} else {
		s.provider.forgetScope(s)
	}

	for i := len(disposables) - 1; i >= 0; i-- {
		err = multierr.Append(err, disposeValue(ctx, disposables[i]))
	}

	s.provider.scopeDisposed(s, len(disposables), err)

	return err
}

// beginDispose flips the scope to disposed and hands over the captured list.
// The resolved table is left untouched; no entry is added after this point.
func (s *Scope) beginDispose() ([]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, false
	}

	s.disposed = true
	disposables := s.disposables
	s.disposables = nil

	return disposables, true
}

// entry returns the memo cell for key, creating it when absent.
func (s *Scope) entry(key ServiceCacheKey) (*valueCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, ErrDisposed(s.String())
	}

	cell, ok := s.resolved[key]
	if !ok {
		cell = &valueCell{}
		s.resolved[key] = cell
	}

	return cell, nil
}

// captureDisposable records v for disposal with the scope and returns it.
// Values that are not disposable, and the scope itself, are returned untouched.
// When the scope is already disposed, v is disposed right away and the
// capture fails.
func (s *Scope) captureDisposable(v any) (any, error) {
	if v == any(s) || !isDisposable(v) {
		return v, nil
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()

		err := disposeValue(context.Background(), v)
		return nil, multierr.Append(ErrDisposed(s.String()), err)
	}

	s.disposables = append(s.disposables, v)
	s.mu.Unlock()

	return v, nil
}

// disposableCount returns the number of values waiting for disposal.
func (s *Scope) disposableCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.disposables)
}

func isDisposable(v any) bool {
	switch v.(type) {
	case Disposable, io.Closer, AsyncDisposable:
		return true
	default:
		return false
	}
}

// disposeValue releases v. Synchronous contracts are preferred over the
// asynchronous one when a value implements several.
func disposeValue(ctx context.Context, v any) error {
	switch d := v.(type) {
	case Disposable:
		return d.Dispose()
	case io.Closer:
		return d.Close()
	case AsyncDisposable:
		done := d.DisposeAsync()
		if done == nil {
			return nil
		}

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
