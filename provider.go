package carapace

import (
	"context"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Provider is the entry point for resolving services. It owns the root
// scope, the compiled call sites, the accessor cache and the optional
// validator. Resolving from the provider resolves from its root scope.
//
// Provider implements ServiceProvider, ScopeFactory and ServiceInspector and
// is safe for concurrent use.
type Provider struct {
	opts      providerOptions
	logger    *zap.Logger
	listeners *listenerChain
	factory   *callSiteFactory
	validator *callSiteValidator
	root      *Scope

	accessors sync.Map // ServiceIdentifier -> *serviceAccessor

	mu       sync.Mutex
	disposed atomic.Bool
	scopes   map[*Scope]struct{}
	seq      uint64
}

// serviceAccessor pairs a call site with the function that resolves it.
// A nil call site means the identifier is not a service.
type serviceAccessor struct {
	callSite CallSite
	resolve  func(scope *Scope) (any, error)
}

var notAService = &serviceAccessor{
	resolve: func(*Scope) (any, error) { return nil, nil },
}

// ProviderStatus is a point-in-time snapshot of a provider.
type ProviderStatus struct {
	Descriptors     int  `json:"descriptors"`
	Accessors       int  `json:"accessors"`
	LiveScopes      int  `json:"liveScopes"`
	RootDisposables int  `json:"rootDisposables"`
	Disposed        bool `json:"disposed"`
	ValidateScopes  bool `json:"validateScopes"`
	ValidateOnBuild bool `json:"validateOnBuild"`
}

// NewProvider compiles descriptors into a provider. Malformed descriptors are
// reported together in one CodeInvalidServices error. With
// WithValidateOnBuild every descriptor's call site is built, and validated
// when WithValidateScopes is also set, before the provider is returned.
func NewProvider(descriptors []*ServiceDescriptor, opts ...Option) (*Provider, error) {
	options := mergeOptions(opts)

	factory, failures := newCallSiteFactory(descriptors)
	if len(failures) > 0 {
		err := NewInvalidServicesError(multierr.Combine(failures...))
		options.logger.Warn("service provider build failed",
			zap.Int("invalid_descriptors", len(failures)),
			zap.Error(err),
		)

		return nil, err
	}

	p := &Provider{
		opts:      options,
		logger:    options.logger,
		listeners: newListenerChain(options.listeners),
		factory:   factory,
		scopes:    make(map[*Scope]struct{}),
	}
	p.root = newScope(p, true)

	if options.validateScopes {
		p.validator = newCallSiteValidator()
	}

	factory.onBuilt = p.listeners.callSiteBuilt
	factory.addBuiltin(serviceProviderType, newServiceProviderCallSite())
	factory.addBuiltin(scopeFactoryType, newConstantCallSite(ServiceIdentifier{ServiceType: scopeFactoryType}, 0, p.root))
	factory.addBuiltin(serviceInspectorType, newConstantCallSite(ServiceIdentifier{ServiceType: serviceInspectorType}, 0, factory))

	if options.validateOnBuild {
		if err := p.validateOnBuild(); err != nil {
			p.logger.Warn("service provider validation failed", zap.Error(err))
			return nil, err
		}
	}

	p.logger.Debug("service provider built",
		zap.Int("descriptors", len(factory.entries)),
		zap.Bool("validate_scopes", options.validateScopes),
		zap.Bool("validate_on_build", options.validateOnBuild),
	)
	p.listeners.providerBuilt(p)

	return p, nil
}

// validateOnBuild builds and validates the call site of every descriptor.
// Nothing is constructed.
func (p *Provider) validateOnBuild() error {
	var errs error

	for _, entry := range p.factory.entries {
		cs, err := p.factory.getDescriptorCallSite(entry, newCallSiteChain())
		if err == nil && cs != nil {
			err = p.onCreate(cs)
		}

		if err != nil {
			errs = multierr.Append(errs, NewDescriptorError(entry.descriptor.String(), err))
		}
	}

	if errs != nil {
		return NewInvalidServicesError(errs)
	}

	return nil
}

// GetService resolves serviceType from the root scope, or returns nil when it is not registered.
func (p *Provider) GetService(serviceType reflect.Type) (any, error) {
	return p.root.GetService(serviceType)
}

// GetKeyedService resolves the keyed service from the root scope, or returns nil.
func (p *Provider) GetKeyedService(serviceType reflect.Type, key any) (any, error) {
	return p.root.GetKeyedService(serviceType, key)
}

// GetRequiredService resolves serviceType from the root scope or fails with ErrServiceNotFound.
func (p *Provider) GetRequiredService(serviceType reflect.Type) (any, error) {
	return p.root.GetRequiredService(serviceType)
}

// GetRequiredKeyedService resolves the keyed service from the root scope or fails.
func (p *Provider) GetRequiredKeyedService(serviceType reflect.Type, key any) (any, error) {
	return p.root.GetRequiredKeyedService(serviceType, key)
}

// IsService reports whether serviceType can be resolved.
func (p *Provider) IsService(serviceType reflect.Type) bool {
	return p.factory.IsService(serviceType)
}

// IsKeyedService reports whether serviceType registered under key can be resolved.
func (p *Provider) IsKeyedService(serviceType reflect.Type, key any) bool {
	return p.factory.IsKeyedService(serviceType, key)
}

// Root returns the root scope.
func (p *Provider) Root() *Scope {
	return p.root
}

// CreateScope creates a child scope. Every child is parented to the provider,
// whichever scope created it.
func (p *Provider) CreateScope() (*Scope, error) {
	s := newScope(p, false)

	p.mu.Lock()
	if p.disposed.Load() {
		p.mu.Unlock()
		return nil, ErrDisposed("service provider")
	}
	p.seq++
	s.seq = p.seq
	p.scopes[s] = struct{}{}
	p.mu.Unlock()

	p.logger.Debug("scope created", zap.Stringer("scope", s.id))
	p.listeners.scopeCreated(s)

	return s, nil
}

// Dispose disposes the root scope, every live child scope and the provider.
func (p *Provider) Dispose() error {
	return p.root.Dispose()
}

// DisposeContext is Dispose with a context bounding asynchronous disposals.
func (p *Provider) DisposeContext(ctx context.Context) error {
	return p.root.DisposeContext(ctx)
}

// IsDisposed reports whether the provider has been disposed.
func (p *Provider) IsDisposed() bool {
	return p.disposed.Load()
}

// Descriptors returns the registered descriptors in registration order.
func (p *Provider) Descriptors() []*ServiceDescriptor {
	out := make([]*ServiceDescriptor, len(p.factory.entries))
	for i, entry := range p.factory.entries {
		out[i] = entry.descriptor
	}

	return out
}

// CallSite returns the call site resolving id, or nil when id is not a service.
func (p *Provider) CallSite(id ServiceIdentifier) (CallSite, error) {
	return p.factory.getCallSite(id, newCallSiteChain())
}

// DescriptorCallSite returns the call site of the descriptor at index in registration order.
func (p *Provider) DescriptorCallSite(index int) (CallSite, error) {
	if index < 0 || index >= len(p.factory.entries) {
		return nil, nil
	}

	return p.factory.getDescriptorCallSite(p.factory.entries[index], newCallSiteChain())
}

// Status returns a snapshot of the provider.
func (p *Provider) Status() ProviderStatus {
	accessors := 0
	p.accessors.Range(func(_, _ any) bool {
		accessors++
		return true
	})

	p.mu.Lock()
	live := len(p.scopes)
	p.mu.Unlock()

	return ProviderStatus{
		Descriptors:     len(p.factory.entries),
		Accessors:       accessors,
		LiveScopes:      live,
		RootDisposables: p.root.disposableCount(),
		Disposed:        p.disposed.Load(),
		ValidateScopes:  p.opts.validateScopes,
		ValidateOnBuild: p.opts.validateOnBuild,
	}
}

// getService resolves id for scope through the accessor cache.
func (p *Provider) getService(id ServiceIdentifier, scope *Scope) (any, error) {
	if p.disposed.Load() {
		return nil, ErrDisposed("service provider")
	}

	acc, err := p.accessor(id)
	if err != nil {
		p.listeners.serviceResolved(id, scope, err)
		return nil, err
	}

	if acc.callSite != nil {
		if err := p.onResolve(acc.callSite, scope); err != nil {
			p.listeners.serviceResolved(id, scope, err)
			return nil, err
		}
	}

	v, err := acc.resolve(scope)
	p.listeners.serviceResolved(id, scope, err)

	return v, err
}

// accessor returns the memoized accessor for id. Failed builds are not memoized.
func (p *Provider) accessor(id ServiceIdentifier) (*serviceAccessor, error) {
	if id.ServiceType == nil || !validKey(id.Key) {
		return notAService, nil
	}

	if acc, ok := p.accessors.Load(id); ok {
		return acc.(*serviceAccessor), nil
	}

	acc, err := p.createServiceAccessor(id)
	if err != nil {
		return nil, err
	}

	actual, _ := p.accessors.LoadOrStore(id, acc)

	return actual.(*serviceAccessor), nil
}

func (p *Provider) createServiceAccessor(id ServiceIdentifier) (*serviceAccessor, error) {
	cs, err := p.factory.getCallSite(id, newCallSiteChain())
	if err != nil {
		return nil, err
	}

	if cs == nil {
		return notAService, nil
	}

	if err := p.onCreate(cs); err != nil {
		return nil, err
	}

	// Singletons resolve once, here, and the accessor keeps the value.
	if cs.Cache().Location == CacheRoot {
		v, err := runtimeResolver.resolve(cs, p.root)
		if err != nil {
			return nil, err
		}

		return &serviceAccessor{
			callSite: cs,
			resolve:  func(*Scope) (any, error) { return v, nil },
		}, nil
	}

	return &serviceAccessor{
		callSite: cs,
		resolve: func(scope *Scope) (any, error) {
			return runtimeResolver.resolve(cs, scope)
		},
	}, nil
}

func (p *Provider) onCreate(cs CallSite) error {
	if p.validator == nil {
		return nil
	}

	return p.validator.validateCallSite(cs)
}

func (p *Provider) onResolve(cs CallSite, scope *Scope) error {
	if p.validator == nil {
		return nil
	}

	return p.validator.validateResolution(cs, scope, p.root)
}

// forgetScope drops a disposed child from the live set.
func (p *Provider) forgetScope(s *Scope) {
	p.mu.Lock()
	delete(p.scopes, s)
	p.mu.Unlock()
}

// disposeScopes marks the provider disposed and disposes every live child, newest first.
func (p *Provider) disposeScopes(ctx context.Context) error {
	p.mu.Lock()
	p.disposed.Store(true)
	live := make([]*Scope, 0, len(p.scopes))
	for s := range p.scopes {
		live = append(live, s)
	}
	p.scopes = make(map[*Scope]struct{})
	p.mu.Unlock()

	slices.SortFunc(live, func(a, b *Scope) int {
		switch {
		case a.seq > b.seq:
			return -1
		case a.seq < b.seq:
			return 1
		default:
			return 0
		}
	})

	var err error
	for _, s := range live {
		err = multierr.Append(err, s.DisposeContext(ctx))
	}

	return err
}

// scopeDisposed reports a finished disposal to the logger and the listeners.
func (p *Provider) scopeDisposed(s *Scope, disposables int, err error) {
	if err != nil {
		p.logger.Error("scope disposal failed",
			zap.Stringer("scope", s.id),
			zap.Bool("root", s.isRoot),
			zap.Int("disposables", disposables),
			zap.Error(err),
		)
	} else {
		p.logger.Debug("scope disposed",
			zap.Stringer("scope", s.id),
			zap.Bool("root", s.isRoot),
			zap.Int("disposables", disposables),
		)
	}

	p.listeners.scopeDisposed(s, disposables, err)

	if s.isRoot {
		p.listeners.providerDisposed(p, err)
	}
}

// required turns a missing service into ErrServiceNotFound.
func required(id ServiceIdentifier, get func(reflect.Type, any) (any, error)) (any, error) {
	v, err := get(id.ServiceType, id.Key)
	if err != nil {
		return nil, err
	}

	if v == nil {
		return nil, ErrServiceNotFound(id)
	}

	return v, nil
}
