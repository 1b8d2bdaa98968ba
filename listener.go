package carapace

// Listener observes provider activity. It is used for logging, metrics and
// testing. Hooks run synchronously on the goroutine doing the work and must
// not resolve services from the provider they observe.
type Listener interface {
	// ProviderBuilt is called once the provider is ready.
	ProviderBuilt(p *Provider)

	// CallSiteBuilt is called when a call site is built and memoized.
	CallSiteBuilt(cs CallSite)

	// ServiceResolved is called after a top-level resolution, even when it failed.
	ServiceResolved(id ServiceIdentifier, scope *Scope, err error)

	// ScopeCreated is called after a child scope is created.
	ScopeCreated(scope *Scope)

	// ScopeDisposed is called after a scope released its disposables.
	ScopeDisposed(scope *Scope, disposables int, err error)

	// ProviderDisposed is called after the root scope was disposed.
	ProviderDisposed(p *Provider, err error)
}

// listenerChain fans a hook out to every listener in order.
type listenerChain struct {
	listeners []Listener
}

func newListenerChain(listeners []Listener) *listenerChain {
	return &listenerChain{listeners: listeners}
}

func (c *listenerChain) providerBuilt(p *Provider) {
	for _, l := range c.listeners {
		l.ProviderBuilt(p)
	}
}

func (c *listenerChain) callSiteBuilt(cs CallSite) {
	for _, l := range c.listeners {
		l.CallSiteBuilt(cs)
	}
}

func (c *listenerChain) serviceResolved(id ServiceIdentifier, scope *Scope, err error) {
	for _, l := range c.listeners {
		l.ServiceResolved(id, scope, err)
	}
}

func (c *listenerChain) scopeCreated(scope *Scope) {
	for _, l := range c.listeners {
		l.ScopeCreated(scope)
	}
}

func (c *listenerChain) scopeDisposed(scope *Scope, disposables int, err error) {
	for _, l := range c.listeners {
		l.ScopeDisposed(scope, disposables, err)
	}
}

func (c *listenerChain) providerDisposed(p *Provider, err error) {
	for _, l := range c.listeners {
		l.ProviderDisposed(p, err)
	}
}

// FuncListener wraps functions as a Listener. Nil functions are skipped.
type FuncListener struct {
	ProviderBuiltFunc    func(p *Provider)
	CallSiteBuiltFunc    func(cs CallSite)
	ServiceResolvedFunc  func(id ServiceIdentifier, scope *Scope, err error)
	ScopeCreatedFunc     func(scope *Scope)
	ScopeDisposedFunc    func(scope *Scope, disposables int, err error)
	ProviderDisposedFunc func(p *Provider, err error)
}

// ProviderBuilt implements Listener.
func (f *FuncListener) ProviderBuilt(p *Provider) {
	if f.ProviderBuiltFunc != nil {
		f.ProviderBuiltFunc(p)
	}
}

// CallSiteBuilt implements Listener.
func (f *FuncListener) CallSiteBuilt(cs CallSite) {
	if f.CallSiteBuiltFunc != nil {
		f.CallSiteBuiltFunc(cs)
	}
}

// ServiceResolved implements Listener.
func (f *FuncListener) ServiceResolved(id ServiceIdentifier, scope *Scope, err error) {
	if f.ServiceResolvedFunc != nil {
		f.ServiceResolvedFunc(id, scope, err)
	}
}

// ScopeCreated implements Listener.
func (f *FuncListener) ScopeCreated(scope *Scope) {
	if f.ScopeCreatedFunc != nil {
		f.ScopeCreatedFunc(scope)
	}
}

// ScopeDisposed implements Listener.
func (f *FuncListener) ScopeDisposed(scope *Scope, disposables int, err error) {
	if f.ScopeDisposedFunc != nil {
		f.ScopeDisposedFunc(scope, disposables, err)
	}
}

// ProviderDisposed implements Listener.
func (f *FuncListener) ProviderDisposed(p *Provider, err error) {
	if f.ProviderDisposedFunc != nil {
		f.ProviderDisposedFunc(p, err)
	}
}
