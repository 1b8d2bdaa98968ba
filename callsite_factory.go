package carapace

import (
	"reflect"
	"sync"
)

// descriptorEntry is a validated descriptor together with its slot and analyzed constructors.
type descriptorEntry struct {
	descriptor *ServiceDescriptor
	id         ServiceIdentifier
	slot       int
	ctors      []*constructorInfo
}

// callSiteFactory turns service identifiers into call-site trees.
// The descriptor index and the built-ins are fixed at construction;
// built call sites are memoized per cache key.
type callSiteFactory struct {
	entries  []*descriptorEntry
	index    map[ServiceIdentifier][]*descriptorEntry
	builtins map[ServiceIdentifier]CallSite
	cache    sync.Map // ServiceCacheKey -> CallSite
	onBuilt  func(CallSite)
}

// newCallSiteFactory validates every descriptor. Shape errors are returned
// per descriptor, in registration order, so the caller can aggregate them.
func newCallSiteFactory(descriptors []*ServiceDescriptor) (*callSiteFactory, []error) {
	f := &callSiteFactory{
		index:    make(map[ServiceIdentifier][]*descriptorEntry),
		builtins: make(map[ServiceIdentifier]CallSite),
	}

	var failures []error
	for _, d := range descriptors {
		ctors, err := d.validate()
		if err != nil {
			failures = append(failures, err)
			continue
		}

		entry := &descriptorEntry{descriptor: d, id: d.Identifier(), ctors: ctors}
		f.entries = append(f.entries, entry)
		f.index[entry.id] = append(f.index[entry.id], entry)
	}

	// Slot 0 is the last registration of an identifier.
	for _, list := range f.index {
		for i, entry := range list {
			entry.slot = len(list) - 1 - i
		}
	}

	return f, failures
}

// addBuiltin registers a call site that needs no descriptor. Must be called
// before the factory is shared.
func (f *callSiteFactory) addBuiltin(serviceType reflect.Type, cs CallSite) {
	f.builtins[ServiceIdentifier{ServiceType: serviceType}] = cs
}

// IsService reports whether serviceType can be resolved.
func (f *callSiteFactory) IsService(serviceType reflect.Type) bool {
	return f.IsKeyedService(serviceType, nil)
}

// IsKeyedService reports whether serviceType registered under key can be resolved.
// Slice types are always resolvable since they may resolve to an empty slice.
func (f *callSiteFactory) IsKeyedService(serviceType reflect.Type, key any) bool {
	if serviceType == nil || !validKey(key) {
		return false
	}

	id := ServiceIdentifier{ServiceType: serviceType, Key: key}
	if _, ok := f.index[id]; ok {
		return true
	}
	if _, ok := f.builtins[id]; ok {
		return true
	}

	return serviceType.Kind() == reflect.Slice
}

// getCallSite returns the call site for id, or nil when id is not a service.
func (f *callSiteFactory) getCallSite(id ServiceIdentifier, chain *callSiteChain) (CallSite, error) {
	if id.ServiceType == nil || !validKey(id.Key) {
		return nil, nil
	}

	if cs, ok := f.cache.Load(ServiceCacheKey{Identifier: id}); ok {
		return cs.(CallSite), nil
	}

	return f.createCallSite(id, chain)
}

// getDescriptorCallSite returns the call site of one specific registration.
func (f *callSiteFactory) getDescriptorCallSite(entry *descriptorEntry, chain *callSiteChain) (CallSite, error) {
	if err := chain.checkCircularDependency(entry.id); err != nil {
		return nil, err
	}

	return f.tryCreateExactEntry(entry, chain)
}

func (f *callSiteFactory) createCallSite(id ServiceIdentifier, chain *callSiteChain) (CallSite, error) {
	if err := chain.checkCircularDependency(id); err != nil {
		return nil, err
	}

	if cs, ok := f.builtins[id]; ok {
		return cs, nil
	}

	if list := f.index[id]; len(list) > 0 {
		return f.tryCreateExactEntry(list[len(list)-1], chain)
	}

	if id.ServiceType.Kind() == reflect.Slice {
		return f.createEnumerable(id, chain)
	}

	return nil, nil
}

func (f *callSiteFactory) tryCreateExactEntry(entry *descriptorEntry, chain *callSiteChain) (CallSite, error) {
	key := ServiceCacheKey{Identifier: entry.id, Slot: entry.slot}
	if cs, ok := f.cache.Load(key); ok {
		return cs.(CallSite), nil
	}

	d := entry.descriptor
	cache := newResultCache(d.Lifetime, key)

	var cs CallSite
	switch {
	case d.hasInstance:
		cs = newConstantCallSite(entry.id, entry.slot, d.Instance)
	case d.Factory != nil:
		cs = newFactoryCallSite(cache, entry.id, d.Factory, d.borrowed)
	default:
		ctorSite, err := f.createConstructorCallSite(cache, entry, chain)
		if err != nil {
			return nil, err
		}
		cs = ctorSite
	}

	return f.store(key, cs), nil
}

func (f *callSiteFactory) createEnumerable(id ServiceIdentifier, chain *callSiteChain) (CallSite, error) {
	itemType := id.ServiceType.Elem()
	itemID := ServiceIdentifier{ServiceType: itemType, Key: id.Key}

	chain.add(id, nil)
	defer chain.remove(id)

	location := CacheRoot
	list := f.index[itemID]
	elements := make([]CallSite, 0, len(list))

	for _, entry := range list {
		if err := chain.checkCircularDependency(itemID); err != nil {
			return nil, err
		}

		cs, err := f.tryCreateExactEntry(entry, chain)
		if err != nil {
			return nil, err
		}

		location = commonLocation(location, cs.Cache().Location)
		elements = append(elements, cs)
	}

	key := ServiceCacheKey{Identifier: id}
	cs := newEnumerableCallSite(ResultCache{Location: location, Key: key}, id, itemType, elements)

	return f.store(key, cs), nil
}

// createConstructorCallSite picks the longest constructor whose parameters are
// all resolvable. Another resolvable candidate of the same length with a
// different parameter set makes the choice ambiguous.
func (f *callSiteFactory) createConstructorCallSite(cache ResultCache, entry *descriptorEntry, chain *callSiteChain) (CallSite, error) {
	impl := entry.descriptor.ImplementationType()

	chain.add(entry.id, impl)
	defer chain.remove(entry.id)

	var (
		best       *constructorInfo
		bestParams []CallSite
		missing    reflect.Type
	)

	for _, ctor := range entry.ctors {
		if best != nil && len(ctor.params) < len(best.params) {
			break
		}

		params, unresolved, err := f.createArgumentCallSites(ctor, chain)
		if err != nil {
			return nil, err
		}

		if unresolved != nil {
			if missing == nil {
				missing = unresolved
			}
			continue
		}

		if best == nil {
			best, bestParams = ctor, params
			continue
		}

		if !best.sameParameters(ctor) {
			return nil, ErrAmbiguousConstructor(impl, best.fnType, ctor.fnType)
		}
	}

	if best == nil {
		return nil, ErrUnresolvableParameter(missing, impl)
	}

	return newConstructorCallSite(cache, entry.id, best, bestParams), nil
}

// createArgumentCallSites resolves the call site of every parameter. When a
// parameter is not a service its type is returned as unresolved.
func (f *callSiteFactory) createArgumentCallSites(ctor *constructorInfo, chain *callSiteChain) ([]CallSite, reflect.Type, error) {
	params := make([]CallSite, len(ctor.params))

	for i, p := range ctor.params {
		cs, err := f.getCallSite(ServiceIdentifier{ServiceType: p}, chain)
		if err != nil {
			return nil, nil, err
		}
		if cs == nil {
			return nil, p, nil
		}
		params[i] = cs
	}

	return params, nil, nil
}

// store memoizes cs under key. When another goroutine stored first, its call
// site is returned so every tree shares one node per key.
func (f *callSiteFactory) store(key ServiceCacheKey, cs CallSite) CallSite {
	actual, loaded := f.cache.LoadOrStore(key, cs)
	if !loaded && f.onBuilt != nil {
		f.onBuilt(cs)
	}

	return actual.(CallSite)
}
