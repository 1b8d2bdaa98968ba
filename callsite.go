package carapace

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// CallSiteKind tags the closed set of call-site variants.
type CallSiteKind int

const (
	// KindConstant returns a fixed value.
	KindConstant CallSiteKind = iota

	// KindConstructor calls a constructor with resolved parameters.
	KindConstructor

	// KindFactory calls a factory function with the resolving scope.
	KindFactory

	// KindEnumerable builds a slice from every registration of the element type.
	KindEnumerable

	// KindServiceProvider returns the resolving scope itself.
	KindServiceProvider
)

// String returns the kind name
func (k CallSiteKind) String() string {
	switch k {
	case KindConstant:
		return "Constant"
	case KindConstructor:
		return "Constructor"
	case KindFactory:
		return "Factory"
	case KindEnumerable:
		return "Enumerable"
	case KindServiceProvider:
		return "ServiceProvider"
	default:
		return fmt.Sprintf("CallSiteKind(%d)", int(k))
	}
}

// CacheLocation says where a produced value is remembered. Lower values are
// more restrictive.
type CacheLocation int

const (
	// CacheNone never remembers the value.
	CacheNone CacheLocation = iota

	// CacheTransient never remembers the value but captures it for disposal.
	CacheTransient

	// CacheScope remembers the value in the resolving scope.
	CacheScope

	// CacheRoot remembers the value on the call site for the provider lifetime.
	CacheRoot
)

// String returns the location name
func (l CacheLocation) String() string {
	switch l {
	case CacheNone:
		return "None"
	case CacheTransient:
		return "Dispose"
	case CacheScope:
		return "Scope"
	case CacheRoot:
		return "Root"
	default:
		return fmt.Sprintf("CacheLocation(%d)", int(l))
	}
}

// ResultCache pairs a cache location with the key used to memoize a call site.
type ResultCache struct {
	Location CacheLocation
	Key      ServiceCacheKey
}

func newResultCache(lifetime Lifetime, key ServiceCacheKey) ResultCache {
	location := CacheTransient

	switch lifetime {
	case Singleton:
		location = CacheRoot
	case Scoped:
		location = CacheScope
	}

	return ResultCache{Location: location, Key: key}
}

func noCache(id ServiceIdentifier) ResultCache {
	return ResultCache{Location: CacheNone, Key: ServiceCacheKey{Identifier: id}}
}

// commonLocation returns the more restrictive of two locations.
func commonLocation(a, b CacheLocation) CacheLocation {
	return min(a, b)
}

// valueCell is a publish-once slot. Writers serialize on mu and publish at most
// once; readers load the published value without locking.
type valueCell struct {
	mu    sync.Mutex
	value atomic.Pointer[cellValue]
}

type cellValue struct {
	v any
}

// load returns the published value, if any.
func (c *valueCell) load() (any, bool) {
	p := c.value.Load()
	if p == nil {
		return nil, false
	}

	return p.v, true
}

// publish stores v. The caller must hold mu and must have observed an empty cell.
func (c *valueCell) publish(v any) {
	c.value.Store(&cellValue{v: v})
}

// CallSite describes how to produce a value for a service. Call sites are
// immutable once built; the only mutable part is the publish-once value slot
// used when the call site is cached at the root.
//
// The set of implementations is closed: *ConstantCallSite,
// *ConstructorCallSite, *FactoryCallSite, *EnumerableCallSite and
// *ServiceProviderCallSite.
type CallSite interface {
	ServiceType() reflect.Type
	ImplementationType() reflect.Type
	Key() any
	Kind() CallSiteKind
	Cache() ResultCache

	cell() *valueCell
}

type callSiteBase struct {
	serviceType reflect.Type
	key         any
	cache       ResultCache
	value       valueCell
}

// ServiceType returns the type the call site is registered as.
func (b *callSiteBase) ServiceType() reflect.Type { return b.serviceType }

// Key returns the service key, or nil.
func (b *callSiteBase) Key() any { return b.key }

// Cache returns the result cache policy.
func (b *callSiteBase) Cache() ResultCache { return b.cache }

func (b *callSiteBase) cell() *valueCell { return &b.value }

// ConstantCallSite returns a fixed value.
type ConstantCallSite struct {
	callSiteBase
	constant any
}

func newConstantCallSite(id ServiceIdentifier, slot int, value any) *ConstantCallSite {
	cache := noCache(id)
	cache.Key.Slot = slot

	return &ConstantCallSite{
		callSiteBase: callSiteBase{serviceType: id.ServiceType, key: id.Key, cache: cache},
		constant:     value,
	}
}

// Kind returns KindConstant.
func (c *ConstantCallSite) Kind() CallSiteKind { return KindConstant }

// ImplementationType returns the dynamic type of the value.
func (c *ConstantCallSite) ImplementationType() reflect.Type {
	if c.constant == nil {
		return c.serviceType
	}
	return reflect.TypeOf(c.constant)
}

// Value returns the constant.
func (c *ConstantCallSite) Value() any { return c.constant }

// ConstructorCallSite calls the chosen constructor with its parameter call sites.
type ConstructorCallSite struct {
	callSiteBase
	ctor       *constructorInfo
	parameters []CallSite
}

func newConstructorCallSite(cache ResultCache, id ServiceIdentifier, ctor *constructorInfo, parameters []CallSite) *ConstructorCallSite {
	return &ConstructorCallSite{
		callSiteBase: callSiteBase{serviceType: id.ServiceType, key: id.Key, cache: cache},
		ctor:         ctor,
		parameters:   parameters,
	}
}

// Kind returns KindConstructor.
func (c *ConstructorCallSite) Kind() CallSiteKind { return KindConstructor }

// ImplementationType returns the constructor's result type.
func (c *ConstructorCallSite) ImplementationType() reflect.Type { return c.ctor.result }

// Constructor returns the signature of the chosen constructor.
func (c *ConstructorCallSite) Constructor() reflect.Type { return c.ctor.fnType }

// Parameters returns the parameter call sites in argument order. The slice must not be modified.
func (c *ConstructorCallSite) Parameters() []CallSite { return c.parameters }

// FactoryCallSite calls a factory with the resolving scope.
type FactoryCallSite struct {
	callSiteBase
	factory  FactoryFunc
	borrowed bool
}

func newFactoryCallSite(cache ResultCache, id ServiceIdentifier, factory FactoryFunc, borrowed bool) *FactoryCallSite {
	return &FactoryCallSite{
		callSiteBase: callSiteBase{serviceType: id.ServiceType, key: id.Key, cache: cache},
		factory:      factory,
		borrowed:     borrowed,
	}
}

// Kind returns KindFactory.
func (c *FactoryCallSite) Kind() CallSiteKind { return KindFactory }

// ImplementationType returns the service type; a factory's result type is unknown until it runs.
func (c *FactoryCallSite) ImplementationType() reflect.Type { return c.serviceType }

// EnumerableCallSite produces a slice holding one value per registration of the element type.
type EnumerableCallSite struct {
	callSiteBase
	itemType reflect.Type
	elements []CallSite
}

func newEnumerableCallSite(cache ResultCache, id ServiceIdentifier, itemType reflect.Type, elements []CallSite) *EnumerableCallSite {
	return &EnumerableCallSite{
		callSiteBase: callSiteBase{serviceType: id.ServiceType, key: id.Key, cache: cache},
		itemType:     itemType,
		elements:     elements,
	}
}

// Kind returns KindEnumerable.
func (c *EnumerableCallSite) Kind() CallSiteKind { return KindEnumerable }

// ImplementationType returns the slice type.
func (c *EnumerableCallSite) ImplementationType() reflect.Type { return c.serviceType }

// ItemType returns the element type.
func (c *EnumerableCallSite) ItemType() reflect.Type { return c.itemType }

// Elements returns the element call sites in registration order. The slice must not be modified.
func (c *EnumerableCallSite) Elements() []CallSite { return c.elements }

// ServiceProviderCallSite resolves to the scope performing the resolution.
type ServiceProviderCallSite struct {
	callSiteBase
}

func newServiceProviderCallSite() *ServiceProviderCallSite {
	id := ServiceIdentifier{ServiceType: serviceProviderType}

	return &ServiceProviderCallSite{
		callSiteBase: callSiteBase{serviceType: serviceProviderType, cache: noCache(id)},
	}
}

// Kind returns KindServiceProvider.
func (c *ServiceProviderCallSite) Kind() CallSiteKind { return KindServiceProvider }

// ImplementationType returns *Scope.
func (c *ServiceProviderCallSite) ImplementationType() reflect.Type { return scopeType }
