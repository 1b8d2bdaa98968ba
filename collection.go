package carapace

import (
	"reflect"
)

// ServiceCollection is the ordered list of descriptors a provider is built from.
// Registration order is significant: the last registration of an identifier
// wins single-service resolution, and slice resolution returns every
// registration in the order it was added.
//
// A collection is not safe for concurrent mutation. Build it on one goroutine
// and call Build once it is complete.
type ServiceCollection struct {
	descriptors []*ServiceDescriptor
}

// NewServiceCollection creates an empty collection.
func NewServiceCollection() *ServiceCollection {
	return &ServiceCollection{}
}

// Add appends descriptors to the collection.
//
// Example:
//
//	services.Add(
//	    carapace.Describe[Logger](carapace.Singleton, NewConsoleLogger),
//	    carapace.Describe[*RequestContext](carapace.Scoped, NewRequestContext),
//	)
func (c *ServiceCollection) Add(descriptors ...*ServiceDescriptor) *ServiceCollection {
	c.descriptors = append(c.descriptors, descriptors...)
	return c
}

// TryAdd appends the descriptor only when nothing is registered for its identifier yet.
// It reports whether the descriptor was added.
func (c *ServiceCollection) TryAdd(descriptor *ServiceDescriptor) bool {
	if descriptor == nil || c.Contains(descriptor.Identifier()) {
		return false
	}

	c.descriptors = append(c.descriptors, descriptor)
	return true
}

// Contains reports whether any descriptor registers id.
func (c *ServiceCollection) Contains(id ServiceIdentifier) bool {
	if !validKey(id.Key) {
		return false
	}

	for _, d := range c.descriptors {
		if d != nil && validKey(d.Key) && d.Identifier() == id {
			return true
		}
	}

	return false
}

// Len returns the number of descriptors.
func (c *ServiceCollection) Len() int {
	return len(c.descriptors)
}

// Descriptors returns a copy of the registered descriptors in registration order.
func (c *ServiceCollection) Descriptors() []*ServiceDescriptor {
	out := make([]*ServiceDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Build compiles the collection into a provider. Later changes to the
// collection do not affect the returned provider.
func (c *ServiceCollection) Build(opts ...Option) (*Provider, error) {
	return NewProvider(c.Descriptors(), opts...)
}

// Describe creates a constructor-based descriptor for T.
func Describe[T any](lifetime Lifetime, constructors ...any) *ServiceDescriptor {
	return NewDescriptor(reflect.TypeFor[T](), lifetime, constructors...)
}

// DescribeKeyed creates a keyed constructor-based descriptor for T.
func DescribeKeyed[T any](key any, lifetime Lifetime, constructors ...any) *ServiceDescriptor {
	return NewKeyedDescriptor(reflect.TypeFor[T](), key, lifetime, constructors...)
}

// DescribeFunc creates a factory descriptor for T from a typed factory.
func DescribeFunc[T any](key any, lifetime Lifetime, factory func(ServiceProvider) (T, error)) *ServiceDescriptor {
	var wrapped FactoryFunc
	if factory != nil {
		wrapped = func(sp ServiceProvider) (any, error) {
			v, err := factory(sp)
			if err != nil {
				return nil, err
			}
			return v, nil
		}
	}

	return NewFactoryDescriptor(reflect.TypeFor[T](), key, lifetime, wrapped)
}

// AddSingleton registers T as a singleton built from the given constructors.
//
// Example:
//
//	carapace.AddSingleton[Logger](services, NewConsoleLogger)
func AddSingleton[T any](c *ServiceCollection, constructors ...any) {
	c.Add(Describe[T](Singleton, constructors...))
}

// AddScoped registers T as a scoped service built from the given constructors.
func AddScoped[T any](c *ServiceCollection, constructors ...any) {
	c.Add(Describe[T](Scoped, constructors...))
}

// AddTransient registers T as a transient service built from the given constructors.
func AddTransient[T any](c *ServiceCollection, constructors ...any) {
	c.Add(Describe[T](Transient, constructors...))
}

// AddKeyedSingleton registers T under key as a singleton.
func AddKeyedSingleton[T any](c *ServiceCollection, key any, constructors ...any) {
	c.Add(DescribeKeyed[T](key, Singleton, constructors...))
}

// AddKeyedScoped registers T under key as a scoped service.
func AddKeyedScoped[T any](c *ServiceCollection, key any, constructors ...any) {
	c.Add(DescribeKeyed[T](key, Scoped, constructors...))
}

// AddKeyedTransient registers T under key as a transient service.
func AddKeyedTransient[T any](c *ServiceCollection, key any, constructors ...any) {
	c.Add(DescribeKeyed[T](key, Transient, constructors...))
}

// AddInstance registers an existing value as the singleton for T.
func AddInstance[T any](c *ServiceCollection, instance T) {
	c.Add(NewInstanceDescriptor(reflect.TypeFor[T](), nil, instance))
}

// AddKeyedInstance registers an existing value as the singleton for T under key.
func AddKeyedInstance[T any](c *ServiceCollection, key any, instance T) {
	c.Add(NewInstanceDescriptor(reflect.TypeFor[T](), key, instance))
}

// AddSingletonFunc registers a singleton produced by factory.
func AddSingletonFunc[T any](c *ServiceCollection, factory func(ServiceProvider) (T, error)) {
	c.Add(DescribeFunc(nil, Singleton, factory))
}

// AddScopedFunc registers a scoped service produced by factory.
func AddScopedFunc[T any](c *ServiceCollection, factory func(ServiceProvider) (T, error)) {
	c.Add(DescribeFunc(nil, Scoped, factory))
}

// AddTransientFunc registers a transient service produced by factory.
func AddTransientFunc[T any](c *ServiceCollection, factory func(ServiceProvider) (T, error)) {
	c.Add(DescribeFunc(nil, Transient, factory))
}

// AddKeyedFunc registers a keyed service produced by factory.
func AddKeyedFunc[T any](c *ServiceCollection, key any, lifetime Lifetime, factory func(ServiceProvider) (T, error)) {
	c.Add(DescribeFunc(key, lifetime, factory))
}

// AddLazy registers Lazy[T] as a transient service so constructors can defer
// resolving T until it is first used.
func AddLazy[T any](c *ServiceCollection) {
	AddTransientFunc(c, func(sp ServiceProvider) (*Lazy[T], error) {
		return NewLazy[T](sp), nil
	})
}

// AddForward registers TService so that it resolves to the registration of
// TImpl. Both identifiers then share one instance per TImpl lifetime, and the
// instance is disposed once, by the scope that owns the TImpl registration.
//
// Example:
//
//	carapace.AddSingleton[*ConsoleLogger](services, NewConsoleLogger)
//	carapace.AddForward[Logger, *ConsoleLogger](services, carapace.Singleton)
func AddForward[TService, TImpl any](c *ServiceCollection, lifetime Lifetime) {
	d := DescribeFunc(nil, lifetime, func(sp ServiceProvider) (TService, error) {
		var zero TService

		impl, err := Resolve[TImpl](sp)
		if err != nil {
			return zero, err
		}

		service, ok := any(impl).(TService)
		if !ok {
			return zero, ErrTypeMismatch(IdentifierOf[TService](), impl)
		}

		return service, nil
	})
	d.borrowed = true

	c.Add(d)
}
