package carapace

import (
	"fmt"
	"reflect"
	"strings"
)

// Lifetime specifies how long an instance produced for a descriptor is shared.
type Lifetime int

const (
	// Singleton instances are created once per provider and shared by every scope.
	Singleton Lifetime = iota

	// Scoped instances are created once per scope.
	Scoped

	// Transient instances are created on every resolution.
	Transient
)

// String returns the lowercase lifetime name.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

// ParseLifetime converts a lifetime name into a Lifetime. Matching is case-insensitive.
func ParseLifetime(s string) (Lifetime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "singleton":
		return Singleton, nil
	case "scoped":
		return Scoped, nil
	case "transient":
		return Transient, nil
	default:
		return 0, fmt.Errorf("unknown lifetime %q", s)
	}
}

// FactoryFunc builds a service instance using the scope it is resolved from.
type FactoryFunc func(sp ServiceProvider) (any, error)

// ServiceDescriptor describes a single registration: the service type, an
// optional key, the lifetime, and exactly one recipe for producing instances.
//
// Recipes are mutually exclusive: a constant instance, a factory function,
// or one or more candidate constructor functions. Use the New*Descriptor
// functions, or the Add* helpers on ServiceCollection, to build descriptors.
type ServiceDescriptor struct {
	ServiceType reflect.Type
	Key         any
	Lifetime    Lifetime

	// Instance is the constant value for instance registrations.
	Instance any

	// Factory builds the service from the resolving scope.
	Factory FactoryFunc

	// Constructors are candidate functions of the form func(deps...) T or
	// func(deps...) (T, error). The most satisfiable one is chosen at resolution.
	Constructors []any

	hasInstance bool

	// borrowed factories return values owned by another registration.
	borrowed bool
}

// NewDescriptor creates a constructor-based descriptor.
func NewDescriptor(serviceType reflect.Type, lifetime Lifetime, constructors ...any) *ServiceDescriptor {
	return NewKeyedDescriptor(serviceType, nil, lifetime, constructors...)
}

// NewKeyedDescriptor creates a constructor-based descriptor registered under key.
func NewKeyedDescriptor(serviceType reflect.Type, key any, lifetime Lifetime, constructors ...any) *ServiceDescriptor {
	return &ServiceDescriptor{
		ServiceType:  serviceType,
		Key:          key,
		Lifetime:     lifetime,
		Constructors: constructors,
	}
}

// NewFactoryDescriptor creates a factory-based descriptor.
func NewFactoryDescriptor(serviceType reflect.Type, key any, lifetime Lifetime, factory FactoryFunc) *ServiceDescriptor {
	return &ServiceDescriptor{
		ServiceType: serviceType,
		Key:         key,
		Lifetime:    lifetime,
		Factory:     factory,
	}
}

// NewInstanceDescriptor creates a singleton descriptor for an existing value.
// The value is never disposed by the provider; its owner remains responsible for it.
func NewInstanceDescriptor(serviceType reflect.Type, key any, instance any) *ServiceDescriptor {
	return &ServiceDescriptor{
		ServiceType: serviceType,
		Key:         key,
		Lifetime:    Singleton,
		Instance:    instance,
		hasInstance: true,
	}
}

// Identifier returns the identifier the descriptor registers.
func (d *ServiceDescriptor) Identifier() ServiceIdentifier {
	return ServiceIdentifier{ServiceType: d.ServiceType, Key: d.Key}
}

// IsKeyed reports whether the descriptor carries a service key.
func (d *ServiceDescriptor) IsKeyed() bool {
	return d.Key != nil
}

// HasInstance reports whether the descriptor registers a constant value.
func (d *ServiceDescriptor) HasInstance() bool {
	return d.hasInstance
}

// Recipe names the kind of recipe the descriptor carries.
func (d *ServiceDescriptor) Recipe() string {
	switch {
	case d.hasInstance:
		return "instance"
	case d.Factory != nil:
		return "factory"
	case len(d.Constructors) > 0:
		return "constructor"
	default:
		return "none"
	}
}

// ImplementationType returns the concrete type the descriptor produces when it
// can be known without running anything. Factories report the service type.
func (d *ServiceDescriptor) ImplementationType() reflect.Type {
	switch {
	case d.hasInstance:
		if d.Instance != nil {
			return reflect.TypeOf(d.Instance)
		}
	case len(d.Constructors) > 0:
		if t := reflect.TypeOf(d.Constructors[0]); t != nil && t.Kind() == reflect.Func && t.NumOut() > 0 {
			return t.Out(0)
		}
	}

	return d.ServiceType
}

// String returns a human-readable representation of the descriptor
func (d *ServiceDescriptor) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "ServiceType: %s", typeName(d.ServiceType))
	if d.Key != nil {
		fmt.Fprintf(&b, " ServiceKey: %v", d.Key)
	}
	fmt.Fprintf(&b, " Lifetime: %s", d.Lifetime)

	switch d.Recipe() {
	case "instance":
		fmt.Fprintf(&b, " ImplementationInstance: %T", d.Instance)
	case "factory":
		b.WriteString(" ImplementationFactory: func(ServiceProvider) (any, error)")
	case "constructor":
		fmt.Fprintf(&b, " ImplementationType: %s", typeName(d.ImplementationType()))
	}

	return b.String()
}

// validate checks the descriptor shape and analyzes its constructors.
func (d *ServiceDescriptor) validate() ([]*constructorInfo, error) {
	if d == nil {
		return nil, ErrInvalidDescriptor("<nil>", "descriptor is nil")
	}

	if d.ServiceType == nil {
		return nil, ErrInvalidDescriptor(d.String(), "service type is nil")
	}

	if !validKey(d.Key) {
		return nil, ErrInvalidDescriptor(d.String(), fmt.Sprintf("service key of type %T is not comparable", d.Key))
	}

	switch d.Lifetime {
	case Singleton, Scoped, Transient:
	default:
		return nil, ErrInvalidDescriptor(d.String(), fmt.Sprintf("unknown lifetime %d", int(d.Lifetime)))
	}

	recipes := 0
	if d.hasInstance {
		recipes++
	}
	if d.Factory != nil {
		recipes++
	}
	if len(d.Constructors) > 0 {
		recipes++
	}

	switch recipes {
	case 0:
		return nil, ErrInvalidDescriptor(d.String(), "no instance, factory or constructor was provided")
	case 1:
	default:
		return nil, ErrInvalidDescriptor(d.String(), "only one of instance, factory or constructors may be provided")
	}

	if d.hasInstance {
		if d.Lifetime != Singleton {
			return nil, ErrInvalidDescriptor(d.String(), "instance registrations must be singletons")
		}

		if d.Instance != nil && !reflect.TypeOf(d.Instance).AssignableTo(d.ServiceType) {
			return nil, ErrInvalidDescriptor(d.String(),
				fmt.Sprintf("constant value of type %T can't be converted to service type %s", d.Instance, d.ServiceType))
		}

		return nil, nil
	}

	if d.Factory != nil {
		return nil, nil
	}

	ctors, err := analyzeConstructors(d.ServiceType, d.Constructors)
	if err != nil {
		return nil, ErrInvalidDescriptor(d.String(), err.Error())
	}

	return ctors, nil
}

// validKey reports whether key can be used as a lookup key without panicking.
func validKey(key any) bool {
	return key == nil || reflect.TypeOf(key).Comparable()
}
