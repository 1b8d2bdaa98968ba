package carapace

import (
	"fmt"
	"reflect"
)

// Resolve returns the service registered for T or fails with ErrServiceNotFound.
//
// Example:
//
//	logger, err := carapace.Resolve[Logger](scope)
func Resolve[T any](sp ServiceProvider) (T, error) {
	return resolveAs[T](sp.GetRequiredService(reflect.TypeFor[T]()))
}

// ResolveKeyed returns the service registered for T under key or fails with ErrServiceNotFound.
func ResolveKeyed[T any](sp ServiceProvider, key any) (T, error) {
	return resolveAs[T](sp.GetRequiredKeyedService(reflect.TypeFor[T](), key))
}

// ResolveWithKey resolves the service a typed key names.
//
// Example:
//
//	var PrimaryDB = carapace.NewKey[*Database]("primary")
//	db, err := carapace.ResolveWithKey(scope, PrimaryDB)
func ResolveWithKey[T any](sp ServiceProvider, key Key[T]) (T, error) {
	return ResolveKeyed[T](sp, key.Value())
}

// TryResolve resolves T when it is registered. The boolean is false, with a
// nil error, when T is not a service.
func TryResolve[T any](sp ServiceProvider) (T, bool, error) {
	var zero T

	instance, err := sp.GetService(reflect.TypeFor[T]())
	if err != nil || instance == nil {
		return zero, false, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, false, ErrTypeMismatch(IdentifierOf[T](), instance)
	}

	return typed, true, nil
}

// MustResolve resolves T or panics - use only during startup.
func MustResolve[T any](sp ServiceProvider) T {
	instance, err := Resolve[T](sp)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", IdentifierOf[T](), err))
	}

	return instance
}

// ResolveAll returns every registration of T in registration order.
// It returns an empty slice when nothing is registered.
func ResolveAll[T any](sp ServiceProvider) ([]T, error) {
	return Resolve[[]T](sp)
}

// ResolveAllKeyed returns every registration of T under key in registration order.
func ResolveAllKeyed[T any](sp ServiceProvider, key any) ([]T, error) {
	return ResolveKeyed[[]T](sp, key)
}

func resolveAs[T any](instance any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, ErrTypeMismatch(IdentifierOf[T](), instance)
	}

	return typed, nil
}

// Has reports whether T can be resolved from a provider or scope.
func Has[T any](inspector ServiceInspector) bool {
	return inspector.IsService(reflect.TypeFor[T]())
}

// HasKeyed reports whether T registered under key can be resolved.
func HasKeyed[T any](inspector ServiceInspector, key any) bool {
	return inspector.IsKeyedService(reflect.TypeFor[T](), key)
}
