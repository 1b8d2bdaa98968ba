package carapace

import (
	"fmt"
	"reflect"
)

// ServiceIdentifier identifies a service by its Go type and optional key.
// Two identifiers are equal when both the type and the key are equal,
// so the key must be a comparable value.
type ServiceIdentifier struct {
	ServiceType reflect.Type
	Key         any
}

// IdentifierOf returns the unkeyed identifier for T.
// Interface types are preserved, so IdentifierOf[io.Reader]() names the interface.
func IdentifierOf[T any]() ServiceIdentifier {
	return ServiceIdentifier{ServiceType: reflect.TypeFor[T]()}
}

// KeyedIdentifierOf returns the identifier for T registered under key.
func KeyedIdentifierOf[T any](key any) ServiceIdentifier {
	return ServiceIdentifier{ServiceType: reflect.TypeFor[T](), Key: key}
}

// IsKeyed reports whether the identifier carries a key.
func (id ServiceIdentifier) IsKeyed() bool {
	return id.Key != nil
}

// String returns a human-readable representation of the identifier
func (id ServiceIdentifier) String() string {
	name := typeName(id.ServiceType)
	if id.Key == nil {
		return name
	}

	return fmt.Sprintf("%s[key=%v]", name, id.Key)
}

// ServiceCacheKey is the memoization key used by scopes and call sites.
// Slot disambiguates several registrations of one identifier: slot 0 is the
// last registration, slot 1 the one before it, and so on.
type ServiceCacheKey struct {
	Identifier ServiceIdentifier
	Slot       int
}

// String returns a human-readable representation of the cache key
func (k ServiceCacheKey) String() string {
	if k.Slot == 0 {
		return k.Identifier.String()
	}

	return fmt.Sprintf("%s#%d", k.Identifier, k.Slot)
}

// Key provides type-safe keyed service identification.
// Use NewKey to create typed keys for your services.
type Key[T any] struct {
	key any
}

// NewKey creates a new typed service key.
// The type parameter T ensures type safety when registering and resolving services.
//
// Example:
//
//	var PrimaryDB = NewKey[*Database]("primary")
//	AddKeyedSingleton[*Database](services, PrimaryDB.Value(), NewPrimaryDatabase)
//	db, err := ResolveWithKey(scope, PrimaryDB)
func NewKey[T any](key any) Key[T] {
	return Key[T]{key: key}
}

// Value returns the raw key value.
func (k Key[T]) Value() any {
	return k.key
}

// Identifier returns the service identifier the key names.
func (k Key[T]) Identifier() ServiceIdentifier {
	return KeyedIdentifierOf[T](k.key)
}

// String returns the identifier string of the key.
func (k Key[T]) String() string {
	return k.Identifier().String()
}
