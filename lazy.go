package carapace

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Lazy wraps a dependency that is resolved on first access.
// This is useful for deferring resolution of expensive services until
// they're actually needed. The wrapped provider is the one the Lazy was
// resolved from, so it does not lift lifetime rules: a singleton holding a
// Lazy of a scoped service still resolves it from the root.
type Lazy[T any] struct {
	sp       ServiceProvider
	id       ServiceIdentifier
	once     sync.Once
	value    T
	err      error
	resolved atomic.Bool
}

// NewLazy creates a lazy wrapper for T resolved from sp.
func NewLazy[T any](sp ServiceProvider) *Lazy[T] {
	return &Lazy[T]{sp: sp, id: IdentifierOf[T]()}
}

// NewKeyedLazy creates a lazy wrapper for T registered under key.
func NewKeyedLazy[T any](sp ServiceProvider, key any) *Lazy[T] {
	return &Lazy[T]{sp: sp, id: KeyedIdentifierOf[T](key)}
}

// Get resolves the dependency and returns it.
// The resolution happens only once; subsequent calls return the cached value or error.
func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		l.value, l.err = ResolveKeyed[T](l.sp, l.id.Key)
		l.resolved.Store(l.err == nil)
	})

	return l.value, l.err
}

// MustGet resolves the dependency and returns it, panicking on error.
func (l *Lazy[T]) MustGet() T {
	value, err := l.Get()
	if err != nil {
		panic(fmt.Sprintf("lazy dependency %s failed: %v", l.id, err))
	}

	return value
}

// IsResolved returns true if the dependency has been resolved successfully.
func (l *Lazy[T]) IsResolved() bool {
	return l.resolved.Load()
}

// Identifier returns the identifier of the dependency.
func (l *Lazy[T]) Identifier() ServiceIdentifier {
	return l.id
}

// Factory resolves T on every call. With a transient registration each
// call yields a fresh instance.
type Factory[T any] struct {
	sp ServiceProvider
	id ServiceIdentifier
}

// NewFactory creates a factory for T resolved from sp.
func NewFactory[T any](sp ServiceProvider) *Factory[T] {
	return &Factory[T]{sp: sp, id: IdentifierOf[T]()}
}

// NewKeyedFactory creates a factory for T registered under key.
func NewKeyedFactory[T any](sp ServiceProvider, key any) *Factory[T] {
	return &Factory[T]{sp: sp, id: KeyedIdentifierOf[T](key)}
}

// Create resolves and returns an instance of the dependency.
func (f *Factory[T]) Create() (T, error) {
	return ResolveKeyed[T](f.sp, f.id.Key)
}

// MustCreate resolves and returns an instance, panicking on error.
func (f *Factory[T]) MustCreate() T {
	value, err := f.Create()
	if err != nil {
		panic(fmt.Sprintf("factory %s failed: %v", f.id, err))
	}

	return value
}

// Identifier returns the identifier of the dependency.
func (f *Factory[T]) Identifier() ServiceIdentifier {
	return f.id
}
