package carapace

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/go-utils/errs"
	"go.uber.org/multierr"
)

func TestServiceCollection_AddAndDescriptors(t *testing.T) {
	services := NewServiceCollection()
	services.
		Add(Describe[Logger](Singleton, func() Logger { return newMemoryLogger() })).
		Add(Describe[RequestContext](Scoped, newRequestContext))

	assert.Equal(t, 2, services.Len())
	assert.True(t, services.Contains(IdentifierOf[Logger]()))
	assert.False(t, services.Contains(IdentifierOf[*Widget]()))

	descriptors := services.Descriptors()
	descriptors[0] = nil
	assert.NotNil(t, services.Descriptors()[0])
}

func TestServiceCollection_TryAdd(t *testing.T) {
	services := NewServiceCollection()

	assert.True(t, services.TryAdd(Describe[Plugin](Singleton, pluginNamed("A"))))
	assert.False(t, services.TryAdd(Describe[Plugin](Singleton, pluginNamed("B"))))
	assert.True(t, services.TryAdd(DescribeKeyed[Plugin]("k", Singleton, pluginNamed("C"))))
	assert.False(t, services.TryAdd(nil))

	p, err := services.Build()
	require.NoError(t, err)
	defer p.Dispose()

	assert.Equal(t, "A", MustResolve[Plugin](p).Name())
}

func TestServiceCollection_BuildIsolatedFromLaterChanges(t *testing.T) {
	services := NewServiceCollection()
	AddSingleton[Plugin](services, pluginNamed("A"))

	p, err := services.Build()
	require.NoError(t, err)
	defer p.Dispose()

	AddSingleton[Plugin](services, pluginNamed("B"))

	assert.Equal(t, "A", MustResolve[Plugin](p).Name())
	assert.Len(t, p.Descriptors(), 1)
}

func TestServiceCollection_ShapeErrorsAreAggregated(t *testing.T) {
	services := NewServiceCollection()
	services.Add(
		&ServiceDescriptor{Lifetime: Singleton, Constructors: []any{func() int { return 1 }}},
		NewKeyedDescriptor(reflect.TypeFor[Plugin](), []string{"not comparable"}, Singleton, pluginNamed("A")),
		&ServiceDescriptor{ServiceType: reflect.TypeFor[Plugin](), Lifetime: Singleton},
		NewDescriptor(reflect.TypeFor[Plugin](), Singleton, "not a function"),
		NewDescriptor(reflect.TypeFor[Plugin](), Singleton, func() *counter { return &counter{} }),
		&ServiceDescriptor{ServiceType: reflect.TypeFor[*counter](), Lifetime: Scoped, Instance: &counter{}, hasInstance: true},
		NewInstanceDescriptor(reflect.TypeFor[Plugin](), nil, &counter{}),
		NewDescriptor(reflect.TypeFor[Plugin](), Lifetime(42), pluginNamed("A")),
		nil,
	)
	AddSingleton[Logger](services, func() Logger { return newMemoryLogger() })

	_, err := services.Build()
	require.ErrorIs(t, err, ErrInvalidServicesSentinel)
	assert.ErrorIs(t, err, ErrInvalidDescriptorSentinel)

	var invalid *errs.Error
	require.ErrorAs(t, err, &invalid)
	assert.Len(t, multierr.Errors(invalid.Cause()), 9)
}

func TestServiceCollection_MultipleRecipesRejected(t *testing.T) {
	d := NewDescriptor(reflect.TypeFor[*counter](), Singleton, func() *counter { return &counter{} })
	d.Factory = func(ServiceProvider) (any, error) { return &counter{}, nil }

	_, err := NewProvider([]*ServiceDescriptor{d})
	assert.ErrorIs(t, err, ErrInvalidDescriptorSentinel)
}

func TestServiceCollection_ConstructorShapes(t *testing.T) {
	tests := []struct {
		name string
		ctor any
		ok   bool
	}{
		{"value", func() *counter { return &counter{} }, true},
		{"value and error", func() (*counter, error) { return &counter{}, nil }, true},
		{"nil", nil, false},
		{"nil func", (func() *counter)(nil), false},
		{"variadic", func(...int) *counter { return &counter{} }, false},
		{"no results", func() {}, false},
		{"error not last", func() (error, *counter) { return nil, nil }, false},
		{"only error", func() error { return nil }, false},
		{"three results", func() (*counter, int, error) { return nil, 0, nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider([]*ServiceDescriptor{
				{ServiceType: reflect.TypeFor[*counter](), Lifetime: Transient, Constructors: []any{tt.ctor}},
			})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidDescriptorSentinel)
			}
		})
	}
}

func TestServiceCollection_FactoryRegistrations(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddSingletonFunc(c, func(ServiceProvider) (*depA, error) { return &depA{}, nil })
		AddScopedFunc(c, func(sp ServiceProvider) (*depB, error) {
			_, err := Resolve[*depA](sp)
			return &depB{}, err
		})
		AddTransientFunc(c, func(ServiceProvider) (*counter, error) { return &counter{n: 1}, nil })
		AddKeyedFunc(c, "keyed", Scoped, func(ServiceProvider) (*counter, error) { return &counter{n: 2}, nil })
	})

	scope, err := p.CreateScope()
	require.NoError(t, err)

	assert.Same(t, MustResolve[*depA](scope), MustResolve[*depA](p))
	assert.Same(t, MustResolve[*depB](scope), MustResolve[*depB](scope))
	assert.NotSame(t, MustResolve[*counter](scope), MustResolve[*counter](scope))

	keyed, err := ResolveKeyed[*counter](scope, "keyed")
	require.NoError(t, err)
	assert.Equal(t, 2, keyed.n)
}

func TestServiceCollection_AddForwardSharesInstance(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddSingleton[*memoryLogger](c, newMemoryLogger)
		AddForward[Logger, *memoryLogger](c, Singleton)
	})

	impl := MustResolve[*memoryLogger](p)
	iface := MustResolve[Logger](p)
	assert.Same(t, impl, iface)
}

func TestServiceCollection_AddForwardDisposesOnce(t *testing.T) {
	tests := []struct {
		name    string
		impl    Lifetime
		forward Lifetime
	}{
		{"singleton", Singleton, Singleton},
		{"scoped", Scoped, Scoped},
		{"scoped forward to singleton", Singleton, Scoped},
		{"transient forward to singleton", Singleton, Transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &disposeLog{}

			services := NewServiceCollection()
			services.Add(Describe[*trackedService](tt.impl, func() *trackedService { return tracked(log, "impl") }))
			AddForward[Disposable, *trackedService](services, tt.forward)

			p, err := services.Build()
			require.NoError(t, err)

			scope, err := p.CreateScope()
			require.NoError(t, err)

			impl := MustResolve[*trackedService](scope)
			forwarded := MustResolve[Disposable](scope)
			MustResolve[Disposable](scope)
			assert.Same(t, impl, forwarded)

			require.NoError(t, scope.Dispose())
			require.NoError(t, p.Dispose())

			assert.Equal(t, int32(1), impl.calls.Load())
			assert.Equal(t, []string{"impl"}, log.all())
		})
	}
}

func TestDescriptor_Describe(t *testing.T) {
	ctor := Describe[Logger](Singleton, newMemoryLogger)
	assert.Equal(t, "constructor", ctor.Recipe())
	assert.Equal(t, reflect.TypeFor[*memoryLogger](), ctor.ImplementationType())
	assert.Equal(t, "ServiceType: carapace.Logger Lifetime: singleton ImplementationType: *carapace.memoryLogger", ctor.String())

	inst := NewInstanceDescriptor(reflect.TypeFor[*counter](), "k", &counter{})
	assert.True(t, inst.HasInstance())
	assert.True(t, inst.IsKeyed())
	assert.Equal(t, "instance", inst.Recipe())
	assert.Equal(t, "ServiceType: *carapace.counter ServiceKey: k Lifetime: singleton ImplementationInstance: *carapace.counter", inst.String())

	fn := DescribeFunc[*counter](nil, Transient, func(ServiceProvider) (*counter, error) { return nil, nil })
	assert.Equal(t, "factory", fn.Recipe())
	assert.Equal(t, reflect.TypeFor[*counter](), fn.ImplementationType())
	assert.Equal(t, IdentifierOf[*counter](), fn.Identifier())
}

func TestLifetime_ParseAndString(t *testing.T) {
	for _, lifetime := range []Lifetime{Singleton, Scoped, Transient} {
		parsed, err := ParseLifetime(lifetime.String())
		require.NoError(t, err)
		assert.Equal(t, lifetime, parsed)
	}

	parsed, err := ParseLifetime(" Scoped ")
	require.NoError(t, err)
	assert.Equal(t, Scoped, parsed)

	_, err = ParseLifetime("forever")
	assert.Error(t, err)
	assert.Equal(t, "lifetime(9)", Lifetime(9).String())
}

func TestServiceIdentifier(t *testing.T) {
	assert.Equal(t, "carapace.Logger", IdentifierOf[Logger]().String())
	assert.False(t, IdentifierOf[Logger]().IsKeyed())

	keyed := KeyedIdentifierOf[Logger]("audit")
	assert.True(t, keyed.IsKeyed())
	assert.Equal(t, keyed, NewKey[Logger]("audit").Identifier())
	assert.Equal(t, "audit", NewKey[Logger]("audit").Value())
	assert.NotEqual(t, IdentifierOf[Logger](), keyed)

	key := ServiceCacheKey{Identifier: IdentifierOf[Logger]()}
	assert.Equal(t, "carapace.Logger", key.String())
}
