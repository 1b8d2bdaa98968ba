package carapace

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/go-utils/errs"
)

type (
	depA struct{}
	depB struct{}
	depC struct{}
)

type multiCtor struct {
	via string
}

type cycleA struct{}
type cycleB struct{}
type cycleC struct{}

func TestCallSiteFactory_LongestSatisfiableConstructorWins(t *testing.T) {
	ctors := []any{
		func() *multiCtor { return &multiCtor{via: "none"} },
		func(*depA) *multiCtor { return &multiCtor{via: "a"} },
		func(*depA, *depB) *multiCtor { return &multiCtor{via: "a+b"} },
	}

	t.Run("all registered", func(t *testing.T) {
		p := buildProvider(t, func(c *ServiceCollection) {
			AddSingleton[*depA](c, func() *depA { return &depA{} })
			AddSingleton[*depB](c, func() *depB { return &depB{} })
			AddTransient[*multiCtor](c, ctors...)
		})

		assert.Equal(t, "a+b", MustResolve[*multiCtor](p).via)
	})

	t.Run("only a registered", func(t *testing.T) {
		p := buildProvider(t, func(c *ServiceCollection) {
			AddSingleton[*depA](c, func() *depA { return &depA{} })
			AddTransient[*multiCtor](c, ctors...)
		})

		assert.Equal(t, "a", MustResolve[*multiCtor](p).via)
	})

	t.Run("nothing registered", func(t *testing.T) {
		p := buildProvider(t, func(c *ServiceCollection) {
			AddTransient[*multiCtor](c, ctors...)
		})

		assert.Equal(t, "none", MustResolve[*multiCtor](p).via)
	})
}

func TestCallSiteFactory_AmbiguousConstructor(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddSingleton[*depA](c, func() *depA { return &depA{} })
		AddSingleton[*depB](c, func() *depB { return &depB{} })
		AddTransient[*multiCtor](c,
			func(*depA) *multiCtor { return &multiCtor{via: "a"} },
			func(*depB) *multiCtor { return &multiCtor{via: "b"} },
		)
	})

	_, err := Resolve[*multiCtor](p)
	assert.ErrorIs(t, err, ErrAmbiguousConstructorSentinel)
}

func TestCallSiteFactory_SameParameterSetIsNotAmbiguous(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddSingleton[*depA](c, func() *depA { return &depA{} })
		AddSingleton[*depB](c, func() *depB { return &depB{} })
		AddTransient[*multiCtor](c,
			func(*depA, *depB) *multiCtor { return &multiCtor{via: "ab"} },
			func(*depB, *depA) *multiCtor { return &multiCtor{via: "ba"} },
		)
	})

	assert.Equal(t, "ab", MustResolve[*multiCtor](p).via)
}

func TestCallSiteFactory_UnresolvableParameter(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddTransient[*multiCtor](c, func(*depC) *multiCtor { return &multiCtor{} })
	})

	_, err := Resolve[*multiCtor](p)
	require.ErrorIs(t, err, ErrUnresolvableParameterSentinel)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "*carapace.depC", e.GetContext()["parameter"])
	assert.Equal(t, "*carapace.multiCtor", e.GetContext()["implementation"])
}

func TestCallSiteFactory_CircularDependency(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddTransient[*cycleA](c, func(*cycleB) *cycleA { return &cycleA{} })
		AddTransient[*cycleB](c, func(*cycleC) *cycleB { return &cycleB{} })
		AddTransient[*cycleC](c, func(*cycleA) *cycleC { return &cycleC{} })
	})

	_, err := Resolve[*cycleA](p)
	require.ErrorIs(t, err, ErrCircularDependencySentinel)
	assert.Contains(t, err.Error(), "*carapace.cycleA -> *carapace.cycleB -> *carapace.cycleC -> *carapace.cycleA")
}

func TestCallSiteFactory_SelfDependency(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddSingleton[*cycleA](c, func(*cycleA) *cycleA { return &cycleA{} })
	})

	_, err := Resolve[*cycleA](p)
	assert.ErrorIs(t, err, ErrCircularDependencySentinel)
}

func TestCallSiteFactory_CacheLocations(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddSingleton[Logger](c, func() Logger { return newMemoryLogger() })
		AddScoped[RequestContext](c, newRequestContext)
		AddTransient[*Widget](c, newWidget)
		AddInstance[*counter](c, &counter{})
		AddSingletonFunc(c, func(ServiceProvider) (*depA, error) { return &depA{}, nil })
	})

	tests := []struct {
		id       ServiceIdentifier
		kind     CallSiteKind
		location CacheLocation
	}{
		{IdentifierOf[Logger](), KindConstructor, CacheRoot},
		{IdentifierOf[RequestContext](), KindConstructor, CacheScope},
		{IdentifierOf[*Widget](), KindConstructor, CacheTransient},
		{IdentifierOf[*counter](), KindConstant, CacheNone},
		{IdentifierOf[*depA](), KindFactory, CacheRoot},
		{IdentifierOf[ServiceProvider](), KindServiceProvider, CacheNone},
		{IdentifierOf[ScopeFactory](), KindConstant, CacheNone},
		{IdentifierOf[ServiceInspector](), KindConstant, CacheNone},
		{IdentifierOf[[]Logger](), KindEnumerable, CacheRoot},
		{IdentifierOf[[]RequestContext](), KindEnumerable, CacheScope},
		{IdentifierOf[[]Plugin](), KindEnumerable, CacheRoot},
	}

	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			cs, err := p.CallSite(tt.id)
			require.NoError(t, err)
			require.NotNil(t, cs)

			assert.Equal(t, tt.kind, cs.Kind())
			assert.Equal(t, tt.location, cs.Cache().Location)
		})
	}

	missing, err := p.CallSite(IdentifierOf[*depB]())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCallSiteFactory_EnumerableTakesMostRestrictiveLocation(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddSingleton[Plugin](c, pluginNamed("singleton"))
		AddScoped[Plugin](c, pluginNamed("scoped"))
		AddTransient[Plugin](c, pluginNamed("transient"))
	})

	cs, err := p.CallSite(IdentifierOf[[]Plugin]())
	require.NoError(t, err)

	enumerable, ok := cs.(*EnumerableCallSite)
	require.True(t, ok)
	assert.Equal(t, CacheTransient, enumerable.Cache().Location)
	assert.Equal(t, reflect.TypeFor[Plugin](), enumerable.ItemType())
	require.Len(t, enumerable.Elements(), 3)

	locations := make([]CacheLocation, 0, 3)
	for _, element := range enumerable.Elements() {
		locations = append(locations, element.Cache().Location)
	}
	assert.Equal(t, []CacheLocation{CacheRoot, CacheScope, CacheTransient}, locations)

	// Slots count back from the last registration.
	assert.Equal(t, 2, enumerable.Elements()[0].Cache().Key.Slot)
	assert.Equal(t, 0, enumerable.Elements()[2].Cache().Key.Slot)
}

func TestCallSiteFactory_NodesAreShared(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddSingleton[Logger](c, func() Logger { return newMemoryLogger() })
		AddScoped[RequestContext](c, newRequestContext)
		AddTransient[*Widget](c, newWidget)
	})

	widget, err := p.CallSite(IdentifierOf[*Widget]())
	require.NoError(t, err)
	logger, err := p.CallSite(IdentifierOf[Logger]())
	require.NoError(t, err)

	again, err := p.CallSite(IdentifierOf[*Widget]())
	require.NoError(t, err)
	assert.Same(t, widget, again)

	ctorSite, ok := widget.(*ConstructorCallSite)
	require.True(t, ok)
	require.Len(t, ctorSite.Parameters(), 2)
	assert.Same(t, logger, ctorSite.Parameters()[0])
	assert.Equal(t, reflect.TypeOf(newWidget), ctorSite.Constructor())
	assert.Equal(t, reflect.TypeFor[*Widget](), ctorSite.ImplementationType())
}

func TestCallSiteFactory_DescriptorCallSite(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddSingleton[Plugin](c, pluginNamed("A"))
		AddSingleton[Plugin](c, pluginNamed("B"))
	})

	first, err := p.DescriptorCallSite(0)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Cache().Key.Slot)

	last, err := p.DescriptorCallSite(1)
	require.NoError(t, err)
	byID, err := p.CallSite(IdentifierOf[Plugin]())
	require.NoError(t, err)
	assert.Same(t, byID, last)

	outOfRange, err := p.DescriptorCallSite(5)
	require.NoError(t, err)
	assert.Nil(t, outOfRange)
}

func TestFormatCallSite(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddSingleton[Logger](c, func() Logger { return newMemoryLogger() })
		AddScoped[RequestContext](c, newRequestContext)
		AddTransient[*Widget](c, newWidget)
		AddTransient[*multiCtor](c, func(*Widget, Logger) *multiCtor { return &multiCtor{} })
	})

	cs, err := p.CallSite(IdentifierOf[*multiCtor]())
	require.NoError(t, err)

	out := FormatCallSite(cs)
	assert.JSONEq(t, `{
		"serviceType": "*carapace.multiCtor",
		"kind": "Constructor",
		"cache": "Dispose",
		"implementationType": "*carapace.multiCtor",
		"arguments": [
			{
				"serviceType": "*carapace.Widget",
				"kind": "Constructor",
				"cache": "Dispose",
				"implementationType": "*carapace.Widget",
				"arguments": [
					{"serviceType": "carapace.Logger", "kind": "Constructor", "cache": "Root", "implementationType": "carapace.Logger"},
					{"serviceType": "carapace.RequestContext", "kind": "Constructor", "cache": "Scope", "implementationType": "carapace.RequestContext"}
				]
			},
			{"ref": "carapace.Logger"}
		]
	}`, out)

	assert.Equal(t, "null", FormatCallSite(nil))
}

func TestFormatCallSite_Constants(t *testing.T) {
	p := buildProvider(t, func(c *ServiceCollection) {
		AddKeyedInstance[string](c, "greeting", "hello")
	})

	cs, err := p.CallSite(KeyedIdentifierOf[string]("greeting"))
	require.NoError(t, err)

	out := FormatCallSite(cs)
	assert.True(t, strings.Contains(out, `"value":"hello"`), out)
	assert.True(t, strings.Contains(out, `"key":"greeting"`), out)
}
