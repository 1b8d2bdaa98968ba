package carapace

// callSiteVisitor is implemented by every traversal over call-site trees.
// The cache hooks are chosen by visitCallSite from the call site's cache
// location; the kind hooks are chosen by visitCallSiteMain.
type callSiteVisitor[A, R any] interface {
	visitRootCache(cs CallSite, arg A) (R, error)
	visitScopeCache(cs CallSite, arg A) (R, error)
	visitDisposeCache(cs CallSite, arg A) (R, error)
	visitNoCache(cs CallSite, arg A) (R, error)

	visitConstant(cs *ConstantCallSite, arg A) (R, error)
	visitConstructor(cs *ConstructorCallSite, arg A) (R, error)
	visitFactory(cs *FactoryCallSite, arg A) (R, error)
	visitEnumerable(cs *EnumerableCallSite, arg A) (R, error)
	visitServiceProvider(cs *ServiceProviderCallSite, arg A) (R, error)
}

// visitCallSite dispatches on the cache location.
func visitCallSite[A, R any](v callSiteVisitor[A, R], cs CallSite, arg A) (R, error) {
	switch cs.Cache().Location {
	case CacheRoot:
		return v.visitRootCache(cs, arg)
	case CacheScope:
		return v.visitScopeCache(cs, arg)
	case CacheTransient:
		return v.visitDisposeCache(cs, arg)
	case CacheNone:
		return v.visitNoCache(cs, arg)
	default:
		var zero R
		return zero, ErrUnknownCallSiteKind("cache location " + cs.Cache().Location.String())
	}
}

// visitCallSiteMain dispatches on the call-site kind.
func visitCallSiteMain[A, R any](v callSiteVisitor[A, R], cs CallSite, arg A) (R, error) {
	switch c := cs.(type) {
	case *ConstantCallSite:
		return v.visitConstant(c, arg)
	case *ConstructorCallSite:
		return v.visitConstructor(c, arg)
	case *FactoryCallSite:
		return v.visitFactory(c, arg)
	case *EnumerableCallSite:
		return v.visitEnumerable(c, arg)
	case *ServiceProviderCallSite:
		return v.visitServiceProvider(c, arg)
	default:
		var zero R
		return zero, ErrUnknownCallSiteKind("kind " + cs.Kind().String())
	}
}
