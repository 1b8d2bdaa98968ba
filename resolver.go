package carapace

import (
	"reflect"
)

// callSiteRuntimeResolver executes call-site trees against a scope.
//
// Go mutexes are not reentrant, so instead of one lock per scope the resolver
// locks a publish-once cell per cached entry: the call site's own cell for
// root-cached services and a per-key cell in the scope's table for scoped
// ones. A nested resolution only ever waits on a different entry, because
// call-site trees are acyclic. A factory that resolves its own service from
// inside its body waits on itself forever, the same way a hung factory blocks
// its caller.
type callSiteRuntimeResolver struct{}

var runtimeResolver callSiteRuntimeResolver

// resolve produces the value of cs for scope.
func (r callSiteRuntimeResolver) resolve(cs CallSite, scope *Scope) (any, error) {
	if scope.isRoot {
		if v, ok := cs.cell().load(); ok {
			return v, nil
		}
	}

	return visitCallSite[*Scope, any](r, cs, scope)
}

func (r callSiteRuntimeResolver) visitRootCache(cs CallSite, scope *Scope) (any, error) {
	cell := cs.cell()
	if v, ok := cell.load(); ok {
		return v, nil
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()

	if v, ok := cell.load(); ok {
		return v, nil
	}

	// Singletons always build against the root, whichever scope asked.
	root := scope.provider.root

	v, err := visitCallSiteMain[*Scope, any](r, cs, root)
	if err != nil {
		return nil, err
	}

	v, err = capture(root, cs, v)
	if err != nil {
		return nil, err
	}

	cell.publish(v)

	return v, nil
}

func (r callSiteRuntimeResolver) visitScopeCache(cs CallSite, scope *Scope) (any, error) {
	if scope.isRoot {
		return r.visitRootCache(cs, scope)
	}

	cell, err := scope.entry(cs.Cache().Key)
	if err != nil {
		return nil, err
	}

	if v, ok := cell.load(); ok {
		return v, nil
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()

	if v, ok := cell.load(); ok {
		return v, nil
	}

	v, err := visitCallSiteMain[*Scope, any](r, cs, scope)
	if err != nil {
		return nil, err
	}

	v, err = capture(scope, cs, v)
	if err != nil {
		return nil, err
	}

	cell.publish(v)

	return v, nil
}

func (r callSiteRuntimeResolver) visitDisposeCache(cs CallSite, scope *Scope) (any, error) {
	v, err := visitCallSiteMain[*Scope, any](r, cs, scope)
	if err != nil {
		return nil, err
	}

	return capture(scope, cs, v)
}

// capture hands v to scope for disposal unless cs only borrows it from the
// registration that owns it.
func capture(scope *Scope, cs CallSite, v any) (any, error) {
	if f, ok := cs.(*FactoryCallSite); ok && f.borrowed {
		return v, nil
	}

	return scope.captureDisposable(v)
}

func (r callSiteRuntimeResolver) visitNoCache(cs CallSite, scope *Scope) (any, error) {
	return visitCallSiteMain[*Scope, any](r, cs, scope)
}

func (r callSiteRuntimeResolver) visitConstant(cs *ConstantCallSite, _ *Scope) (any, error) {
	return cs.constant, nil
}

func (r callSiteRuntimeResolver) visitConstructor(cs *ConstructorCallSite, scope *Scope) (any, error) {
	args := make([]any, len(cs.parameters))

	for i, p := range cs.parameters {
		v, err := visitCallSite[*Scope, any](r, p, scope)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	return cs.ctor.invoke(args)
}

func (r callSiteRuntimeResolver) visitFactory(cs *FactoryCallSite, scope *Scope) (any, error) {
	return cs.factory(scope)
}

func (r callSiteRuntimeResolver) visitEnumerable(cs *EnumerableCallSite, scope *Scope) (any, error) {
	out := reflect.MakeSlice(reflect.SliceOf(cs.itemType), len(cs.elements), len(cs.elements))

	for i, element := range cs.elements {
		v, err := visitCallSite[*Scope, any](r, element, scope)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}

		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(cs.itemType) {
			return nil, ErrTypeMismatch(ServiceIdentifier{ServiceType: cs.itemType, Key: cs.key}, v)
		}
		out.Index(i).Set(rv)
	}

	return out.Interface(), nil
}

func (r callSiteRuntimeResolver) visitServiceProvider(_ *ServiceProviderCallSite, scope *Scope) (any, error) {
	return scope, nil
}
