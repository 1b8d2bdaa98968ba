package carapace

import (
	"reflect"
	"sync"
)

// callSiteValidator finds scoped services that would be captured by a
// singleton or resolved from the root scope.
//
// For every call site it remembers the first scoped service type in its
// subtree, or nil. Entries are only ever added; a raced recomputation
// stores the same answer.
type callSiteValidator struct {
	scopedServices sync.Map // ServiceCacheKey -> reflect.Type (nil when none)
}

// validatorState carries the singleton at the top of the current walk, if any.
type validatorState struct {
	singleton CallSite
}

func newCallSiteValidator() *callSiteValidator {
	return &callSiteValidator{}
}

// validateCallSite walks cs and fails on a captive dependency.
func (v *callSiteValidator) validateCallSite(cs CallSite) error {
	_, err := v.visit(cs, validatorState{})
	return err
}

// validateResolution rejects resolving, from the root scope, a call site whose
// subtree contains a scoped service.
func (v *callSiteValidator) validateResolution(cs CallSite, scope, root *Scope) error {
	if scope != root {
		return nil
	}

	scoped, ok := v.scopedServices.Load(cs.Cache().Key)
	if !ok || scoped == nil {
		return nil
	}

	scopedType, _ := scoped.(reflect.Type)
	if scopedType == nil {
		return nil
	}

	return ErrScopedFromRoot(cs.ServiceType(), scopedType)
}

func (v *callSiteValidator) visit(cs CallSite, state validatorState) (reflect.Type, error) {
	var first reflect.Type

	if cached, ok := v.scopedServices.Load(cs.Cache().Key); ok {
		first, _ = cached.(reflect.Type)
	} else {
		found, err := visitCallSite[validatorState, reflect.Type](v, cs, state)
		if err != nil {
			return nil, err
		}

		first = found
		v.scopedServices.Store(cs.Cache().Key, found)
	}

	if first != nil && state.singleton != nil {
		return nil, ErrCaptiveDependency(first, state.singleton.ServiceType())
	}

	return first, nil
}

func (v *callSiteValidator) visitRootCache(cs CallSite, state validatorState) (reflect.Type, error) {
	state.singleton = cs
	return visitCallSiteMain[validatorState, reflect.Type](v, cs, state)
}

func (v *callSiteValidator) visitScopeCache(cs CallSite, state validatorState) (reflect.Type, error) {
	if cs.ServiceType() == scopeFactoryType {
		return nil, nil
	}

	if state.singleton != nil {
		return nil, ErrCaptiveDependency(cs.ServiceType(), state.singleton.ServiceType())
	}

	if _, err := visitCallSiteMain[validatorState, reflect.Type](v, cs, state); err != nil {
		return nil, err
	}

	return cs.ServiceType(), nil
}

func (v *callSiteValidator) visitDisposeCache(cs CallSite, state validatorState) (reflect.Type, error) {
	return visitCallSiteMain[validatorState, reflect.Type](v, cs, state)
}

func (v *callSiteValidator) visitNoCache(cs CallSite, state validatorState) (reflect.Type, error) {
	return visitCallSiteMain[validatorState, reflect.Type](v, cs, state)
}

func (v *callSiteValidator) visitConstant(*ConstantCallSite, validatorState) (reflect.Type, error) {
	return nil, nil
}

func (v *callSiteValidator) visitConstructor(cs *ConstructorCallSite, state validatorState) (reflect.Type, error) {
	return v.visitAll(cs.parameters, state)
}

func (v *callSiteValidator) visitFactory(*FactoryCallSite, validatorState) (reflect.Type, error) {
	return nil, nil
}

func (v *callSiteValidator) visitEnumerable(cs *EnumerableCallSite, state validatorState) (reflect.Type, error) {
	return v.visitAll(cs.elements, state)
}

func (v *callSiteValidator) visitServiceProvider(*ServiceProviderCallSite, validatorState) (reflect.Type, error) {
	return nil, nil
}

// visitAll validates every child and returns the first scoped type found.
func (v *callSiteValidator) visitAll(children []CallSite, state validatorState) (reflect.Type, error) {
	var first reflect.Type

	for _, child := range children {
		scoped, err := v.visit(child, state)
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = scoped
		}
	}

	return first, nil
}
