package carapace

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

var errorType = reflect.TypeFor[error]()

// constructorInfo holds analyzed constructor metadata
type constructorInfo struct {
	fn       reflect.Value
	fnType   reflect.Type
	params   []reflect.Type
	result   reflect.Type
	hasError bool
}

// analyzeConstructor inspects a constructor function and extracts its parameter
// and result types. Supported shapes are func(deps...) T and func(deps...) (T, error).
func analyzeConstructor(constructor any) (*constructorInfo, error) {
	if constructor == nil {
		return nil, errors.New("constructor must not be nil")
	}

	fnValue := reflect.ValueOf(constructor)
	fnType := fnValue.Type()

	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %s", fnType)
	}

	if fnValue.IsNil() {
		return nil, errors.New("constructor must not be a nil function")
	}

	if fnType.IsVariadic() {
		return nil, fmt.Errorf("variadic constructor %s is not supported", fnType)
	}

	info := &constructorInfo{
		fn:     fnValue,
		fnType: fnType,
	}

	for i := 0; i < fnType.NumIn(); i++ {
		info.params = append(info.params, fnType.In(i))
	}

	switch fnType.NumOut() {
	case 1:
		info.result = fnType.Out(0)
	case 2:
		if fnType.Out(1) != errorType {
			return nil, errors.New("error must be the last return value")
		}
		info.result = fnType.Out(0)
		info.hasError = true
	default:
		return nil, fmt.Errorf("constructor must return (T) or (T, error), got %d results", fnType.NumOut())
	}

	if info.result == errorType {
		return nil, errors.New("constructor must return at least one non-error value")
	}

	return info, nil
}

// analyzeConstructors analyzes every candidate and checks each result against the service type.
// The result is ordered by parameter count, longest first, keeping declaration order among equals.
func analyzeConstructors(serviceType reflect.Type, constructors []any) ([]*constructorInfo, error) {
	infos := make([]*constructorInfo, 0, len(constructors))

	for i, ctor := range constructors {
		info, err := analyzeConstructor(ctor)
		if err != nil {
			return nil, fmt.Errorf("constructor %d: %w", i, err)
		}

		if !info.result.AssignableTo(serviceType) {
			return nil, fmt.Errorf("constructor %d: implementation type %s can't be converted to service type %s",
				i, info.result, serviceType)
		}

		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return len(infos[i].params) > len(infos[j].params)
	})

	return infos, nil
}

// invoke calls the constructor with already resolved arguments.
// An error returned by the constructor is passed through untouched.
func (c *constructorInfo) invoke(args []any) (any, error) {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			in[i] = reflect.Zero(c.params[i])
			continue
		}

		v := reflect.ValueOf(arg)
		if !v.Type().AssignableTo(c.params[i]) {
			return nil, ErrTypeMismatch(ServiceIdentifier{ServiceType: c.params[i]}, arg)
		}
		in[i] = v
	}

	results := c.fn.Call(in)

	if c.hasError {
		if errResult := results[1]; !errResult.IsNil() {
			return nil, errResult.Interface().(error)
		}
	}

	return results[0].Interface(), nil
}

// sameParameters reports whether two constructors take the same multiset of parameter types.
func (c *constructorInfo) sameParameters(other *constructorInfo) bool {
	if len(c.params) != len(other.params) {
		return false
	}

	counts := make(map[reflect.Type]int, len(c.params))
	for _, p := range c.params {
		counts[p]++
	}
	for _, p := range other.params {
		counts[p]--
		if counts[p] < 0 {
			return false
		}
	}

	return true
}

// String renders the constructor signature
func (c *constructorInfo) String() string {
	names := make([]string, len(c.params))
	for i, p := range c.params {
		names[i] = p.String()
	}

	return fmt.Sprintf("func(%s) %s", strings.Join(names, ", "), c.result)
}
