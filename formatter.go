package carapace

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// callSiteJSON is the rendered form of one call-site node.
type callSiteJSON struct {
	Ref                string          `json:"ref,omitempty"`
	ServiceType        string          `json:"serviceType,omitempty"`
	Key                string          `json:"key,omitempty"`
	Kind               string          `json:"kind,omitempty"`
	Cache              string          `json:"cache,omitempty"`
	ImplementationType string          `json:"implementationType,omitempty"`
	Value              string          `json:"value,omitempty"`
	ItemType           string          `json:"itemType,omitempty"`
	Arguments          []*callSiteJSON `json:"arguments,omitempty"`
	Items              []*callSiteJSON `json:"items,omitempty"`
}

// callSiteFormatter renders each node once; later occurrences become refs.
type callSiteFormatter struct {
	seen map[CallSite]struct{}
}

// FormatCallSite renders a call-site tree as JSON for diagnostics.
// A node that appears more than once is rendered in full the first time and
// as {"ref": "<service type>"} afterwards.
func FormatCallSite(cs CallSite) string {
	if cs == nil {
		return "null"
	}

	f := &callSiteFormatter{seen: make(map[CallSite]struct{})}

	node, err := f.format(cs)
	if err != nil {
		return fmt.Sprintf("%q", err.Error())
	}

	out, err := json.Marshal(node)
	if err != nil {
		return fmt.Sprintf("%q", err.Error())
	}

	return string(out)
}

func (f *callSiteFormatter) format(cs CallSite) (*callSiteJSON, error) {
	if _, ok := f.seen[cs]; ok {
		return &callSiteJSON{Ref: typeName(cs.ServiceType())}, nil
	}
	f.seen[cs] = struct{}{}

	return visitCallSite[*callSiteFormatter, *callSiteJSON](f, cs, f)
}

func (f *callSiteFormatter) formatAll(children []CallSite) ([]*callSiteJSON, error) {
	out := make([]*callSiteJSON, 0, len(children))

	for _, child := range children {
		node, err := f.format(child)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}

	return out, nil
}

// header fills the fields every node shares.
func header(cs CallSite) *callSiteJSON {
	node := &callSiteJSON{
		ServiceType: typeName(cs.ServiceType()),
		Kind:        cs.Kind().String(),
		Cache:       cs.Cache().Location.String(),
	}

	if cs.Key() != nil {
		node.Key = fmt.Sprint(cs.Key())
	}

	return node
}

func (f *callSiteFormatter) visitRootCache(cs CallSite, _ *callSiteFormatter) (*callSiteJSON, error) {
	return visitCallSiteMain[*callSiteFormatter, *callSiteJSON](f, cs, f)
}

func (f *callSiteFormatter) visitScopeCache(cs CallSite, _ *callSiteFormatter) (*callSiteJSON, error) {
	return visitCallSiteMain[*callSiteFormatter, *callSiteJSON](f, cs, f)
}

func (f *callSiteFormatter) visitDisposeCache(cs CallSite, _ *callSiteFormatter) (*callSiteJSON, error) {
	return visitCallSiteMain[*callSiteFormatter, *callSiteJSON](f, cs, f)
}

func (f *callSiteFormatter) visitNoCache(cs CallSite, _ *callSiteFormatter) (*callSiteJSON, error) {
	return visitCallSiteMain[*callSiteFormatter, *callSiteJSON](f, cs, f)
}

func (f *callSiteFormatter) visitConstant(cs *ConstantCallSite, _ *callSiteFormatter) (*callSiteJSON, error) {
	node := header(cs)
	node.Value = constantString(cs.constant)
	return node, nil
}

func (f *callSiteFormatter) visitConstructor(cs *ConstructorCallSite, _ *callSiteFormatter) (*callSiteJSON, error) {
	node := header(cs)
	node.ImplementationType = typeName(cs.ImplementationType())

	args, err := f.formatAll(cs.parameters)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		node.Arguments = args
	}

	return node, nil
}

func (f *callSiteFormatter) visitFactory(cs *FactoryCallSite, _ *callSiteFormatter) (*callSiteJSON, error) {
	return header(cs), nil
}

func (f *callSiteFormatter) visitEnumerable(cs *EnumerableCallSite, _ *callSiteFormatter) (*callSiteJSON, error) {
	node := header(cs)
	node.ItemType = typeName(cs.itemType)

	items, err := f.formatAll(cs.elements)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		node.Items = items
	}

	return node, nil
}

func (f *callSiteFormatter) visitServiceProvider(cs *ServiceProviderCallSite, _ *callSiteFormatter) (*callSiteJSON, error) {
	return header(cs), nil
}

// constantString renders simple values and Stringers; anything else by type.
func constantString(v any) string {
	if v == nil {
		return "<nil>"
	}

	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(v)
	default:
		return fmt.Sprintf("%T", v)
	}
}
