package carapace

import (
	"fmt"
	"reflect"
	"strings"
)

// ServiceInfo contains diagnostic information about one registration.
type ServiceInfo struct {
	Index              int    `json:"index"`
	ServiceType        string `json:"serviceType"`
	Key                string `json:"key,omitempty"`
	Lifetime           string `json:"lifetime"`
	Recipe             string `json:"recipe"`
	ImplementationType string `json:"implementationType"`
}

// ServiceQuery defines criteria for querying registrations.
type ServiceQuery struct {
	// Lifetime filters by lifetime. nil matches all lifetimes.
	Lifetime *Lifetime

	// Keyed filters by whether the registration carries a key.
	// nil matches keyed and unkeyed registrations.
	Keyed *bool

	// ServiceType filters by exact service type. nil matches all types.
	ServiceType reflect.Type

	// Implementation filters by a substring of the implementation type name.
	// Empty string matches all.
	Implementation string
}

// Query returns the registrations matching the query, in registration order.
//
// Example:
//
//	// Find all keyed singletons
//	lifetime, keyed := carapace.Singleton, true
//	results := carapace.Query(p, carapace.ServiceQuery{
//	    Lifetime: &lifetime,
//	    Keyed:    &keyed,
//	})
func Query(p *Provider, query ServiceQuery) []ServiceInfo {
	var results []ServiceInfo

	for i, d := range p.Descriptors() {
		if query.Lifetime != nil && d.Lifetime != *query.Lifetime {
			continue
		}

		if query.Keyed != nil && d.IsKeyed() != *query.Keyed {
			continue
		}

		if query.ServiceType != nil && d.ServiceType != query.ServiceType {
			continue
		}

		if query.Implementation != "" &&
			!strings.Contains(typeName(d.ImplementationType()), query.Implementation) {
			continue
		}

		results = append(results, describe(i, d))
	}

	return results
}

// Inspect returns every registration.
func Inspect(p *Provider) []ServiceInfo {
	return Query(p, ServiceQuery{})
}

// FindByLifetime returns all registrations with a specific lifetime.
func FindByLifetime(p *Provider, lifetime Lifetime) []ServiceInfo {
	return Query(p, ServiceQuery{Lifetime: &lifetime})
}

// FindKeyed returns all keyed registrations.
func FindKeyed(p *Provider) []ServiceInfo {
	keyed := true
	return Query(p, ServiceQuery{Keyed: &keyed})
}

func describe(index int, d *ServiceDescriptor) ServiceInfo {
	info := ServiceInfo{
		Index:              index,
		ServiceType:        typeName(d.ServiceType),
		Lifetime:           d.Lifetime.String(),
		Recipe:             d.Recipe(),
		ImplementationType: typeName(d.ImplementationType()),
	}

	if d.Key != nil {
		info.Key = fmt.Sprint(d.Key)
	}

	return info
}
