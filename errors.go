package carapace

import (
	"fmt"
	"reflect"

	"github.com/xraph/go-utils/errs"
)

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	// CodeServiceNotFound indicates a required service is not registered
	CodeServiceNotFound = "SERVICE_NOT_FOUND"

	// CodeCircularDependency indicates a service was revisited on its own construction chain
	CodeCircularDependency = "CIRCULAR_DEPENDENCY"

	// CodeCaptiveDependency indicates a scoped service is reachable from a singleton
	CodeCaptiveDependency = "CAPTIVE_DEPENDENCY"

	// CodeScopedFromRoot indicates a scoped service was resolved from the root scope
	CodeScopedFromRoot = "SCOPED_FROM_ROOT"

	// CodeDisposed indicates an operation on a disposed scope or provider
	CodeDisposed = "DISPOSED"

	// CodeInvalidDescriptor indicates a malformed service descriptor
	CodeInvalidDescriptor = "INVALID_DESCRIPTOR"

	// CodeUnresolvableParameter indicates no constructor had all of its parameters registered
	CodeUnresolvableParameter = "UNRESOLVABLE_PARAMETER"

	// CodeAmbiguousConstructor indicates two equally long constructors could both be satisfied
	CodeAmbiguousConstructor = "AMBIGUOUS_CONSTRUCTOR"

	// CodeTypeMismatch indicates a resolved value does not have the requested type
	CodeTypeMismatch = "TYPE_MISMATCH"

	// CodeInvalidServices is the aggregate code reported when provider build validation fails
	CodeInvalidServices = "INVALID_SERVICES"

	// CodeUnknownCallSiteKind indicates a call site outside the closed kind set
	CodeUnknownCallSiteKind = "UNKNOWN_CALL_SITE_KIND"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// ErrServiceNotFoundSentinel is a sentinel error for service not found (for error checking).
var ErrServiceNotFoundSentinel = errs.NewError(CodeServiceNotFound, "service not found", nil)

// ErrCircularDependencySentinel is a sentinel error for circular dependency (for error checking).
var ErrCircularDependencySentinel = errs.NewError(CodeCircularDependency, "circular dependency", nil)

// ErrCaptiveDependencySentinel is a sentinel error for captive dependencies (for error checking).
var ErrCaptiveDependencySentinel = errs.NewError(CodeCaptiveDependency, "captive dependency", nil)

// ErrScopedFromRootSentinel is a sentinel error for scoped services resolved from the root scope.
var ErrScopedFromRootSentinel = errs.NewError(CodeScopedFromRoot, "scoped service resolved from root", nil)

// ErrDisposedSentinel is a sentinel error for access after disposal (for error checking).
var ErrDisposedSentinel = errs.NewError(CodeDisposed, "object disposed", nil)

// ErrInvalidDescriptorSentinel is a sentinel error for malformed descriptors (for error checking).
var ErrInvalidDescriptorSentinel = errs.NewError(CodeInvalidDescriptor, "invalid service descriptor", nil)

// ErrUnresolvableParameterSentinel is a sentinel error for unsatisfiable constructors.
var ErrUnresolvableParameterSentinel = errs.NewError(CodeUnresolvableParameter, "unresolvable parameter", nil)

// ErrAmbiguousConstructorSentinel is a sentinel error for ambiguous constructor selection.
var ErrAmbiguousConstructorSentinel = errs.NewError(CodeAmbiguousConstructor, "ambiguous constructor", nil)

// ErrTypeMismatchSentinel is a sentinel error for type mismatch during resolution.
var ErrTypeMismatchSentinel = errs.NewError(CodeTypeMismatch, "type mismatch", nil)

// ErrInvalidServicesSentinel is a sentinel error for a failed build validation.
var ErrInvalidServicesSentinel = errs.NewError(CodeInvalidServices, "invalid services", nil)

// ErrUnknownCallSiteKindSentinel is a sentinel error for call sites a visitor cannot dispatch.
var ErrUnknownCallSiteKindSentinel = errs.NewError(CodeUnknownCallSiteKind, "unknown call site kind", nil)

// =============================================================================
// ERROR CONSTRUCTORS
// =============================================================================

// ErrServiceNotFound creates an error for a required service that is not registered
func ErrServiceNotFound(id ServiceIdentifier) *errs.Error {
	return errs.NewError(
		CodeServiceNotFound,
		fmt.Sprintf("no service for type '%s' has been registered", id),
		nil,
	).WithContext("service", id.String()).(*errs.Error)
}

// ErrCircularDependency creates an error naming the construction path that closes a cycle
func ErrCircularDependency(cycle []string) *errs.Error {
	return errs.NewError(
		CodeCircularDependency,
		fmt.Sprintf("circular dependency detected: %s", joinStrings(cycle, " -> ")),
		nil,
	).WithContext("cycle", cycle).(*errs.Error)
}

// ErrCaptiveDependency creates an error for a scoped service captured by a singleton
func ErrCaptiveDependency(scoped, singleton reflect.Type) *errs.Error {
	return errs.NewError(
		CodeCaptiveDependency,
		fmt.Sprintf("cannot consume scoped service '%s' from singleton '%s'", typeName(scoped), typeName(singleton)),
		nil,
	).WithContext("scoped", typeName(scoped)).
		WithContext("singleton", typeName(singleton)).(*errs.Error)
}

// ErrScopedFromRoot creates an error for a scoped service resolved outside of a child scope.
// When the requested service is not itself scoped, scoped names the scoped dependency.
func ErrScopedFromRoot(service, scoped reflect.Type) *errs.Error {
	msg := fmt.Sprintf("cannot resolve scoped service '%s' from root provider", typeName(service))
	if service != scoped {
		msg = fmt.Sprintf("cannot resolve '%s' from root provider because it requires scoped service '%s'",
			typeName(service), typeName(scoped))
	}

	return errs.NewError(CodeScopedFromRoot, msg, nil).
		WithContext("service", typeName(service)).
		WithContext("scoped", typeName(scoped)).(*errs.Error)
}

// ErrDisposed creates an error for an operation on a disposed object
func ErrDisposed(object string) *errs.Error {
	return errs.NewError(
		CodeDisposed,
		fmt.Sprintf("cannot access a disposed object: %s", object),
		nil,
	).WithContext("object", object).(*errs.Error)
}

// ErrInvalidDescriptor creates an error for a descriptor that cannot be turned into a call site
func ErrInvalidDescriptor(descriptor string, reason string) *errs.Error {
	return errs.NewError(
		CodeInvalidDescriptor,
		fmt.Sprintf("invalid service descriptor '%s': %s", descriptor, reason),
		nil,
	).WithContext("descriptor", descriptor).(*errs.Error)
}

// ErrUnresolvableParameter creates an error for a constructor parameter nothing provides
func ErrUnresolvableParameter(param reflect.Type, impl reflect.Type) *errs.Error {
	return errs.NewError(
		CodeUnresolvableParameter,
		fmt.Sprintf("unable to resolve service for type '%s' while attempting to activate '%s'",
			typeName(param), typeName(impl)),
		nil,
	).WithContext("parameter", typeName(param)).
		WithContext("implementation", typeName(impl)).(*errs.Error)
}

// ErrAmbiguousConstructor creates an error for two satisfiable constructors of equal length
func ErrAmbiguousConstructor(impl reflect.Type, first, second reflect.Type) *errs.Error {
	return errs.NewError(
		CodeAmbiguousConstructor,
		fmt.Sprintf("unable to activate '%s': constructors '%s' and '%s' are ambiguous",
			typeName(impl), first, second),
		nil,
	).WithContext("implementation", typeName(impl)).(*errs.Error)
}

// ErrTypeMismatch creates an error for type mismatch during resolution
func ErrTypeMismatch(id ServiceIdentifier, actual any) *errs.Error {
	return errs.NewError(
		CodeTypeMismatch,
		fmt.Sprintf("service '%s' type mismatch: got %T", id, actual),
		nil,
	).WithContext("service", id.String()).
		WithContext("actual_type", fmt.Sprintf("%T", actual)).(*errs.Error)
}

// NewInvalidServicesError wraps the combined failures of a build validation pass
func NewInvalidServicesError(cause error) *errs.Error {
	return errs.NewError(
		CodeInvalidServices,
		"some services are not able to be constructed",
		cause,
	)
}

// NewDescriptorError attaches the failing descriptor to a validation failure
func NewDescriptorError(descriptor string, cause error) *errs.Error {
	return errs.NewError(
		CodeInvalidDescriptor,
		fmt.Sprintf("error while validating the service descriptor '%s': %v", descriptor, cause),
		cause,
	).WithContext("descriptor", descriptor).(*errs.Error)
}

// ErrUnknownCallSiteKind creates an error for a call site outside the known kinds or cache locations
func ErrUnknownCallSiteKind(what string) *errs.Error {
	return errs.NewError(
		CodeUnknownCallSiteKind,
		fmt.Sprintf("unknown call site %s", what),
		nil,
	).WithContext("call_site", what).(*errs.Error)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	return t.String()
}

// joinStrings is a helper to join strings.
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for i := 1; i < len(strs); i++ {
		result += sep + strs[i]
	}
	return result
}
