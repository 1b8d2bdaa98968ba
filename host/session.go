// Package host ties window sessions to carapace scopes. Each open window owns
// a child scope: services resolved for the window live exactly as long as it
// does, and closing the window disposes them.
//
// # Usage
//
//	services := carapace.NewServiceCollection()
//	host.Register(services)
//	provider, _ := services.Build()
//
//	windows := host.NewWindowManager(provider, newNativeWindow, logger)
//	id, err := windows.Open(ctx, host.WindowConfig{Title: "Main", Centered: true})
//	defer windows.Close(id)
package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/go-utils/errs"

	"github.com/xraph/carapace"
)

// CodeSessionNotFound indicates an unknown window session id.
const CodeSessionNotFound = "SESSION_NOT_FOUND"

// ErrSessionNotFoundSentinel is a sentinel error for unknown sessions (for error checking).
var ErrSessionNotFoundSentinel = errs.NewError(CodeSessionNotFound, "window session not found", nil)

// ErrSessionNotFound creates an error for an unknown session id.
func ErrSessionNotFound(id fmt.Stringer) *errs.Error {
	return errs.NewError(
		CodeSessionNotFound,
		fmt.Sprintf("window session '%s' not found", id),
		nil,
	).WithContext("session", id.String()).(*errs.Error)
}

// ScopeContext gives scoped services access to the provider of the scope they
// were created in. The window manager assigns it right after creating a
// window scope.
type ScopeContext struct {
	mu       sync.RWMutex
	provider carapace.ServiceProvider
}

// NewScopeContext returns an unassigned ScopeContext.
func NewScopeContext() *ScopeContext {
	return &ScopeContext{}
}

// Set assigns the scope's provider.
func (c *ScopeContext) Set(sp carapace.ServiceProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.provider = sp
}

// Provider returns the assigned provider, or nil before assignment.
func (c *ScopeContext) Provider() carapace.ServiceProvider {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.provider
}

// Register adds the services the window manager relies on.
func Register(c *carapace.ServiceCollection) {
	carapace.AddScoped[*ScopeContext](c, NewScopeContext)
}

// WindowConfig describes a window to open.
type WindowConfig struct {
	Title       string `json:"title"`
	InitialPath string `json:"initialPath"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Centered    bool   `json:"centered"`
}

// Window is an opaque native window handle.
type Window interface {
	Close() error
}

// WindowFactory creates the native window for a session. The scope is the
// session's own scope; services resolved from it belong to the window.
type WindowFactory func(ctx context.Context, scope *carapace.Scope, cfg WindowConfig) (Window, error)
