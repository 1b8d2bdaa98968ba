package carapace

import "go.uber.org/zap"

// Option configures a Provider.
type Option func(*providerOptions)

type providerOptions struct {
	validateScopes  bool
	validateOnBuild bool
	logger          *zap.Logger
	listeners       []Listener
}

func defaultOptions() providerOptions {
	return providerOptions{logger: zap.NewNop()}
}

// WithValidateScopes enables captive-dependency checks: a singleton may not
// depend on a scoped service, and a scoped service may not be resolved from
// the root scope.
func WithValidateScopes() Option {
	return func(o *providerOptions) {
		o.validateScopes = true
	}
}

// WithValidateOnBuild builds the call site of every descriptor while the
// provider is built and reports all failures together.
// Combined with WithValidateScopes the scope rules are checked too.
func WithValidateOnBuild() Option {
	return func(o *providerOptions) {
		o.validateOnBuild = true
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *providerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithListener adds a listener. Listeners are called in the order they are added.
func WithListener(listener Listener) Option {
	return func(o *providerOptions) {
		if listener != nil {
			o.listeners = append(o.listeners, listener)
		}
	}
}

// mergeOptions applies opts over the defaults.
func mergeOptions(opts []Option) providerOptions {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return o
}
