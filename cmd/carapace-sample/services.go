package main

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xraph/carapace"
	"github.com/xraph/carapace/host"
)

// Logger is shared by the whole application.
type Logger interface {
	Log(msg string, fields ...zap.Field)
}

type zapLogger struct {
	logger *zap.Logger
}

func (l *zapLogger) Log(msg string, fields ...zap.Field) {
	l.logger.Info(msg, fields...)
}

// RequestContext is one per window.
type RequestContext interface {
	ID() uuid.UUID
	Count() int64
	Touch()
}

type windowContext struct {
	id    uuid.UUID
	hits  atomic.Int64
	owner *host.ScopeContext
}

func newWindowContext(sc *host.ScopeContext) *windowContext {
	return &windowContext{id: uuid.New(), owner: sc}
}

func (c *windowContext) ID() uuid.UUID { return c.id }
func (c *windowContext) Count() int64  { return c.hits.Load() }
func (c *windowContext) Touch()        { c.hits.Add(1) }

// Close runs when the window scope is disposed.
func (c *windowContext) Close() error {
	return nil
}

// Widget is built fresh on every request.
type Widget struct {
	logger  Logger
	request RequestContext
}

func newWidget(logger Logger, request RequestContext) *Widget {
	request.Touch()
	return &Widget{logger: logger, request: request}
}

// Render writes the widget and logs the render.
func (w *Widget) Render(out io.Writer, title string) error {
	w.logger.Log("widget rendered",
		zap.String("window", title),
		zap.Stringer("context", w.request.ID()),
		zap.Int64("renders", w.request.Count()),
	)

	_, err := fmt.Fprintf(out, "[%s] widget #%d in context %s\n", title, w.request.Count(), w.request.ID())
	return err
}

// configureServices is the sample composition root.
func configureServices(logger *zap.Logger) *carapace.ServiceCollection {
	services := carapace.NewServiceCollection()
	host.Register(services)

	carapace.AddInstance[Logger](services, &zapLogger{logger: logger.Named("app")})
	carapace.AddScoped[RequestContext](services, func(sc *host.ScopeContext) RequestContext {
		return newWindowContext(sc)
	})
	carapace.AddTransient[*Widget](services, newWidget)
	carapace.AddLazy[*Widget](services)

	return services
}
