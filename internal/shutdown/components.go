package shutdown

import (
	"context"
	"io"
	"net/http"
)

// HTTPServerComponent wraps an http.Server for graceful shutdown.
type HTTPServerComponent struct {
	name   string
	server *http.Server
}

// NewHTTPServerComponent wraps an HTTP server.
func NewHTTPServerComponent(name string, server *http.Server) *HTTPServerComponent {
	return &HTTPServerComponent{name: name, server: server}
}

func (c *HTTPServerComponent) Name() string { return c.name }

func (c *HTTPServerComponent) Shutdown(ctx context.Context) error {
	return c.server.Shutdown(ctx)
}

// CloserComponent wraps an io.Closer, e.g. a database pool.
type CloserComponent struct {
	name   string
	closer io.Closer
}

// NewCloserComponent wraps a closer.
func NewCloserComponent(name string, closer io.Closer) *CloserComponent {
	return &CloserComponent{name: name, closer: closer}
}

func (c *CloserComponent) Name() string { return c.name }

func (c *CloserComponent) Shutdown(ctx context.Context) error {
	return c.closer.Close()
}

// FuncComponent adapts a plain shutdown function.
type FuncComponent struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncComponent wraps a function.
func NewFuncComponent(name string, fn func(ctx context.Context) error) *FuncComponent {
	return &FuncComponent{name: name, fn: fn}
}

func (c *FuncComponent) Name() string { return c.name }

func (c *FuncComponent) Shutdown(ctx context.Context) error {
	return c.fn(ctx)
}
