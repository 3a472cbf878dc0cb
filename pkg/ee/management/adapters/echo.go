package adapters

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/toyz/eecore/pkg/ee/management"
)

// EchoAdapter implements management.Server for Echo v4
type EchoAdapter struct {
	engine *echo.Echo
}

// NewEchoAdapter creates a new Echo adapter
func NewEchoAdapter(e *echo.Echo) *EchoAdapter {
	return &EchoAdapter{engine: e}
}

// NewDefaultEchoAdapter creates an Echo adapter with a quiet Echo instance
func NewDefaultEchoAdapter() *EchoAdapter {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return &EchoAdapter{engine: e}
}

// RegisterRoute registers a route with the Echo server
func (ea *EchoAdapter) RegisterRoute(method string, path management.Path, handler management.HandlerFunc, middlewares ...management.MiddlewareFunc) {
	ea.engine.Add(method, path.Format("*"), ea.convertHandler(handler), ea.convertMiddlewares(middlewares)...)
}

// RegisterGroup creates a new route group
func (ea *EchoAdapter) RegisterGroup(prefix string) management.RouteGroup {
	return &EchoGroupAdapter{group: ea.engine.Group(prefix), adapter: ea}
}

// Mount serves a net/http handler under path
func (ea *EchoAdapter) Mount(path string, handler http.Handler) {
	ea.engine.Any(path, echo.WrapHandler(handler))
}

// Use adds global middleware
func (ea *EchoAdapter) Use(middleware management.MiddlewareFunc) {
	ea.engine.Use(ea.convertMiddleware(middleware))
}

// Start starts the server
func (ea *EchoAdapter) Start(addr string) error {
	return ea.engine.Start(addr)
}

// Stop stops the server
func (ea *EchoAdapter) Stop(ctx context.Context) error {
	return ea.engine.Shutdown(ctx)
}

// Handler implements management.Server
func (ea *EchoAdapter) Handler() http.Handler {
	return ea.engine
}

// Name returns the adapter name
func (ea *EchoAdapter) Name() string {
	return "Echo"
}

// GetEngine returns the underlying Echo instance
func (ea *EchoAdapter) GetEngine() *echo.Echo {
	return ea.engine
}

// EchoGroupAdapter implements management.RouteGroup for Echo groups
type EchoGroupAdapter struct {
	group   *echo.Group
	adapter *EchoAdapter
}

// RegisterRoute registers a route with the group
func (ega *EchoGroupAdapter) RegisterRoute(method string, path management.Path, handler management.HandlerFunc, middlewares ...management.MiddlewareFunc) {
	ega.group.Add(method, path.Format("*"), ega.adapter.convertHandler(handler), ega.adapter.convertMiddlewares(middlewares)...)
}

// Use adds middleware to the group
func (ega *EchoGroupAdapter) Use(middleware management.MiddlewareFunc) {
	ega.group.Use(ega.adapter.convertMiddleware(middleware))
}

// Group creates a sub-group
func (ega *EchoGroupAdapter) Group(prefix string) management.RouteGroup {
	return &EchoGroupAdapter{group: ega.group.Group(prefix), adapter: ega.adapter}
}

func (ea *EchoAdapter) convertHandler(handler management.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := handler(&EchoRequestContext{context: c}); err != nil {
			c.Set(management.ErrorKey, err)
			code, body := management.ErrorStatus(err)
			return c.JSON(code, body)
		}
		return nil
	}
}

func (ea *EchoAdapter) convertMiddlewares(middlewares []management.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, len(middlewares))
	for i, mw := range middlewares {
		out[i] = ea.convertMiddleware(mw)
	}
	return out
}

// convertMiddleware runs middleware around the rest of the echo chain. Errors
// returned by the chain are passed to the middleware unchanged.
func (ea *EchoAdapter) convertMiddleware(middleware management.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			wrapped := middleware(func(management.RequestContext) error {
				return next(c)
			})
			return wrapped(&EchoRequestContext{context: c})
		}
	}
}

// EchoRequestContext implements management.RequestContext for Echo
type EchoRequestContext struct {
	context echo.Context
}

// Method returns the HTTP method
func (erc *EchoRequestContext) Method() string {
	return erc.context.Request().Method
}

// Path returns the request path
func (erc *EchoRequestContext) Path() string {
	return erc.context.Request().URL.Path
}

// RealIP returns the real IP address
func (erc *EchoRequestContext) RealIP() string {
	return erc.context.RealIP()
}

// Param returns path parameter by name
func (erc *EchoRequestContext) Param(key string) string {
	return erc.context.Param(key)
}

// QueryParam returns query parameter by name
func (erc *EchoRequestContext) QueryParam(key string) string {
	return erc.context.QueryParam(key)
}

// Context returns the request context
func (erc *EchoRequestContext) Context() context.Context {
	return erc.context.Request().Context()
}

// Bind binds the request body
func (erc *EchoRequestContext) Bind(v any) error {
	return erc.context.Bind(v)
}

// Get retrieves data from the request
func (erc *EchoRequestContext) Get(key string) any {
	return erc.context.Get(key)
}

// Set stores data on the request
func (erc *EchoRequestContext) Set(key string, val any) {
	erc.context.Set(key, val)
}

// SetHeader sets a response header
func (erc *EchoRequestContext) SetHeader(key, value string) {
	erc.context.Response().Header().Set(key, value)
}

// JSON writes a JSON response
func (erc *EchoRequestContext) JSON(code int, v any) error {
	return erc.context.JSON(code, v)
}

// NoContent writes a bodiless response
func (erc *EchoRequestContext) NoContent(code int) error {
	return erc.context.NoContent(code)
}
