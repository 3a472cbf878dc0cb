package adapters

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/toyz/eecore/pkg/ee/management"
)

// FiberAdapter wraps a Fiber app to implement management.Server
type FiberAdapter struct {
	app *fiber.App
}

// NewFiberAdapter creates a Fiber adapter whose error handler answers in the
// management JSON error shape
func NewFiberAdapter() *FiberAdapter {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				err = management.NewHTTPError(e.Code, e.Message)
			}
			code, body := management.ErrorStatus(err)
			return c.Status(code).JSON(body)
		},
	})
	return &FiberAdapter{app: app}
}

// NewDefaultFiberAdapter creates a Fiber adapter with panic recovery
func NewDefaultFiberAdapter() *FiberAdapter {
	adapter := NewFiberAdapter()
	adapter.app.Use(recover.New())
	return adapter
}

// RegisterRoute registers a route with the Fiber app
func (fa *FiberAdapter) RegisterRoute(method string, path management.Path, handler management.HandlerFunc, middlewares ...management.MiddlewareFunc) {
	fa.app.Add(method, path.Format("*"), handlers(handler, middlewares)...)
}

// RegisterGroup creates a new route group with the given prefix
func (fa *FiberAdapter) RegisterGroup(prefix string) management.RouteGroup {
	return &FiberRouteGroup{group: fa.app.Group(prefix)}
}

// Mount serves a net/http handler under path
func (fa *FiberAdapter) Mount(path string, handler http.Handler) {
	fa.app.All(path, adaptor.HTTPHandler(handler))
}

// Use adds middleware to the Fiber app
func (fa *FiberAdapter) Use(middleware management.MiddlewareFunc) {
	fa.app.Use(convertMiddleware(middleware))
}

// Start starts the Fiber server
func (fa *FiberAdapter) Start(addr string) error {
	return fa.app.Listen(addr)
}

// Stop stops the Fiber server
func (fa *FiberAdapter) Stop(ctx context.Context) error {
	return fa.app.ShutdownWithContext(ctx)
}

// Handler implements management.Server
func (fa *FiberAdapter) Handler() http.Handler {
	return adaptor.FiberApp(fa.app)
}

// Name returns the adapter name
func (fa *FiberAdapter) Name() string {
	return "Fiber"
}

// App returns the underlying Fiber app
func (fa *FiberAdapter) App() *fiber.App {
	return fa.app
}

// FiberRouteGroup wraps a Fiber route group to implement management.RouteGroup
type FiberRouteGroup struct {
	group fiber.Router
}

// RegisterRoute registers a route with this group
func (frg *FiberRouteGroup) RegisterRoute(method string, path management.Path, handler management.HandlerFunc, middlewares ...management.MiddlewareFunc) {
	frg.group.Add(method, path.Format("*"), handlers(handler, middlewares)...)
}

// Use adds middleware to this route group
func (frg *FiberRouteGroup) Use(middleware management.MiddlewareFunc) {
	frg.group.Use(convertMiddleware(middleware))
}

// Group creates a sub-group with the given prefix
func (frg *FiberRouteGroup) Group(prefix string) management.RouteGroup {
	return &FiberRouteGroup{group: frg.group.Group(prefix)}
}

func handlers(handler management.HandlerFunc, middlewares []management.MiddlewareFunc) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(middlewares)+1)
	for _, mw := range middlewares {
		out = append(out, convertMiddleware(mw))
	}
	return append(out, convertHandler(handler))
}

func convertHandler(handler management.HandlerFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := handler(&FiberRequestContext{ctx: c}); err != nil {
			c.Locals(management.ErrorKey, err)
			code, body := management.ErrorStatus(err)
			return c.Status(code).JSON(body)
		}
		return nil
	}
}

func convertMiddleware(middleware management.MiddlewareFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return middleware(func(management.RequestContext) error {
			return c.Next()
		})(&FiberRequestContext{ctx: c})
	}
}

// FiberRequestContext wraps fiber.Ctx to implement management.RequestContext
type FiberRequestContext struct {
	ctx *fiber.Ctx
}

func (frc *FiberRequestContext) Method() string {
	return frc.ctx.Method()
}

func (frc *FiberRequestContext) Path() string {
	return frc.ctx.Path()
}

func (frc *FiberRequestContext) RealIP() string {
	return frc.ctx.IP()
}

func (frc *FiberRequestContext) Param(name string) string {
	return frc.ctx.Params(name)
}

func (frc *FiberRequestContext) QueryParam(key string) string {
	return frc.ctx.Query(key)
}

func (frc *FiberRequestContext) Context() context.Context {
	return frc.ctx.UserContext()
}

func (frc *FiberRequestContext) Bind(v any) error {
	return frc.ctx.BodyParser(v)
}

func (frc *FiberRequestContext) Get(key string) any {
	return frc.ctx.Locals(key)
}

func (frc *FiberRequestContext) Set(key string, val any) {
	frc.ctx.Locals(key, val)
}

func (frc *FiberRequestContext) SetHeader(key, value string) {
	frc.ctx.Set(key, value)
}

func (frc *FiberRequestContext) JSON(code int, v any) error {
	return frc.ctx.Status(code).JSON(v)
}

func (frc *FiberRequestContext) NoContent(code int) error {
	return frc.ctx.SendStatus(code)
}
