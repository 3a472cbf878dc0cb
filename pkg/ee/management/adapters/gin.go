package adapters

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/toyz/eecore/pkg/ee/management"
)

// GinAdapter implements management.Server for Gin
type GinAdapter struct {
	engine *gin.Engine

	mu     sync.Mutex
	server *http.Server
}

// NewGinAdapter creates a new Gin adapter
func NewGinAdapter(g *gin.Engine) *GinAdapter {
	return &GinAdapter{engine: g}
}

// NewDefaultGinAdapter creates a Gin adapter with a bare engine in release mode
func NewDefaultGinAdapter() *GinAdapter {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	return &GinAdapter{engine: g}
}

// RegisterRoute registers a route with the Gin server
func (ga *GinAdapter) RegisterRoute(method string, path management.Path, handler management.HandlerFunc, middlewares ...management.MiddlewareFunc) {
	ga.engine.Handle(method, path.Format("*path"), ga.handlers(handler, middlewares)...)
}

// RegisterGroup registers a route group with the Gin server
func (ga *GinAdapter) RegisterGroup(prefix string) management.RouteGroup {
	return &GinRouteGroup{group: ga.engine.Group(prefix), adapter: ga}
}

// Mount serves a net/http handler under path
func (ga *GinAdapter) Mount(path string, handler http.Handler) {
	ga.engine.Any(path, gin.WrapH(handler))
}

// Use registers a global middleware with the Gin server
func (ga *GinAdapter) Use(middleware management.MiddlewareFunc) {
	ga.engine.Use(ga.convertMiddleware(middleware))
}

// Start serves the engine on addr until Stop is called
func (ga *GinAdapter) Start(addr string) error {
	srv := &http.Server{Addr: addr, Handler: ga.engine}
	ga.mu.Lock()
	ga.server = srv
	ga.mu.Unlock()
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down
func (ga *GinAdapter) Stop(ctx context.Context) error {
	ga.mu.Lock()
	srv := ga.server
	ga.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler implements management.Server
func (ga *GinAdapter) Handler() http.Handler {
	return ga.engine
}

// Name returns the adapter name
func (ga *GinAdapter) Name() string {
	return "Gin"
}

// GetEngine returns the underlying Gin engine
func (ga *GinAdapter) GetEngine() *gin.Engine {
	return ga.engine
}

// GinRouteGroup implements management.RouteGroup for Gin
type GinRouteGroup struct {
	group   *gin.RouterGroup
	adapter *GinAdapter
}

// RegisterRoute registers a route within the group
func (grg *GinRouteGroup) RegisterRoute(method string, path management.Path, handler management.HandlerFunc, middlewares ...management.MiddlewareFunc) {
	grg.group.Handle(method, path.Format("*path"), grg.adapter.handlers(handler, middlewares)...)
}

// Use registers middleware with the group
func (grg *GinRouteGroup) Use(middleware management.MiddlewareFunc) {
	grg.group.Use(grg.adapter.convertMiddleware(middleware))
}

// Group creates a sub-group
func (grg *GinRouteGroup) Group(prefix string) management.RouteGroup {
	return &GinRouteGroup{group: grg.group.Group(prefix), adapter: grg.adapter}
}

func (ga *GinAdapter) handlers(handler management.HandlerFunc, middlewares []management.MiddlewareFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middlewares)+1)
	for _, mw := range middlewares {
		out = append(out, ga.convertMiddleware(mw))
	}
	return append(out, ga.convertHandler(handler))
}

func (ga *GinAdapter) convertHandler(handler management.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := handler(&GinRequestContext{ctx: c}); err != nil {
			c.Set(management.ErrorKey, err)
			code, body := management.ErrorStatus(err)
			c.JSON(code, body)
		}
	}
}

// convertMiddleware lets the middleware decide whether the rest of the gin
// chain runs. A middleware error aborts the request.
func (ga *GinAdapter) convertMiddleware(middleware management.MiddlewareFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		next := func(management.RequestContext) error {
			c.Next()
			return nil
		}
		if err := middleware(next)(&GinRequestContext{ctx: c}); err != nil {
			c.Set(management.ErrorKey, err)
			code, body := management.ErrorStatus(err)
			c.AbortWithStatusJSON(code, body)
		}
	}
}

// GinRequestContext implements management.RequestContext for Gin
type GinRequestContext struct {
	ctx *gin.Context
}

// Method returns the HTTP method
func (grc *GinRequestContext) Method() string {
	return grc.ctx.Request.Method
}

// Path returns the request path
func (grc *GinRequestContext) Path() string {
	return grc.ctx.Request.URL.Path
}

// RealIP returns the client IP address
func (grc *GinRequestContext) RealIP() string {
	return grc.ctx.ClientIP()
}

// Param returns a path parameter
func (grc *GinRequestContext) Param(name string) string {
	if name == "*" {
		return grc.ctx.Param("path")
	}
	return grc.ctx.Param(name)
}

// QueryParam returns a query parameter
func (grc *GinRequestContext) QueryParam(name string) string {
	return grc.ctx.Query(name)
}

// Context returns the request context
func (grc *GinRequestContext) Context() context.Context {
	return grc.ctx.Request.Context()
}

// Bind binds a JSON request body
func (grc *GinRequestContext) Bind(v any) error {
	return grc.ctx.ShouldBindJSON(v)
}

// Get returns a value stored on the request
func (grc *GinRequestContext) Get(key string) any {
	value, _ := grc.ctx.Get(key)
	return value
}

// Set stores a value on the request
func (grc *GinRequestContext) Set(key string, val any) {
	grc.ctx.Set(key, val)
}

// SetHeader sets a response header
func (grc *GinRequestContext) SetHeader(key, value string) {
	grc.ctx.Header(key, value)
}

// JSON writes a JSON response
func (grc *GinRequestContext) JSON(code int, v any) error {
	grc.ctx.JSON(code, v)
	return nil
}

// NoContent writes a bodiless response
func (grc *GinRequestContext) NoContent(code int) error {
	grc.ctx.Status(code)
	grc.ctx.Writer.WriteHeaderNow()
	return nil
}
