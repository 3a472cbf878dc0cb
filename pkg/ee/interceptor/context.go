package interceptor

import (
	"context"
	stderrors "errors"

	"github.com/toyz/eecore/pkg/ee/classes"
)

// ErrChainExhausted is returned when Proceed is called past the last interceptor
var ErrChainExhausted = stderrors.New("no more interceptors in chain")

// Context carries one invocation through an interceptor chain: the method, its
// parameters, the target object, the active class loader and private data such
// as the owning component instance.
type Context struct {
	ctx         context.Context
	method      *classes.Method
	params      []any
	target      any
	classLoader *classes.Loader
	private     map[any]any
	data        map[string]any

	chain []Interceptor
	next  int
}

// NewContext creates an invocation context bound to ctx
func NewContext(ctx context.Context) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		ctx:     ctx,
		private: make(map[any]any),
		data:    make(map[string]any),
	}
}

// Context returns the request-scoped context
func (c *Context) Context() context.Context {
	return c.ctx
}

// SetContext replaces the request-scoped context and returns the previous one
func (c *Context) SetContext(ctx context.Context) context.Context {
	prev := c.ctx
	c.ctx = ctx
	return prev
}

// Method returns the invoked method, nil for lifecycle callbacks
func (c *Context) Method() *classes.Method {
	return c.method
}

// SetMethod sets the invoked method
func (c *Context) SetMethod(m *classes.Method) {
	c.method = m
}

// Parameters implements classes.Invocation
func (c *Context) Parameters() []any {
	return c.params
}

// SetParameters sets the invocation arguments
func (c *Context) SetParameters(params []any) {
	c.params = params
}

// Target returns the object the invocation is directed at
func (c *Context) Target() any {
	return c.target
}

// SetTarget sets the invocation target
func (c *Context) SetTarget(target any) {
	c.target = target
}

// ClassLoader returns the loader that is active for this invocation
func (c *Context) ClassLoader() *classes.Loader {
	return c.classLoader
}

// SetClassLoader replaces the active loader and returns the previous one
func (c *Context) SetClassLoader(l *classes.Loader) *classes.Loader {
	prev := c.classLoader
	c.classLoader = l
	return prev
}

// PrivateData returns a value stored under key by the container
func (c *Context) PrivateData(key any) any {
	return c.private[key]
}

// SetPrivateData stores container-only data such as the component instance
func (c *Context) SetPrivateData(key, value any) {
	if value == nil {
		delete(c.private, key)
		return
	}
	c.private[key] = value
}

// ContextData is the user-visible data map shared by all interceptors of one call
func (c *Context) ContextData() map[string]any {
	return c.data
}

// Proceed runs the next interceptor of the current chain
func (c *Context) Proceed() (any, error) {
	if c.next >= len(c.chain) {
		return nil, ErrChainExhausted
	}
	i := c.chain[c.next]
	c.next++
	defer func() { c.next-- }()
	return i.Process(c)
}

// Run processes the context through interceptors as a fresh chain, restoring the
// previous chain position afterwards so nested chains can share one context.
func (c *Context) Run(interceptors []Interceptor) (any, error) {
	prevChain, prevNext := c.chain, c.next
	c.chain, c.next = interceptors, 0
	defer func() {
		c.chain, c.next = prevChain, prevNext
	}()
	return c.Proceed()
}

var _ classes.Invocation = (*Context)(nil)
