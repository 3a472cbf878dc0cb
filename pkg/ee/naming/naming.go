package naming

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNameNotFound is returned when a lookup finds nothing bound
	ErrNameNotFound = stderrors.New("name not found")
	// ErrAlreadyBound is returned when binding over an existing entry
	ErrAlreadyBound = stderrors.New("name already bound")
	// ErrNotContext is returned when a path segment is bound to a value
	ErrNotContext = stderrors.New("name is not a context")
)

// ReferenceFactory defers producing a bound value until lookup time. Each
// Reference call may return a fresh value.
type ReferenceFactory interface {
	Reference(ctx context.Context) (any, error)
}

// ReferenceFunc adapts a function to ReferenceFactory
type ReferenceFunc func(ctx context.Context) (any, error)

// Reference implements ReferenceFactory
func (f ReferenceFunc) Reference(ctx context.Context) (any, error) {
	return f(ctx)
}

// Value returns a factory that always yields v
func Value(v any) ReferenceFactory {
	return ReferenceFunc(func(context.Context) (any, error) { return v, nil })
}

// Lookup resolves names
type Lookup interface {
	Lookup(ctx context.Context, name string) (any, error)
}

// Binder binds and unbinds names
type Binder interface {
	Bind(name string, value any) error
	Unbind(name string) error
}

// Lazy returns a factory that resolves name through l on every Reference call
func Lazy(l Lookup, name string) ReferenceFactory {
	return ReferenceFunc(func(ctx context.Context) (any, error) {
		return l.Lookup(ctx, name)
	})
}

// Split breaks a name such as "java:comp/env/jdbc/ds" into its segments.
// Empty segments are dropped.
func Split(name string) []string {
	var parts []string
	for _, p := range strings.Split(name, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Join is the inverse of Split
func Join(parts ...string) string {
	var clean []string
	for _, p := range parts {
		clean = append(clean, Split(p)...)
	}
	return strings.Join(clean, "/")
}

// Context is a hierarchical in-memory naming context. Bound values that
// implement ReferenceFactory are dereferenced on lookup.
type Context struct {
	mu       sync.RWMutex
	name     string
	bindings map[string]any
	children map[string]*Context
}

// NewContext creates an empty root context
func NewContext(name string) *Context {
	return &Context{
		name:     name,
		bindings: make(map[string]any),
		children: make(map[string]*Context),
	}
}

// Name returns the full name of this context
func (c *Context) Name() string {
	return c.name
}

// Bind binds value under name, creating intermediate contexts
func (c *Context) Bind(name string, value any) error {
	parts := Split(name)
	if len(parts) == 0 {
		return fmt.Errorf("cannot bind empty name")
	}
	parent, err := c.walk(parts[:len(parts)-1], true)
	if err != nil {
		return fmt.Errorf("bind %s: %w", name, err)
	}
	return parent.bindLocal(parts[len(parts)-1], value)
}

// Rebind binds value under name, replacing any existing value
func (c *Context) Rebind(name string, value any) error {
	_ = c.Unbind(name)
	return c.Bind(name, value)
}

func (c *Context) bindLocal(leaf string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.bindings[leaf]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, Join(c.name, leaf))
	}
	if _, exists := c.children[leaf]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, Join(c.name, leaf))
	}
	if sub, ok := value.(*Context); ok {
		c.children[leaf] = sub
		return nil
	}
	c.bindings[leaf] = value
	return nil
}

// Unbind removes the binding or subcontext at name
func (c *Context) Unbind(name string) error {
	parts := Split(name)
	if len(parts) == 0 {
		return fmt.Errorf("cannot unbind empty name")
	}
	parent, err := c.walk(parts[:len(parts)-1], false)
	if err != nil {
		return err
	}
	leaf := parts[len(parts)-1]
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if _, ok := parent.bindings[leaf]; ok {
		delete(parent.bindings, leaf)
		return nil
	}
	if _, ok := parent.children[leaf]; ok {
		delete(parent.children, leaf)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNameNotFound, name)
}

// CreateSubcontext returns the context at name, creating it when missing
func (c *Context) CreateSubcontext(name string) (*Context, error) {
	return c.walk(Split(name), true)
}

// Subcontext returns the existing context at name
func (c *Context) Subcontext(name string) (*Context, error) {
	return c.walk(Split(name), false)
}

// Lookup implements Lookup. An empty name returns the context itself.
func (c *Context) Lookup(ctx context.Context, name string) (any, error) {
	parts := Split(name)
	if len(parts) == 0 {
		return c, nil
	}
	parent, err := c.walk(parts[:len(parts)-1], false)
	if err != nil {
		return nil, err
	}
	leaf := parts[len(parts)-1]

	parent.mu.RLock()
	value, bound := parent.bindings[leaf]
	sub, isContext := parent.children[leaf]
	parent.mu.RUnlock()

	switch {
	case isContext:
		return sub, nil
	case !bound:
		return nil, fmt.Errorf("%w: %s", ErrNameNotFound, Join(c.name, name))
	}
	if f, ok := value.(ReferenceFactory); ok {
		return f.Reference(ctx)
	}
	return value, nil
}

// List returns the names bound directly in this context, sorted
func (c *Context) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.bindings)+len(c.children))
	for n := range c.bindings {
		names = append(names, n)
	}
	for n := range c.children {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Context) walk(parts []string, create bool) (*Context, error) {
	cur := c
	for _, p := range parts {
		cur.mu.Lock()
		next, ok := cur.children[p]
		if !ok {
			if _, bound := cur.bindings[p]; bound {
				cur.mu.Unlock()
				return nil, fmt.Errorf("%w: %s", ErrNotContext, Join(cur.name, p))
			}
			if !create {
				cur.mu.Unlock()
				return nil, fmt.Errorf("%w: %s", ErrNameNotFound, Join(cur.name, p))
			}
			next = NewContext(Join(cur.name, p))
			cur.children[p] = next
		}
		cur.mu.Unlock()
		cur = next
	}
	return cur, nil
}

var (
	_ Lookup = (*Context)(nil)
	_ Binder = (*Context)(nil)
)
