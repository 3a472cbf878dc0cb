package naming

import (
	"context"
	"fmt"
	"strings"
)

// Scheme prefixes of the standard namespaces
const (
	CompPrefix   = "java:comp"
	ModulePrefix = "java:module"
	AppPrefix    = "java:app"
	GlobalPrefix = "java:global"

	// EnvContext is the default context for names declared without a scheme
	EnvContext = "java:comp/env/"
)

// Namespaces routes names to the component, module, application and global
// contexts visible to one component. Names without a java: prefix resolve
// against java:comp/env.
type Namespaces struct {
	Global *Context
	App    *Context
	Module *Context
	Comp   *Context
}

// Qualify returns name prefixed with the env default context unless it already
// carries a java: scheme
func Qualify(name string) string {
	if strings.HasPrefix(name, "java:") {
		return name
	}
	return EnvContext + strings.TrimPrefix(name, "/")
}

// Resolve returns the context owning name and the remainder of the name within it
func (n *Namespaces) Resolve(name string) (*Context, string, error) {
	name = Qualify(name)
	for _, ns := range []struct {
		prefix string
		ctx    *Context
	}{
		{CompPrefix, n.Comp},
		{ModulePrefix, n.Module},
		{AppPrefix, n.App},
		{GlobalPrefix, n.Global},
	} {
		if name != ns.prefix && !strings.HasPrefix(name, ns.prefix+"/") {
			continue
		}
		if ns.ctx == nil {
			return nil, "", fmt.Errorf("%w: namespace %s is not available", ErrNameNotFound, ns.prefix)
		}
		return ns.ctx, strings.TrimPrefix(name, ns.prefix), nil
	}
	return nil, "", fmt.Errorf("%w: unknown namespace in %s", ErrNameNotFound, name)
}

// Lookup implements Lookup
func (n *Namespaces) Lookup(ctx context.Context, name string) (any, error) {
	target, rest, err := n.Resolve(name)
	if err != nil {
		return nil, err
	}
	return target.Lookup(ctx, rest)
}

// Bind implements Binder
func (n *Namespaces) Bind(name string, value any) error {
	target, rest, err := n.Resolve(name)
	if err != nil {
		return err
	}
	return target.Bind(rest, value)
}

// Unbind implements Binder
func (n *Namespaces) Unbind(name string) error {
	target, rest, err := n.Resolve(name)
	if err != nil {
		return err
	}
	return target.Unbind(rest)
}

var (
	_ Lookup = (*Namespaces)(nil)
	_ Binder = (*Namespaces)(nil)
)
