package ejb

import (
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/interceptor"
)

// ManagedBean is a plain managed component. A call uses the instance the caller
// passes under component.InstanceDataKey, or a fresh instance that is destroyed
// when the call returns.
type ManagedBean struct {
	*component.Basic
}

// NewManagedBean creates a managed bean component
func NewManagedBean(cfg *component.Configuration, env *component.Environment) *ManagedBean {
	m := &ManagedBean{}
	m.Basic = component.NewBasic(cfg, env, component.WithOwner(m))
	return m
}

// Kind implements Bean
func (m *ManagedBean) Kind() Kind { return KindManagedBean }

func (m *ManagedBean) associate(ctx *interceptor.Context) (any, error) {
	if inst, ok := component.InstanceFrom(ctx); ok && inst != nil {
		return ctx.Proceed()
	}

	inst, err := m.CreateInstance(ctx.Context())
	if err != nil {
		return nil, err
	}
	defer m.DestroyInstance(ctx.Context(), inst)
	return withInstance(ctx, inst)
}

var _ Bean = (*ManagedBean)(nil)
