package merge

import (
	"fmt"
	"strings"
	"time"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/metadata"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/deployment"
	"github.com/toyz/eecore/pkg/ee/ejb"
	"github.com/toyz/eecore/pkg/ee/interceptor"
	"github.com/toyz/eecore/pkg/ee/naming"
)

// BuildUnit turns merged metadata into a deployment unit. Class and method
// names are resolved against loader. base supplies the options every
// component starts from: observers, hooks and the default pool settings.
//
// A component that cannot be described is reported and left out; the
// returned error aggregates every such failure.
func BuildUnit(md *metadata.ModuleMetadata, loader *classes.Loader, base ejb.Options, opts ...UnitOption) (*deployment.Unit, error) {
	if md.Module == "" {
		return nil, errors.New(errors.ConfigurationErrorCode, "module name is required to build a deployment unit").
			WithSuggestion("Set module: in the deployment descriptor")
	}

	module := component.NewModuleDescription(md.Application, md.Module)
	unit := deployment.NewUnit(module, loader)
	b := &unitBuilder{unit: unit, loader: loader}
	for _, opt := range opts {
		opt(b)
	}

	for _, c := range md.Classes {
		if err := b.class(c); err != nil {
			errors.AddToMultiple(&b.errs, errors.Wrapf(errors.DeploymentErrorCode, err, "class %s: %v", c.ClassName, err).
				WithLocation(errors.SourceLocation{File: c.Location.File, Line: c.Location.Line}))
		}
	}

	defaults := interceptorDescriptions(md.DefaultInterceptors)
	for _, c := range md.Components {
		d, err := b.component(c, defaults, base)
		if err != nil {
			de := errors.WrapDeploymentError(c.Name, unit.Name.String(), err)
			de.WithLocation(errors.SourceLocation{File: c.Location.File, Line: c.Location.Line})
			errors.AddToMultiple(&b.errs, de)
			continue
		}
		unit.Components = append(unit.Components, d)
	}

	if b.errs != nil {
		return unit, b.errs
	}
	return unit, nil
}

// UnitOption tunes BuildUnit
type UnitOption func(*unitBuilder)

// WithLifecycle gives every component the lifecycle observer fn returns for
// its name, replacing base.Lifecycle. fn may return nil.
func WithLifecycle(fn func(component string) interceptor.LifecycleAware) UnitOption {
	return func(b *unitBuilder) { b.lifecycle = fn }
}

type unitBuilder struct {
	unit      *deployment.Unit
	loader    *classes.Loader
	lifecycle func(string) interceptor.LifecycleAware
	errs      *errors.MultipleErrors
}

func (b *unitBuilder) class(c *metadata.ClassMetadata) error {
	class, err := b.loader.Resolve(c.ClassName)
	if err != nil {
		return err
	}
	cd := b.unit.Module.GetOrAddClass(c.ClassName)
	if err := applyLifecycle(cd, class, c.LifecycleTrait); err != nil {
		return err
	}
	for _, inj := range c.Injections {
		cd.AddInjection(inj.Field, component.LookupSource{Name: inj.Lookup})
	}
	return nil
}

func (b *unitBuilder) component(c *metadata.ComponentMetadata, defaults []component.InterceptorDescription, base ejb.Options) (*component.Description, error) {
	kind, err := ejb.ParseKind(c.Kind)
	if err != nil {
		return nil, err
	}
	class, err := b.loader.Resolve(c.ClassName)
	if err != nil {
		return nil, err
	}

	opts := base
	opts.InitOnStartup = c.Startup
	if b.lifecycle != nil {
		opts.Lifecycle = b.lifecycle(c.Name)
	}
	opts.Synchronization = nil
	if kind == ejb.KindStateless {
		opts.Pool, err = poolSettings(c.Pool, base.Pool)
		if err != nil {
			return nil, err
		}
	}
	if !c.Synchronization.Empty() {
		if opts.Synchronization, err = synchronization(class, c.Synchronization); err != nil {
			return nil, err
		}
	}

	d := ejb.Describe(kind, c.Name, c.ClassName, b.unit.Module, b.unit.Name, opts)
	for _, view := range c.Views {
		ejb.AddView(d, view)
	}
	if c.Naming == metadata.NamingComponent {
		d.SetNamingMode(component.UseComponent)
	}

	cd := b.unit.Module.GetOrAddClass(c.ClassName)
	if err := applyLifecycle(cd, class, c.LifecycleTrait); err != nil {
		return nil, err
	}
	for _, inj := range c.Injections {
		cd.AddInjection(inj.Field, component.LookupSource{Name: inj.Lookup})
	}

	d.SetDefaultInterceptors(defaults)
	d.SetExcludeDefaultInterceptors(c.ExcludeDefault)
	for _, ic := range interceptorDescriptions(c.Interceptors) {
		d.AddClassInterceptor(ic)
	}
	for _, mi := range c.MethodInterceptors {
		m, err := resolveMethod(class, mi.Method, false)
		if err != nil {
			return nil, err
		}
		for _, ic := range interceptorDescriptions(mi.Interceptors) {
			d.AddMethodInterceptor(m, ic)
		}
		if mi.ExcludeDefault {
			d.ExcludeDefaultInterceptors(m)
		}
		if mi.ExcludeClass {
			d.ExcludeClassInterceptors(m)
		}
	}

	for _, ref := range c.LocalRefs {
		b.unit.AddLocalRef(c.Name, deployment.EJBLocalRef{
			Name:   ref.Name,
			Type:   ref.Type,
			Lookup: ref.Lookup,
			Link:   ref.Link,
		})
		if ref.Field != "" {
			cd.AddInjection(ref.Field, component.LookupSource{Name: naming.Qualify(ref.Name)})
		}
	}
	return d, nil
}

func interceptorDescriptions(names []string) []component.InterceptorDescription {
	out := make([]component.InterceptorDescription, 0, len(names))
	for _, name := range names {
		out = append(out, component.InterceptorDescription{ClassName: name})
	}
	return out
}

func poolSettings(p *metadata.PoolTrait, defaults ejb.PoolSettings) (ejb.PoolSettings, error) {
	out := defaults
	if p == nil {
		return out, nil
	}
	if p.PassThrough {
		return ejb.PoolSettings{PassThrough: true}, nil
	}
	if p.MaxSize > 0 {
		out.MaxSize = int64(p.MaxSize)
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return out, fmt.Errorf("pool timeout %q: %w", p.Timeout, err)
		}
		out.Timeout = d
	}
	return out, nil
}

func synchronization(class *classes.Class, s *metadata.SynchronizationTrait) (*ejb.Synchronization, error) {
	out := &ejb.Synchronization{}
	for _, slot := range []struct {
		name string
		dst  **classes.MethodIdentifier
	}{
		{s.AfterBegin, &out.AfterBegin},
		{s.BeforeCompletion, &out.BeforeCompletion},
		{s.AfterCompletion, &out.AfterCompletion},
	} {
		if slot.name == "" {
			continue
		}
		m, err := resolveMethod(class, slot.name, true)
		if err != nil {
			return nil, err
		}
		*slot.dst = &m
	}
	return out, nil
}

func applyLifecycle(cd *component.ClassDescription, class *classes.Class, l metadata.LifecycleTrait) error {
	for _, slot := range []struct {
		name string
		dst  **classes.MethodIdentifier
	}{
		{l.PostConstruct, &cd.PostConstruct},
		{l.PreDestroy, &cd.PreDestroy},
		{l.AroundInvoke, &cd.AroundInvoke},
	} {
		if slot.name == "" {
			continue
		}
		m, err := resolveMethod(class, slot.name, true)
		if err != nil {
			return err
		}
		*slot.dst = &m
	}
	return nil
}

// resolveMethod maps a metadata method reference to an identifier on class.
// "ret name(params)" is taken literally; a bare name must match exactly one
// method. Callbacks are looked up among the methods class declares itself,
// business methods among everything callable on it.
func resolveMethod(class *classes.Class, ref string, declared bool) (classes.MethodIdentifier, error) {
	if strings.Contains(ref, "(") {
		id, err := classes.ParseMethodIdentifier(ref)
		if err != nil {
			return id, err
		}
		if declared {
			if _, ok := class.DeclaredMethod(id); !ok {
				return id, fmt.Errorf("method %s is not declared on class %s", id, class.Name)
			}
			return id, nil
		}
		_, err = class.RequiredMethod(id)
		return id, err
	}

	candidates := class.Methods()
	if declared {
		candidates = class.DeclaredMethods()
	}
	var found []classes.MethodIdentifier
	for _, m := range candidates {
		if m.ID.Name == ref {
			found = append(found, m.ID)
		}
	}
	switch len(found) {
	case 0:
		return classes.MethodIdentifier{}, fmt.Errorf("class %s has no method %s", class.Name, ref)
	case 1:
		return found[0], nil
	default:
		overloads := make([]string, len(found))
		for i, id := range found {
			overloads[i] = id.String()
		}
		return classes.MethodIdentifier{}, fmt.Errorf("method name %s is ambiguous on class %s: %s; use the full \"ret name(params)\" form",
			ref, class.Name, strings.Join(overloads, ", "))
	}
}
