// Package merge combines annotation and descriptor metadata and turns the
// result into component descriptions ready for deployment.
//
// Merge is pure: it never touches the inputs and never resolves classes.
// BuildUnit is the step that needs a class loader.
package merge

import (
	"github.com/toyz/eecore/internal/descriptor"
	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/metadata"
)

// Merge overlays the descriptor on the annotated metadata. Either side may be
// nil. Descriptor values win wherever both sides set one; descriptor entries
// without an annotated counterpart are added.
func Merge(annotated, desc *metadata.ModuleMetadata) (*metadata.ModuleMetadata, error) {
	out := &metadata.ModuleMetadata{}
	if annotated != nil {
		out.Application = annotated.Application
		out.Module = annotated.Module
		out.DefaultInterceptors = append([]string(nil), annotated.DefaultInterceptors...)
		for _, c := range annotated.Classes {
			out.Classes = append(out.Classes, cloneClass(c))
		}
		for _, c := range annotated.Components {
			out.Components = append(out.Components, cloneComponent(c))
		}
	}

	var errs *errors.MultipleErrors
	if desc != nil {
		if desc.Application != "" {
			out.Application = desc.Application
		}
		if desc.Module != "" {
			out.Module = desc.Module
		}
		if len(desc.DefaultInterceptors) > 0 {
			out.DefaultInterceptors = append([]string(nil), desc.DefaultInterceptors...)
		}

		for _, dc := range desc.Classes {
			if target, ok := out.Class(dc.ClassName); ok {
				overlayClass(target, dc)
				continue
			}
			out.Classes = append(out.Classes, cloneClass(dc))
		}

		for _, dc := range desc.Components {
			target, ok := out.Component(dc.Name)
			if !ok {
				out.Components = append(out.Components, cloneComponent(dc))
				continue
			}
			if dc.Kind != "" && dc.Kind != target.Kind {
				errors.AddToMultiple(&errs, conflict(dc.Location,
					"descriptor declares %s as %s but it is annotated %s at %s:%d",
					dc.Name, dc.Kind, target.Kind, target.Location.File, target.Location.Line))
				continue
			}
			overlayComponent(target, dc)
		}
	}

	for _, c := range out.Components {
		if c.ClassName == "" {
			errors.AddToMultiple(&errs, conflict(c.Location, "component %s has no class", c.Name))
		}
		if c.Kind == "" {
			errors.AddToMultiple(&errs, conflict(c.Location, "component %s has no kind", c.Name))
		}
	}
	if errs != nil {
		return nil, errs
	}

	// the merged result has to satisfy every rule a descriptor alone does,
	// now with each kind known
	if err := descriptor.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

func conflict(loc metadata.Location, format string, args ...any) errors.ContainerError {
	return errors.Newf(errors.ValidationErrorCode, format, args...).
		WithLocation(errors.SourceLocation{File: loc.File, Line: loc.Line})
}

func overlayClass(target, over *metadata.ClassMetadata) {
	overlayLifecycle(&target.LifecycleTrait, over.LifecycleTrait)
	target.Injections = overlayInjections(target.Injections, over.Injections)
}

func overlayComponent(target, over *metadata.ComponentMetadata) {
	if over.ClassName != "" {
		target.ClassName = over.ClassName
	}
	for _, v := range over.Views {
		if !contains(target.Views, v) {
			target.Views = append(target.Views, v)
		}
	}
	if over.Naming != "" {
		target.Naming = over.Naming
	}
	target.Startup = target.Startup || over.Startup
	overlayLifecycle(&target.LifecycleTrait, over.LifecycleTrait)

	// an interceptor binding in the descriptor replaces the annotated order
	if len(over.Interceptors) > 0 {
		target.Interceptors = append([]string(nil), over.Interceptors...)
	}
	target.ExcludeDefault = target.ExcludeDefault || over.ExcludeDefault
	for _, m := range over.MethodInterceptors {
		if existing, ok := target.MethodBinding(m.Method); ok {
			*existing = cloneMethodInterceptors(m)
			continue
		}
		target.MethodInterceptors = append(target.MethodInterceptors, cloneMethodInterceptors(m))
	}

	if over.Pool != nil {
		p := *over.Pool
		target.Pool = &p
	}
	if !over.Synchronization.Empty() {
		if target.Synchronization == nil {
			target.Synchronization = &metadata.SynchronizationTrait{}
		}
		s := target.Synchronization
		s.AfterBegin = pick(over.Synchronization.AfterBegin, s.AfterBegin)
		s.BeforeCompletion = pick(over.Synchronization.BeforeCompletion, s.BeforeCompletion)
		s.AfterCompletion = pick(over.Synchronization.AfterCompletion, s.AfterCompletion)
	}

	target.Injections = overlayInjections(target.Injections, over.Injections)
	for _, ref := range over.LocalRefs {
		replaced := false
		for i := range target.LocalRefs {
			if target.LocalRefs[i].Name == ref.Name {
				target.LocalRefs[i] = ref
				replaced = true
				break
			}
		}
		if !replaced {
			target.LocalRefs = append(target.LocalRefs, ref)
		}
	}
}

func overlayLifecycle(target *metadata.LifecycleTrait, over metadata.LifecycleTrait) {
	target.PostConstruct = pick(over.PostConstruct, target.PostConstruct)
	target.PreDestroy = pick(over.PreDestroy, target.PreDestroy)
	target.AroundInvoke = pick(over.AroundInvoke, target.AroundInvoke)
}

// overlayInjections replaces injections into the same field and appends the rest
func overlayInjections(target, over []metadata.Injection) []metadata.Injection {
	for _, inj := range over {
		replaced := false
		for i := range target {
			if target[i].Field == inj.Field {
				target[i] = inj
				replaced = true
				break
			}
		}
		if !replaced {
			target = append(target, inj)
		}
	}
	return target
}

func pick(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneClass(c *metadata.ClassMetadata) *metadata.ClassMetadata {
	out := *c
	out.Injections = append([]metadata.Injection(nil), c.Injections...)
	return &out
}

func cloneMethodInterceptors(m metadata.MethodInterceptors) metadata.MethodInterceptors {
	m.Interceptors = append([]string(nil), m.Interceptors...)
	return m
}

func cloneComponent(c *metadata.ComponentMetadata) *metadata.ComponentMetadata {
	out := *c
	out.Views = append([]string(nil), c.Views...)
	out.Interceptors = append([]string(nil), c.Interceptors...)
	out.MethodInterceptors = nil
	for _, m := range c.MethodInterceptors {
		out.MethodInterceptors = append(out.MethodInterceptors, cloneMethodInterceptors(m))
	}
	if c.Pool != nil {
		p := *c.Pool
		out.Pool = &p
	}
	if c.Synchronization != nil {
		s := *c.Synchronization
		out.Synchronization = &s
	}
	out.Injections = append([]metadata.Injection(nil), c.Injections...)
	out.LocalRefs = append([]metadata.LocalRef(nil), c.LocalRefs...)
	return &out
}
