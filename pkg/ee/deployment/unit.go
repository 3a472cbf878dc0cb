// Package deployment turns a deployment unit, a module plus the component
// descriptions found in it, into running components. Each component is
// configured and started on its own: a failing component is reported and skipped
// while the rest of the unit deploys.
package deployment

import (
	"context"
	"fmt"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/naming"
	"github.com/toyz/eecore/pkg/ee/service"
)

// EJBLocalRef declares a reference from a component to a local view of another
// component. Lookup and Link are mutually exclusive; with neither set the
// reference is resolved lazily by view type within the unit.
type EJBLocalRef struct {
	Name   string
	Type   string
	Lookup string
	Link   string
}

// Unit is one deployment unit
type Unit struct {
	Name       service.Name
	Module     *component.ModuleDescription
	Loader     *classes.Loader
	Components []*component.Description
	// LocalRefs holds the ejb-local-refs of each component, keyed by component name
	LocalRefs map[string][]EJBLocalRef
}

// NewUnit creates an empty unit for module. The unit service name is
// "deployment.<module>".
func NewUnit(module *component.ModuleDescription, loader *classes.Loader) *Unit {
	return &Unit{
		Name:      service.NewName("deployment", module.ModuleName),
		Module:    module,
		Loader:    loader,
		LocalRefs: make(map[string][]EJBLocalRef),
	}
}

// AddLocalRef records an ejb-local-ref for the named component
func (u *Unit) AddLocalRef(componentName string, ref EJBLocalRef) {
	if u.LocalRefs == nil {
		u.LocalRefs = make(map[string][]EJBLocalRef)
	}
	u.LocalRefs[componentName] = append(u.LocalRefs[componentName], ref)
}

// Validate checks the unit-level invariants that must hold before any component is processed
func (u *Unit) Validate() error {
	var problems *errors.MultipleErrors
	if u.Name == "" {
		errors.AddToMultiple(&problems, errors.NewValidationError("name", "deployment unit service name", "empty"))
	}
	if u.Module == nil {
		errors.AddToMultiple(&problems, errors.NewValidationError("module", "module description", "nil"))
	}
	if u.Loader == nil {
		errors.AddToMultiple(&problems, errors.NewValidationError("loader", "class loader", "nil"))
	}
	seen := make(map[string]bool, len(u.Components))
	for _, d := range u.Components {
		if seen[d.Name()] {
			errors.AddToMultiple(&problems, errors.NewRegistrationError("component", d.Name(),
				"component name is used twice in "+u.Name.String()))
		}
		seen[d.Name()] = true
		if d.DeploymentUnit() != u.Name {
			errors.AddToMultiple(&problems, errors.NewValidationError("component "+d.Name()+" deployment unit",
				u.Name.String(), d.DeploymentUnit().String()))
		}
	}
	return problems.ErrorOrNil()
}

// applyLocalRefs turns the ejb-local-refs of d into naming bindings
func (u *Unit) applyLocalRefs(d *component.Description, dep *Deployment) error {
	for _, ref := range u.LocalRefs[d.Name()] {
		if ref.Name == "" {
			return errors.NewDeploymentError(d.Name(), u.Name.String(), "ejb-local-ref without a name")
		}
		name := naming.Qualify(ref.Name)
		if ref.Type == "" {
			return errors.NewDeploymentError(d.Name(), u.Name.String(),
				fmt.Sprintf("could not determine type of ejb-local-ref %s for component %s", name, d.Name()))
		}
		if _, err := u.Loader.Resolve(ref.Type); err != nil {
			return errors.NewDeploymentError(d.Name(), u.Name.String(),
				"could not load local interface type "+ref.Type).WithCause(err)
		}

		var source component.InjectionSource
		switch {
		case ref.Lookup != "" && ref.Link != "":
			return errors.NewDeploymentError(d.Name(), u.Name.String(),
				fmt.Sprintf("ejb-local-ref %s sets both lookup and link", name))
		case ref.Lookup != "":
			source = component.LookupSource{Name: ref.Lookup}
		case ref.Link != "":
			source = component.ServiceSource{Service: u.Name.Append("component", ref.Link, "VIEW", ref.Type)}
		default:
			source = viewTypeSource{deployment: dep, viewClass: ref.Type}
		}
		d.AddBinding(component.BindingConfiguration{Name: name, Source: source})
	}
	return nil
}

// viewTypeSource resolves, on each lookup, the single view of the given class
// deployed in the unit
type viewTypeSource struct {
	deployment *Deployment
	viewClass  string
}

func (viewTypeSource) Dependencies() []service.Name { return nil }

func (s viewTypeSource) Resolve(context.Context, *component.Environment) (any, error) {
	return naming.ReferenceFunc(func(context.Context) (any, error) {
		return s.deployment.viewByClass(s.viewClass)
	}), nil
}

func (s viewTypeSource) String() string { return "view of type " + s.viewClass }
