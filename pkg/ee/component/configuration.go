package component

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/logging"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/interceptor"
	"github.com/toyz/eecore/pkg/ee/service"
)

// PhaseContext is the deployment-processing context handed to configurators
type PhaseContext struct {
	Context        context.Context
	DeploymentUnit service.Name
	Loader         *classes.Loader
	Log            *logrus.Entry
}

// NewPhaseContext creates a phase context for unit; loader is the unit's class loader
func NewPhaseContext(ctx context.Context, unit service.Name, loader *classes.Loader, log *logrus.Entry) *PhaseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &PhaseContext{
		Context:        ctx,
		DeploymentUnit: unit,
		Loader:         loader,
		Log:            logging.OrDefault(log).WithField("deployment", unit.String()),
	}
}

// Configurator is one step of the configuration pipeline. Steps only ever add
// to what earlier steps built.
type Configurator interface {
	Configure(pc *PhaseContext, d *Description, c *Configuration) error
}

// ConfiguratorFunc adapts a function to Configurator
type ConfiguratorFunc func(pc *PhaseContext, d *Description, c *Configuration) error

// Configure implements Configurator
func (f ConfiguratorFunc) Configure(pc *PhaseContext, d *Description, c *Configuration) error {
	return f(pc, d, c)
}

// ViewConfigurator is a pipeline step for one view
type ViewConfigurator interface {
	ConfigureView(pc *PhaseContext, c *Configuration, vd *ViewDescription, vc *ViewConfiguration) error
}

// ViewConfiguratorFunc adapts a function to ViewConfigurator
type ViewConfiguratorFunc func(pc *PhaseContext, c *Configuration, vd *ViewDescription, vc *ViewConfiguration) error

// ConfigureView implements ViewConfigurator
func (f ViewConfiguratorFunc) ConfigureView(pc *PhaseContext, c *Configuration, vd *ViewDescription, vc *ViewConfiguration) error {
	return f(pc, c, vd, vc)
}

// DependencyConfigurator adds start dependencies to the component service
type DependencyConfigurator func(b *service.Builder)

// Factory creates the runtime component from a frozen configuration
type Factory func(c *Configuration, env *Environment) (Component, error)

// Configuration is the resolved counterpart of a Description. It is built once by
// the configurator pipeline and frozen before any component is created from it.
type Configuration struct {
	description *Description
	classConfig *ClassConfiguration

	postConstruct *interceptor.Deque
	preDestroy    *interceptor.Deque
	methodDeques  map[classes.MethodIdentifier]*interceptor.Deque
	methods       []*classes.Method

	startDependencies []DependencyConfigurator
	views             []*ViewConfiguration
	bindings          []BindingConfiguration
	instanceFactory   classes.Constructor
	loader            *classes.Loader
	frozen            bool
}

// CreateConfiguration resolves the component class and returns an empty
// configuration ready for the pipeline
func (d *Description) CreateConfiguration(mc *ModuleConfiguration) (*Configuration, error) {
	cc, err := mc.ClassConfiguration(d.className)
	if err != nil {
		return nil, err
	}
	c := &Configuration{
		description:   d,
		classConfig:   cc,
		postConstruct: interceptor.NewDeque(d.name + " post-construct"),
		preDestroy:    interceptor.NewDeque(d.name + " pre-destroy"),
		methodDeques:  make(map[classes.MethodIdentifier]*interceptor.Deque),
		loader:        cc.Class.Loader(),
	}
	for _, m := range cc.Class.Methods() {
		c.ComponentInterceptorDeque(m)
	}
	return c, nil
}

// Configure builds the configuration of d by running its configurators in queue
// order, then the configurators of every view. Any failure is reported as a
// deployment error for this component only.
func Configure(pc *PhaseContext, d *Description, mc *ModuleConfiguration) (*Configuration, error) {
	c, err := d.CreateConfiguration(mc)
	if err != nil {
		return nil, errors.WrapDeploymentError(d.name, pc.DeploymentUnit.String(), err)
	}
	if c.loader == nil {
		c.loader = pc.Loader
	}

	for _, step := range d.configurators {
		if err := step.Configure(pc, d, c); err != nil {
			return nil, asDeploymentError(d, pc, err)
		}
	}
	for i, vd := range d.views {
		vc := c.views[i]
		for _, step := range vd.Configurators {
			if err := step.ConfigureView(pc, c, vd, vc); err != nil {
				return nil, asDeploymentError(d, pc, err)
			}
		}
	}

	c.Freeze()
	pc.Log.WithField("component", d.name).
		WithField("methods", len(c.methods)).
		WithField("views", len(c.views)).
		Debug("component configured")
	return c, nil
}

func asDeploymentError(d *Description, pc *PhaseContext, err error) error {
	if errors.HasCode(err, errors.DeploymentErrorCode) {
		return err
	}
	return errors.WrapDeploymentError(d.name, pc.DeploymentUnit.String(), err)
}

// Description returns the source description
func (c *Configuration) Description() *Description { return c.description }

// ComponentName returns the component name
func (c *Configuration) ComponentName() string { return c.description.name }

// ComponentClass returns the resolved implementation class
func (c *Configuration) ComponentClass() *classes.Class { return c.classConfig.Class }

// ClassConfiguration returns the resolved class with its description
func (c *Configuration) ClassConfiguration() *ClassConfiguration { return c.classConfig }

// ModuleConfiguration returns the module the component belongs to
func (c *Configuration) ModuleConfiguration() *ModuleConfiguration { return c.classConfig.Module }

// ClassLoader returns the loader made active around lifecycle and invocation chains
func (c *Configuration) ClassLoader() *classes.Loader { return c.loader }

// PostConstructInterceptors returns the post-construct deque
func (c *Configuration) PostConstructInterceptors() *interceptor.Deque { return c.postConstruct }

// PreDestroyInterceptors returns the pre-destroy deque
func (c *Configuration) PreDestroyInterceptors() *interceptor.Deque { return c.preDestroy }

// ComponentInterceptorDeque returns the deque of a component method, defining the
// method on first use
func (c *Configuration) ComponentInterceptorDeque(m *classes.Method) *interceptor.Deque {
	if d, ok := c.methodDeques[m.ID]; ok {
		return d
	}
	if c.frozen {
		panic("component: configuration of " + c.description.name + " is frozen")
	}
	d := interceptor.NewDeque(c.description.name + " " + m.ID.String())
	c.methodDeques[m.ID] = d
	c.methods = append(c.methods, m)
	return d
}

// DefinedComponentMethods returns the component methods in definition order
func (c *Configuration) DefinedComponentMethods() []*classes.Method {
	return append([]*classes.Method(nil), c.methods...)
}

// ComponentMethod returns a defined component method by identifier
func (c *Configuration) ComponentMethod(id classes.MethodIdentifier) (*classes.Method, bool) {
	for _, m := range c.methods {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// AddStartDependency registers a callback run against the component service builder
func (c *Configuration) AddStartDependency(dc DependencyConfigurator) {
	c.checkMutable()
	c.startDependencies = append(c.startDependencies, dc)
}

// StartDependencies returns the start dependency callbacks
func (c *Configuration) StartDependencies() []DependencyConfigurator {
	return append([]DependencyConfigurator(nil), c.startDependencies...)
}

// Views returns the view configurations, one per view description
func (c *Configuration) Views() []*ViewConfiguration {
	return append([]*ViewConfiguration(nil), c.views...)
}

// View returns the view configuration for a view class name
func (c *Configuration) View(className string) (*ViewConfiguration, bool) {
	for _, v := range c.views {
		if v.viewClass.Name == className {
			return v, true
		}
	}
	return nil, false
}

// AddBinding registers a naming binding made when the component starts
func (c *Configuration) AddBinding(b BindingConfiguration) {
	c.checkMutable()
	c.bindings = append(c.bindings, b)
}

// Bindings returns the naming bindings
func (c *Configuration) Bindings() []BindingConfiguration {
	return append([]BindingConfiguration(nil), c.bindings...)
}

// EnvContextServiceName names the service providing the component's java:comp/env
func (c *Configuration) EnvContextServiceName() service.Name {
	if c.description.namingMode == UseComponent {
		return c.description.serviceName.Append("env")
	}
	return c.description.deploymentUnit.Append("module", "env")
}

// SetInstanceFactory overrides how the component object itself is created
func (c *Configuration) SetInstanceFactory(f classes.Constructor) {
	c.checkMutable()
	c.instanceFactory = f
}

// InstanceFactory returns the override, or nil to use the class constructor
func (c *Configuration) InstanceFactory() classes.Constructor { return c.instanceFactory }

// Freeze makes the configuration and all its deques read-only
func (c *Configuration) Freeze() {
	c.frozen = true
	c.postConstruct.Freeze()
	c.preDestroy.Freeze()
	for _, d := range c.methodDeques {
		d.Freeze()
	}
	for _, v := range c.views {
		v.freeze()
	}
}

// Frozen reports whether the pipeline has finished
func (c *Configuration) Frozen() bool { return c.frozen }

func (c *Configuration) checkMutable() {
	if c.frozen {
		panic("component: configuration of " + c.description.name + " is frozen")
	}
}

// ViewConfiguration holds the chains of one view
type ViewConfiguration struct {
	description   *ViewDescription
	viewClass     *classes.Class
	methodDeques  map[classes.MethodIdentifier]*interceptor.Deque
	methods       []*classes.Method
	postConstruct *interceptor.Deque
	preDestroy    *interceptor.Deque
}

func newViewConfiguration(vd *ViewDescription, viewClass *classes.Class) *ViewConfiguration {
	vc := &ViewConfiguration{
		description:   vd,
		viewClass:     viewClass,
		methodDeques:  make(map[classes.MethodIdentifier]*interceptor.Deque),
		postConstruct: interceptor.NewDeque(vd.ClassName + " view post-construct"),
		preDestroy:    interceptor.NewDeque(vd.ClassName + " view pre-destroy"),
	}
	for _, m := range viewClass.Methods() {
		vc.methods = append(vc.methods, m)
		vc.methodDeques[m.ID] = interceptor.NewDeque(vd.ClassName + " " + m.ID.String())
	}
	return vc
}

// Description returns the view description
func (v *ViewConfiguration) Description() *ViewDescription { return v.description }

// ViewClass returns the resolved view class
func (v *ViewConfiguration) ViewClass() *classes.Class { return v.viewClass }

// ServiceName returns the service the view is installed under
func (v *ViewConfiguration) ServiceName() service.Name { return v.description.ServiceName }

// Methods returns the view methods
func (v *ViewConfiguration) Methods() []*classes.Method {
	return append([]*classes.Method(nil), v.methods...)
}

// ViewInterceptorDeque returns the deque of a view method
func (v *ViewConfiguration) ViewInterceptorDeque(m *classes.Method) *interceptor.Deque {
	return v.methodDeques[m.ID]
}

// ViewPostConstructInterceptors returns the view post-construct deque
func (v *ViewConfiguration) ViewPostConstructInterceptors() *interceptor.Deque { return v.postConstruct }

// ViewPreDestroyInterceptors returns the view pre-destroy deque
func (v *ViewConfiguration) ViewPreDestroyInterceptors() *interceptor.Deque { return v.preDestroy }

func (v *ViewConfiguration) freeze() {
	v.postConstruct.Freeze()
	v.preDestroy.Freeze()
	for _, d := range v.methodDeques {
		d.Freeze()
	}
}
