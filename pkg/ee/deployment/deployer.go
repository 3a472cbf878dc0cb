package deployment

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/logging"
	"github.com/toyz/eecore/internal/utils"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/naming"
	"github.com/toyz/eecore/pkg/ee/service"
)

// Observer is told about finished deployments
type Observer interface {
	ObserveDeployment(unit string, components, failed int, took time.Duration)
}

// Option configures a Deployer
type Option func(*Deployer)

// WithLogger sets the deployer logger
func WithLogger(log *logrus.Entry) Option {
	return func(d *Deployer) { d.log = log }
}

// WithGlobalContext shares an existing java:global context
func WithGlobalContext(global *naming.Context) Option {
	return func(d *Deployer) { d.global = global }
}

// WithParallelism bounds how many components are configured at once
func WithParallelism(n int) Option {
	return func(d *Deployer) {
		if n > 0 {
			d.parallelism = n
		}
	}
}

// WithObserver reports deployments to o
func WithObserver(o Observer) Option {
	return func(d *Deployer) { d.observer = o }
}

// Deployer installs deployment units into a service container. It is the
// explicit registry of what is deployed.
type Deployer struct {
	services    *service.Container
	global      *naming.Context
	log         *logrus.Entry
	parallelism int
	observer    Observer

	mu          sync.Mutex
	apps        map[string]*naming.Context
	deployments *utils.BaseRegistry[service.Name, *Deployment]
}

// NewDeployer creates a deployer backed by services
func NewDeployer(services *service.Container, opts ...Option) *Deployer {
	d := &Deployer{
		services:    services,
		parallelism: runtime.GOMAXPROCS(0),
		apps:        make(map[string]*naming.Context),
		deployments: utils.NewBaseRegistry[service.Name, *Deployment]("deployments", "unit", "deployment"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logging.OrDefault(d.log).WithField("subsystem", "deployer")
	if d.global == nil {
		d.global = naming.NewContext(naming.GlobalPrefix)
	}
	d.deployments.SetValidator(func(key service.Name, _ *Deployment, existing map[service.Name]*Deployment) error {
		if _, ok := existing[key]; ok {
			return fmt.Errorf("unit %s is already deployed", key)
		}
		return nil
	})
	return d
}

// Services returns the backing service container
func (d *Deployer) Services() *service.Container { return d.services }

// GlobalContext returns the java:global context
func (d *Deployer) GlobalContext() *naming.Context { return d.global }

// Deployment returns a deployed unit
func (d *Deployer) Deployment(name service.Name) (*Deployment, bool) {
	return d.deployments.Get(name)
}

// Deployments returns the deployed units sorted by name
func (d *Deployer) Deployments() []*Deployment {
	names := utils.SortedKeys(d.deployments)
	out := make([]*Deployment, 0, len(names))
	for _, n := range names {
		if dep, ok := d.deployments.Get(n); ok {
			out = append(out, dep)
		}
	}
	return out
}

func (d *Deployer) appContext(name string) *naming.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ctx, ok := d.apps[name]; ok {
		return ctx
	}
	ctx := naming.NewContext(naming.AppPrefix)
	d.apps[name] = ctx
	return ctx
}

// Deploy configures every component of unit, installs the services behind them
// and starts them. A component that fails is reported in the returned error and
// left out; the deployment itself is returned whenever the unit is valid.
func (d *Deployer) Deploy(ctx context.Context, unit *Unit) (*Deployment, error) {
	if err := unit.Validate(); err != nil {
		return nil, err
	}
	began := time.Now()
	log := d.log.WithField("deployment", unit.Name.String())

	dep := &Deployment{
		id:       uuid.NewString(),
		unit:     unit,
		deployed: began,
		module:   naming.NewContext(naming.ModulePrefix),
		services: d.services,
		entries:  make(map[string]*entry, len(unit.Components)),
	}
	for _, desc := range unit.Components {
		dep.entries[desc.Name()] = &entry{description: desc}
		dep.order = append(dep.order, desc.Name())
	}
	if err := d.deployments.Register(unit.Name, dep); err != nil {
		return nil, errors.WrapRegisterError("deployment", unit.Name.String(), err)
	}

	d.configure(ctx, unit, dep, log)

	if err := d.install(unit, dep); err != nil {
		d.deployments.Delete(unit.Name)
		return nil, err
	}
	if err := d.services.Start(ctx); err != nil {
		log.WithError(err).Debug("service start reported failures")
	}

	var failures *errors.MultipleErrors
	failed := 0
	for _, st := range dep.Status() {
		if st.State == service.StateUp.String() {
			continue
		}
		failed++
		dep.mu.RLock()
		cause := dep.entries[st.Name].err
		dep.mu.RUnlock()
		if cause == nil {
			_, cause = d.services.State(dep.entries[st.Name].description.ServiceName())
		}
		if cause == nil {
			cause = fmt.Errorf("component is %s", st.State)
		}
		errors.AddToMultiple(&failures, asDeploymentError(st.Name, unit.Name, cause))
	}

	took := time.Since(began)
	log.WithFields(logrus.Fields{
		"components": len(unit.Components),
		"failed":     failed,
		"took":       took,
	}).Info("unit deployed")
	if d.observer != nil {
		d.observer.ObserveDeployment(unit.Name.String(), len(unit.Components), failed, took)
	}
	return dep, failures.ErrorOrNil()
}

// configure runs the configurator pipeline of every component concurrently.
// Failures are recorded on the component entry.
func (d *Deployer) configure(ctx context.Context, unit *Unit, dep *Deployment, log *logrus.Entry) {
	pc := component.NewPhaseContext(ctx, unit.Name, unit.Loader, log)
	mc := component.NewModuleConfiguration(unit.Module, unit.Loader)

	// local refs add bindings to the descriptions, which configuration reads
	for _, desc := range unit.Components {
		if err := unit.applyLocalRefs(desc, dep); err != nil {
			dep.fail(desc.Name(), err)
		}
	}

	var g errgroup.Group
	g.SetLimit(d.parallelism)
	for _, desc := range unit.Components {
		e := dep.entries[desc.Name()]
		if e.err != nil {
			continue
		}
		g.Go(func() error {
			cfg, err := component.Configure(pc, desc, mc)
			if err != nil {
				log.WithError(err).WithField("component", desc.Name()).Error("component configuration failed")
				dep.fail(desc.Name(), err)
				return nil
			}
			dep.mu.Lock()
			e.config = cfg
			dep.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// install adds the env, component and view services of the configured components
func (d *Deployer) install(unit *Unit, dep *Deployment) error {
	app := d.appContext(unit.Module.ApplicationName)
	log := d.log.WithField("deployment", unit.Name.String())

	add := func(name service.Name, svc service.Service, deps ...service.Name) error {
		if err := d.services.AddService(name, svc).AddDependency(deps...).Install(); err != nil {
			return err
		}
		dep.installed = append(dep.installed, name)
		return nil
	}

	moduleEnv := unit.Name.Append("module", "env")
	if err := add(moduleEnv, newEnvService(moduleEnv.String())); err != nil {
		return err
	}

	for _, name := range dep.order {
		e := dep.entries[name]
		if e.err != nil || e.config == nil {
			continue
		}
		cfg := e.config
		e.envService = cfg.EnvContextServiceName()
		if e.envService != moduleEnv {
			if err := add(e.envService, newEnvService(e.envService.String())); err != nil {
				dep.fail(name, err)
				continue
			}
		}

		svc := &componentService{
			cfg:        cfg,
			envService: e.envService,
			global:     d.global,
			app:        app,
			module:     dep.module,
			log:        log,
		}
		b := d.services.AddService(cfg.Description().ServiceName(), svc).AddDependency(e.envService)
		for _, dc := range cfg.StartDependencies() {
			dc(b)
		}
		if err := b.Install(); err != nil {
			dep.fail(name, err)
			continue
		}
		dep.installed = append(dep.installed, cfg.Description().ServiceName())

		for _, vc := range cfg.Views() {
			vs := &viewService{
				component: cfg.Description().ServiceName(),
				viewClass: vc.ViewClass().Name,
				module:    dep.module,
			}
			if err := add(vc.ServiceName(), vs, cfg.Description().ServiceName()); err != nil {
				log.WithError(err).WithField("view", vc.ViewClass().Name).Warn("view service not installed")
			}
		}
	}
	return nil
}

// Undeploy stops and removes every service of the unit, dependents first.
// Failures are collected; they never stop the rest of the teardown.
func (d *Deployer) Undeploy(ctx context.Context, name service.Name) error {
	dep, ok := d.deployments.Get(name)
	if !ok {
		return errors.IllegalStatef("undeploy", "unit %s is not deployed", name)
	}

	var failures *errors.MultipleErrors
	for i := len(dep.installed) - 1; i >= 0; i-- {
		if err := d.services.Remove(ctx, dep.installed[i]); err != nil {
			errors.AddToMultiple(&failures, errors.NewCleanupError("service "+dep.installed[i].String(), err))
		}
	}
	d.deployments.Delete(name)
	d.log.WithField("deployment", name.String()).Info("unit undeployed")
	return failures.ErrorOrNil()
}

// Shutdown undeploys every unit concurrently and returns all failures
func (d *Deployer) Shutdown(ctx context.Context) error {
	var (
		mu       sync.Mutex
		failures *errors.MultipleErrors
		g        errgroup.Group
	)
	for _, dep := range d.Deployments() {
		name := dep.Name()
		g.Go(func() error {
			if err := d.Undeploy(ctx, name); err != nil {
				mu.Lock()
				errors.AddToMultiple(&failures, errors.NewCleanupError("deployment "+name.String(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures.ErrorOrNil()
}

// StopComponent stops a component together with every service depending on it
func (d *Deployer) StopComponent(ctx context.Context, unit service.Name, name string) error {
	e, err := d.entry(unit, name)
	if err != nil {
		return err
	}
	return d.services.StopService(ctx, e.description.ServiceName())
}

// StartComponent starts a stopped component with a fresh instance set. Services
// stopped along with it are started too.
func (d *Deployer) StartComponent(ctx context.Context, unit service.Name, name string) error {
	e, err := d.entry(unit, name)
	if err != nil {
		return err
	}
	if err := d.services.Start(ctx); err != nil {
		d.log.WithError(err).Debug("service start reported failures")
	}
	state, cause := d.services.State(e.description.ServiceName())
	if state != service.StateUp {
		if cause == nil {
			cause = fmt.Errorf("component is %s", state)
		}
		return asDeploymentError(name, unit, cause)
	}
	return nil
}

func (d *Deployer) entry(unit service.Name, name string) (*entry, error) {
	dep, ok := d.deployments.Get(unit)
	if !ok {
		return nil, errors.IllegalStatef("lookup", "unit %s is not deployed", unit)
	}
	dep.mu.RLock()
	defer dep.mu.RUnlock()
	e, ok := dep.entries[name]
	if !ok {
		return nil, errors.IllegalStatef("lookup", "unit %s has no component %s", unit, name)
	}
	if e.config == nil {
		return nil, errors.IllegalStatef("lookup", "component %s of %s was not deployed", name, unit)
	}
	return e, nil
}

func asDeploymentError(componentName string, unit service.Name, err error) errors.ContainerError {
	if errors.HasCode(err, errors.DeploymentErrorCode) {
		if ce, ok := err.(errors.ContainerError); ok {
			return ce
		}
	}
	return errors.WrapDeploymentError(componentName, unit.String(), err)
}
