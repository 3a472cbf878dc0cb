package deployment

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/naming"
	"github.com/toyz/eecore/pkg/ee/service"
)

// ComponentStatus summarizes one component of a deployment
type ComponentStatus struct {
	Name    string   `json:"name"`
	Class   string   `json:"class"`
	Service string   `json:"service"`
	State   string   `json:"state"`
	Views   []string `json:"views,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// entry tracks one component through configuration and start
type entry struct {
	description *component.Description
	config      *component.Configuration
	err         error
	envService  service.Name
}

// Deployment is a deployed unit
type Deployment struct {
	id        string
	unit      *Unit
	deployed  time.Time
	module    *naming.Context
	services  *service.Container
	installed []service.Name

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// ID returns the deployment id assigned at deploy time
func (d *Deployment) ID() string { return d.id }

// Name returns the unit service name
func (d *Deployment) Name() service.Name { return d.unit.Name }

// Unit returns the deployed unit
func (d *Deployment) Unit() *Unit { return d.unit }

// DeployedAt returns when the unit was deployed
func (d *Deployment) DeployedAt() time.Time { return d.deployed }

// ModuleContext returns the java:module context of the unit
func (d *Deployment) ModuleContext() *naming.Context { return d.module }

// ComponentNames returns the component names in declaration order
func (d *Deployment) ComponentNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.order...)
}

// Component returns the running component with the given name
func (d *Deployment) Component(name string) (component.Component, bool) {
	d.mu.RLock()
	e, ok := d.entries[name]
	d.mu.RUnlock()
	if !ok || e.config == nil {
		return nil, false
	}
	v, err := d.services.Value(e.description.ServiceName())
	if err != nil {
		return nil, false
	}
	c, ok := v.(component.Component)
	return c, ok
}

// Components returns the running components in declaration order
func (d *Deployment) Components() []component.Component {
	var out []component.Component
	for _, name := range d.ComponentNames() {
		if c, ok := d.Component(name); ok {
			out = append(out, c)
		}
	}
	return out
}

// Status reports every component of the unit, including those that failed
func (d *Deployment) Status() []ComponentStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ComponentStatus, 0, len(d.order))
	for _, name := range d.order {
		e := d.entries[name]
		st := ComponentStatus{
			Name:    name,
			Class:   e.description.ClassName(),
			Service: e.description.ServiceName().String(),
		}
		for _, vd := range e.description.Views() {
			st.Views = append(st.Views, vd.ClassName)
		}
		switch {
		case e.err != nil:
			st.State = "FAILED"
			st.Error = e.err.Error()
		default:
			state, cause := d.services.State(e.description.ServiceName())
			st.State = state.String()
			if cause != nil {
				st.Error = cause.Error()
			}
		}
		out = append(out, st)
	}
	return out
}

// viewByClass returns the only running view of viewClass in the unit
func (d *Deployment) viewByClass(viewClass string) (*component.View, error) {
	var found []*component.View
	for _, c := range d.Components() {
		if v, ok := c.View(viewClass); ok {
			found = append(found, v)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: no view of type %s in %s", naming.ErrNameNotFound, viewClass, d.unit.Name)
	case 1:
		return found[0], nil
	default:
		names := make([]string, 0, len(found))
		for _, v := range found {
			names = append(names, v.Component().Name())
		}
		sort.Strings(names)
		return nil, fmt.Errorf("view type %s in %s is ambiguous, implemented by %v", viewClass, d.unit.Name, names)
	}
}

func (d *Deployment) fail(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[name]; ok && e.err == nil {
		e.err = err
	}
}
