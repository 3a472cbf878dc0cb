package component

import (
	"context"
	"fmt"

	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/interceptor"
	"github.com/toyz/eecore/pkg/ee/service"
)

// View is the started form of a view configuration: one chain per view method
type View struct {
	component  Component
	config     *ViewConfiguration
	chains     map[classes.MethodIdentifier]interceptor.Interceptor
	methods    map[classes.MethodIdentifier]*classes.Method
	preDestroy interceptor.Interceptor
}

func newView(ctx context.Context, owner Component, vc *ViewConfiguration) (*View, error) {
	fc := interceptor.NewFactoryContext()
	fc.Set(ComponentKey, owner)

	v := &View{
		component:  owner,
		config:     vc,
		chains:     make(map[classes.MethodIdentifier]interceptor.Interceptor, len(vc.methods)),
		methods:    make(map[classes.MethodIdentifier]*classes.Method, len(vc.methods)),
		preDestroy: vc.preDestroy.Create(fc),
	}
	for _, m := range vc.methods {
		v.chains[m.ID] = vc.methodDeques[m.ID].Create(fc)
		v.methods[m.ID] = m
	}

	ic := interceptor.NewContext(ctx)
	ic.SetPrivateData(ComponentKey, owner)
	if _, err := vc.postConstruct.Create(fc).Process(ic); err != nil {
		return nil, err
	}
	return v, nil
}

// ClassName returns the view class name
func (v *View) ClassName() string { return v.config.viewClass.Name }

// ServiceName returns the service the view is installed under
func (v *View) ServiceName() service.Name { return v.config.ServiceName() }

// Component returns the component behind the view
func (v *View) Component() Component { return v.component }

// Methods returns the view methods
func (v *View) Methods() []*classes.Method { return v.config.Methods() }

// Invoke runs a view method. data is stored as invocation private data, which
// is how callers pass metadata such as a session id or a pre-associated instance.
func (v *View) Invoke(ctx context.Context, method classes.MethodIdentifier, args []any, data map[any]any) (any, error) {
	chain, ok := v.chains[method]
	if !ok {
		return nil, fmt.Errorf("view %s has no method %s", v.ClassName(), method)
	}
	ic := interceptor.NewContext(ctx)
	ic.SetPrivateData(ComponentKey, v.component)
	for k, val := range data {
		ic.SetPrivateData(k, val)
	}
	ic.SetMethod(v.methods[method])
	ic.SetParameters(args)
	return chain.Process(ic)
}

func (v *View) destroy(ctx context.Context) error {
	ic := interceptor.NewContext(ctx)
	ic.SetPrivateData(ComponentKey, v.component)
	_, err := v.preDestroy.Process(ic)
	return err
}
