package deployment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/logging"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/ejb"
	"github.com/toyz/eecore/pkg/ee/interceptor"
	"github.com/toyz/eecore/pkg/ee/service"
)

const (
	counterClass = "bank.Counter"
	counterView  = "bank.CounterLocal"
	tellerClass  = "bank.Teller"
	tellerView   = "bank.TellerLocal"
)

var (
	incrementID = classes.NewMethodIdentifier("int", "increment")
	depositID   = classes.NewMethodIdentifier("int", "deposit")
	cleanupID   = classes.VoidMethod("cleanup")
)

type counter struct{ n atomic.Int64 }

type teller struct{ Counter any }

type fixture struct {
	mu        sync.Mutex
	destroyed []string
	loader    *classes.Loader
}

func newFixture() *fixture {
	f := &fixture{}
	counterC := classes.NewClass(counterClass, func() (any, error) { return &counter{}, nil }).
		Declare(incrementID, func(target any, _ classes.Invocation) (any, error) {
			return target.(*counter).n.Add(1), nil
		}).
		DeclarePrivate(cleanupID, f.cleanup(counterClass))
	tellerC := classes.NewClass(tellerClass, func() (any, error) { return &teller{}, nil }).
		Declare(depositID, func(target any, inv classes.Invocation) (any, error) {
			view, ok := target.(*teller).Counter.(*component.View)
			if !ok {
				return nil, assert.AnError
			}
			return view.Invoke(inv.(*interceptor.Context).Context(), incrementID, nil, nil)
		}).
		DeclarePrivate(cleanupID, f.cleanup(tellerClass)).
		DeclareField("counter", func(target, v any) error {
			target.(*teller).Counter = v
			return nil
		})
	f.loader = classes.NewLoader("bank", nil).MustDefine(counterC, tellerC,
		classes.NewInterface(counterView).Declare(incrementID, nil),
		classes.NewInterface(tellerView).Declare(depositID, nil),
	)
	return f
}

func (f *fixture) cleanup(class string) classes.MethodFunc {
	return func(any, classes.Invocation) (any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.destroyed = append(f.destroyed, class)
		return nil, nil
	}
}

func (f *fixture) destroyedClasses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.destroyed...)
}

// unit builds a module with a Counter and a Teller that reaches the Counter
// through an ejb-local-ref
func (f *fixture) unit(module string, ref EJBLocalRef) *Unit {
	md := component.NewModuleDescription("bank", module)
	u := NewUnit(md, f.loader)

	for _, class := range []string{counterClass, tellerClass} {
		md.GetOrAddClass(class).PreDestroy = &cleanupID
	}
	md.GetOrAddClass(tellerClass).AddInjection("counter", component.LookupSource{Name: "java:comp/env/ejb/counter"})

	c := ejb.Describe(ejb.KindStateless, "Counter", counterClass, md, u.Name, ejb.Options{})
	ejb.AddView(c, counterView)
	t := ejb.Describe(ejb.KindStateless, "Teller", tellerClass, md, u.Name, ejb.Options{})
	ejb.AddView(t, tellerView)
	u.Components = append(u.Components, c, t)

	ref.Name = "ejb/counter"
	ref.Type = counterView
	u.AddLocalRef("Teller", ref)
	return u
}

func deposit(t *testing.T, dep *Deployment) any {
	t.Helper()
	c, ok := dep.Component("Teller")
	require.True(t, ok)
	got, err := c.Invoke(context.Background(), tellerView, depositID, nil, nil)
	require.NoError(t, err)
	return got
}

type DeployerTestSuite struct {
	suite.Suite
	f        *fixture
	services *service.Container
	deployer *Deployer
	ctx      context.Context
}

func (s *DeployerTestSuite) SetupTest() {
	s.f = newFixture()
	s.ctx = context.Background()
	s.services = service.NewContainer(logging.Discard())
	s.deployer = NewDeployer(s.services, WithLogger(logging.Discard()), WithParallelism(2))
}

func (s *DeployerTestSuite) TearDownTest() {
	s.NoError(s.deployer.Shutdown(s.ctx))
}

func (s *DeployerTestSuite) TestLocalRefResolution() {
	tests := []struct {
		name string
		ref  EJBLocalRef
	}{
		{name: "link", ref: EJBLocalRef{Link: "Counter"}},
		{name: "lookup", ref: EJBLocalRef{Lookup: "java:module/Counter!" + counterView}},
		{name: "lazy", ref: EJBLocalRef{}},
	}

	for i, tt := range tests {
		s.Run(tt.name, func() {
			u := s.f.unit("bank-"+tt.name, tt.ref)
			dep, err := s.deployer.Deploy(s.ctx, u)
			s.Require().NoError(err)

			s.Equal(int64(1), deposit(s.T(), dep))
			s.Equal(int64(2), deposit(s.T(), dep))
			s.Len(s.deployer.Deployments(), i+1)
		})
	}
}

func (s *DeployerTestSuite) TestLinkedViewStartsFirst() {
	dep, err := s.deployer.Deploy(s.ctx, s.f.unit("ordered", EJBLocalRef{Link: "Counter"}))
	s.Require().NoError(err)

	order := s.services.StartOrder()
	index := func(n service.Name) int {
		for i, name := range order {
			if name == n {
				return i
			}
		}
		return -1
	}
	view := dep.Name().Append("component", "Counter", "VIEW", counterView)
	teller := dep.Name().Append("component", "Teller")
	s.NotEqual(-1, index(view))
	s.Less(index(view), index(teller))
	s.Less(index(dep.Name().Append("module", "env")), index(dep.Name().Append("component", "Counter")))
}

func (s *DeployerTestSuite) TestFailingComponentIsIsolated() {
	u := s.f.unit("partial", EJBLocalRef{Link: "Counter"})
	broken := ejb.Describe(ejb.KindStateless, "Broken", "bank.Missing", u.Module, u.Name, ejb.Options{})
	u.Components = append(u.Components, broken)

	dep, err := s.deployer.Deploy(s.ctx, u)
	s.Require().Error(err)
	s.Require().NotNil(dep)
	s.True(errors.HasCode(err, errors.DeploymentErrorCode))
	s.Contains(err.Error(), "Broken")

	s.Equal(int64(1), deposit(s.T(), dep))
	status := map[string]ComponentStatus{}
	for _, st := range dep.Status() {
		status[st.Name] = st
	}
	s.Equal("FAILED", status["Broken"].State)
	s.NotEmpty(status["Broken"].Error)
	s.Equal("UP", status["Counter"].State)
	s.Equal([]string{counterView}, status["Counter"].Views)
}

func (s *DeployerTestSuite) TestInvalidLocalRefs() {
	tests := []struct {
		name    string
		ref     EJBLocalRef
		message string
	}{
		{name: "unknown type", ref: EJBLocalRef{Name: "ejb/x", Type: "bank.Nope", Link: "Counter"}, message: "could not load local interface type bank.Nope"},
		{name: "no type", ref: EJBLocalRef{Name: "ejb/x", Link: "Counter"}, message: "could not determine type"},
		{name: "both targets", ref: EJBLocalRef{Name: "ejb/x", Type: counterView, Link: "Counter", Lookup: "java:module/x"}, message: "sets both lookup and link"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			u := s.f.unit("refs-"+tt.name, EJBLocalRef{Link: "Counter"})
			u.LocalRefs["Counter"] = []EJBLocalRef{tt.ref}

			dep, err := s.deployer.Deploy(s.ctx, u)
			s.Require().Error(err)
			s.Contains(err.Error(), tt.message)
			_, ok := dep.Component("Counter")
			s.False(ok)
			_, ok = dep.Component("Teller")
			s.False(ok, "the teller depends on the failed counter view")
		})
	}
}

func (s *DeployerTestSuite) TestUndeployDestroysInstancesAndAllowsRedeploy() {
	u := s.f.unit("cycle", EJBLocalRef{Link: "Counter"})
	dep, err := s.deployer.Deploy(s.ctx, u)
	s.Require().NoError(err)
	deposit(s.T(), dep)

	s.Require().NoError(s.deployer.Undeploy(s.ctx, u.Name))
	s.ElementsMatch([]string{counterClass, tellerClass}, s.f.destroyedClasses())
	_, ok := s.deployer.Deployment(u.Name)
	s.False(ok)
	s.True(errors.HasCode(s.deployer.Undeploy(s.ctx, u.Name), errors.IllegalStateErrorCode))

	dep, err = s.deployer.Deploy(s.ctx, s.f.unit("cycle", EJBLocalRef{Link: "Counter"}))
	s.Require().NoError(err)
	s.Equal(int64(1), deposit(s.T(), dep), "redeploy starts from fresh instances")
}

func (s *DeployerTestSuite) TestDuplicateDeploy() {
	u := s.f.unit("twice", EJBLocalRef{Link: "Counter"})
	_, err := s.deployer.Deploy(s.ctx, u)
	s.Require().NoError(err)
	_, err = s.deployer.Deploy(s.ctx, u)
	s.True(errors.HasCode(err, errors.RegistrationErrorCode))
}

func (s *DeployerTestSuite) TestStopAndStartComponent() {
	u := s.f.unit("admin", EJBLocalRef{Link: "Counter"})
	dep, err := s.deployer.Deploy(s.ctx, u)
	s.Require().NoError(err)
	s.Equal(int64(1), deposit(s.T(), dep))

	s.Require().NoError(s.deployer.StopComponent(s.ctx, u.Name, "Counter"))
	_, ok := dep.Component("Counter")
	s.False(ok)
	_, ok = dep.Component("Teller")
	s.False(ok, "dependents stop with the component")

	s.Require().NoError(s.deployer.StartComponent(s.ctx, u.Name, "Counter"))
	s.Require().NoError(s.deployer.StartComponent(s.ctx, u.Name, "Teller"))
	s.Equal(int64(1), deposit(s.T(), dep))

	s.True(errors.HasCode(s.deployer.StopComponent(s.ctx, u.Name, "Nobody"), errors.IllegalStateErrorCode))
}

func (s *DeployerTestSuite) TestComponentNamingMode() {
	u := s.f.unit("own-ns", EJBLocalRef{Link: "Counter"})
	u.Components[1].SetNamingMode(component.UseComponent)

	dep, err := s.deployer.Deploy(s.ctx, u)
	s.Require().NoError(err)
	env := u.Components[1].ServiceName().Append("env")
	state, _ := s.services.State(env)
	s.Equal(service.StateUp, state)
	s.Equal(int64(1), deposit(s.T(), dep))

	teller, _ := dep.Component("Teller")
	v, err := teller.Environment().Naming.Lookup(s.ctx, "ejb/counter")
	s.Require().NoError(err)
	s.IsType(&component.View{}, v)

	counter, _ := dep.Component("Counter")
	_, err = counter.Environment().Naming.Lookup(s.ctx, "ejb/counter")
	s.Error(err, "the counter does not share the teller's namespace")
}

func TestDeployerSuite(t *testing.T) {
	suite.Run(t, new(DeployerTestSuite))
}

func TestUnitValidate(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name    string
		mutate  func(u *Unit)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Unit) {}},
		{name: "no name", mutate: func(u *Unit) { u.Name = "" }, wantErr: true},
		{name: "no loader", mutate: func(u *Unit) { u.Loader = nil }, wantErr: true},
		{name: "duplicate component", mutate: func(u *Unit) {
			u.Components = append(u.Components, u.Components[0])
		}, wantErr: true},
		{name: "foreign component", mutate: func(u *Unit) {
			u.Components = append(u.Components,
				ejb.Describe(ejb.KindStateless, "Other", counterClass, u.Module, "deployment.other", ejb.Options{}))
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := f.unit("validate", EJBLocalRef{Link: "Counter"})
			tt.mutate(u)
			err := u.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

type countingObserver struct {
	units, failed int
}

func (o *countingObserver) ObserveDeployment(_ string, _ int, failed int, _ time.Duration) {
	o.units++
	o.failed += failed
}

func TestDeployReportsToObserver(t *testing.T) {
	f := newFixture()
	obs := &countingObserver{}
	d := NewDeployer(service.NewContainer(logging.Discard()), WithLogger(logging.Discard()), WithObserver(obs))
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })

	_, err := d.Deploy(context.Background(), f.unit("observed", EJBLocalRef{Link: "Counter"}))
	require.NoError(t, err)

	u := f.unit("observed-broken", EJBLocalRef{Link: "Missing"})
	_, err = d.Deploy(context.Background(), u)
	require.Error(t, err)

	assert.Equal(t, 2, obs.units)
	assert.Equal(t, 1, obs.failed, "only the teller depends on the missing view")
}
