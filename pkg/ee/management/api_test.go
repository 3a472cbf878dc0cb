package management_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/toyz/eecore/internal/logging"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/deployment"
	"github.com/toyz/eecore/pkg/ee/ejb"
	"github.com/toyz/eecore/pkg/ee/management"
	"github.com/toyz/eecore/pkg/ee/management/adapters"
	"github.com/toyz/eecore/pkg/ee/metrics"
	"github.com/toyz/eecore/pkg/ee/service"
)

const (
	counterClass = "bank.Counter"
	counterView  = "bank.CounterLocal"
	unitName     = "deployment.ledger"
)

var incrementID = classes.NewMethodIdentifier("int", "increment")

type counter struct{ n atomic.Int64 }

func newUnit() *deployment.Unit {
	class := classes.NewClass(counterClass, func() (any, error) { return &counter{}, nil }).
		Declare(incrementID, func(target any, _ classes.Invocation) (any, error) {
			return target.(*counter).n.Add(1), nil
		})
	loader := classes.NewLoader("ledger", nil).MustDefine(class,
		classes.NewInterface(counterView).Declare(incrementID, nil))

	md := component.NewModuleDescription("bank", "ledger")
	u := deployment.NewUnit(md, loader)
	pooled := ejb.Describe(ejb.KindStateless, "Counter", counterClass, md, u.Name, ejb.Options{
		Pool: ejb.PoolSettings{MaxSize: 4},
	})
	ejb.AddView(pooled, counterView)
	session := ejb.Describe(ejb.KindStateful, "Session", counterClass, md, u.Name, ejb.Options{})
	ejb.AddView(session, counterView)
	u.Components = append(u.Components, pooled, session)
	return u
}

type APITestSuite struct {
	suite.Suite
	engine   string
	deployer *deployment.Deployer
	server   management.Server
}

func (s *APITestSuite) SetupTest() {
	collector := metrics.NewCollector("mgmt")
	s.deployer = deployment.NewDeployer(service.NewContainer(logging.Discard()),
		deployment.WithLogger(logging.Discard()),
		deployment.WithObserver(collector))
	_, err := s.deployer.Deploy(context.Background(), newUnit())
	s.Require().NoError(err)

	s.server, err = adapters.New(s.engine)
	s.Require().NoError(err)
	management.NewAPI(s.deployer,
		management.WithLogger(logging.Discard()),
		management.WithMetrics(collector.Handler()),
	).Register(s.server)
}

func (s *APITestSuite) TearDownTest() {
	s.NoError(s.deployer.Shutdown(context.Background()))
}

func (s *APITestSuite) do(method, target string, out any) int {
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	if out != nil && rec.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (s *APITestSuite) TestHealthAndMetrics() {
	var health map[string]any
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/health", &health))
	s.Equal("ok", health["status"])
	s.EqualValues(1, health["units"])

	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `mgmt_deployment_total{result="ok"} 1`)
}

func (s *APITestSuite) TestListAndGetUnits() {
	var units []management.UnitSummary
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/units", &units))
	s.Require().Len(units, 1)
	s.Equal(unitName, units[0].Name)
	s.Equal("bank", units[0].Application)
	s.Len(units[0].Components, 2)

	var unit management.UnitSummary
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/units/"+unitName, &unit))
	s.Equal(units[0].ID, unit.ID)

	var problem map[string]any
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/units/deployment.nothing", &problem))
	s.Contains(problem["error"], "is not deployed")
}

func (s *APITestSuite) TestComponentDetail() {
	dep, _ := s.deployer.Deployment(unitName)
	counter, _ := dep.Component("Counter")
	_, err := counter.Invoke(context.Background(), counterView, incrementID, nil, nil)
	s.Require().NoError(err)

	var detail management.ComponentDetail
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/units/"+unitName+"/components/Counter", &detail))
	s.Equal("stateless", detail.Kind)
	s.Equal("UP", detail.State)
	s.Equal(1, detail.Instances)
	s.Nil(detail.Sessions)
	s.Require().NotNil(detail.Pool)
	s.EqualValues(4, detail.Pool.MaxSize)
	s.EqualValues(1, detail.Pool.Created)

	var stateful management.ComponentDetail
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/units/"+unitName+"/components/Session", &stateful))
	s.Equal("stateful", stateful.Kind)
	s.Require().NotNil(stateful.Sessions)
	s.Zero(*stateful.Sessions)
	s.Nil(stateful.Pool)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/units/"+unitName+"/components/Nobody", nil))
}

func (s *APITestSuite) TestPoolStats() {
	var stats map[string]any
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/units/"+unitName+"/components/Counter/pool", &stats))
	s.EqualValues(4, stats["max_size"])

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/units/"+unitName+"/components/Session/pool", nil))
}

func (s *APITestSuite) TestStopAndStartComponent() {
	var detail management.ComponentDetail
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/units/"+unitName+"/components/Counter/stop", &detail))
	s.Equal("DOWN", detail.State)
	s.Empty(detail.Kind)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/units/"+unitName+"/components/Counter/start", &detail))
	s.Equal("UP", detail.State)
	s.Equal("stateless", detail.Kind)

	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/units/"+unitName+"/components/Nobody/stop", nil))
}

func (s *APITestSuite) TestUndeploy() {
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/units/"+unitName, nil))
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/units/"+unitName, nil))
	_, ok := s.deployer.Deployment(unitName)
	s.False(ok)
}

func TestAPI(t *testing.T) {
	for _, engine := range adapters.Engines {
		t.Run(engine, func(t *testing.T) {
			suite.Run(t, &APITestSuite{engine: engine})
		})
	}
}
