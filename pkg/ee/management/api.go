// Package management exposes deployed units and their components over HTTP.
// Routes are registered on a Server, which adapters implement for echo, gin
// and fiber.
package management

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/logging"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/deployment"
	"github.com/toyz/eecore/pkg/ee/ejb"
	"github.com/toyz/eecore/pkg/ee/pool"
	"github.com/toyz/eecore/pkg/ee/service"
)

// UnitSummary describes one deployed unit
type UnitSummary struct {
	Name        string                       `json:"name"`
	ID          string                       `json:"id"`
	Application string                       `json:"application"`
	Module      string                       `json:"module"`
	DeployedAt  time.Time                    `json:"deployed_at"`
	Components  []deployment.ComponentStatus `json:"components"`
}

// ComponentDetail is the status of a component plus what its kind exposes
type ComponentDetail struct {
	deployment.ComponentStatus
	Kind      string      `json:"kind,omitempty"`
	Instances int         `json:"instances"`
	Sessions  *int        `json:"sessions,omitempty"`
	Pool      *pool.Stats `json:"pool,omitempty"`
}

// Option configures an API
type Option func(*API)

// WithLogger sets the request logger
func WithLogger(log *logrus.Entry) Option {
	return func(a *API) { a.log = log }
}

// WithMetrics serves h at /metrics
func WithMetrics(h http.Handler) Option {
	return func(a *API) { a.metrics = h }
}

// API serves the management endpoints of a deployer
type API struct {
	deployer *deployment.Deployer
	log      *logrus.Entry
	metrics  http.Handler
}

// NewAPI creates the management API for deployer
func NewAPI(deployer *deployment.Deployer, opts ...Option) *API {
	a := &API{deployer: deployer}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logging.OrDefault(a.log).WithField("subsystem", "management")
	return a
}

// Register installs the routes on s
func (a *API) Register(s Server) {
	s.Use(RequestLogger(a.log))
	s.RegisterRoute(http.MethodGet, "/health", a.health)
	if a.metrics != nil {
		s.Mount("/metrics", a.metrics)
	}

	units := s.RegisterGroup("/units")
	units.RegisterRoute(http.MethodGet, "", a.listUnits)
	units.RegisterRoute(http.MethodGet, "/{unit}", a.getUnit)
	units.RegisterRoute(http.MethodDelete, "/{unit}", a.undeploy)
	units.RegisterRoute(http.MethodGet, "/{unit}/components/{component}", a.getComponent)
	units.RegisterRoute(http.MethodGet, "/{unit}/components/{component}/pool", a.getPool)
	units.RegisterRoute(http.MethodPost, "/{unit}/components/{component}/stop", a.stopComponent)
	units.RegisterRoute(http.MethodPost, "/{unit}/components/{component}/start", a.startComponent)
}

// RequestLogger logs every request at debug level and failed ones at warn
func RequestLogger(log *logrus.Entry) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c RequestContext) error {
			began := time.Now()
			err := next(c)
			failure := err
			if failure == nil {
				failure, _ = c.Get(ErrorKey).(error)
			}
			entry := log.WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
				"remote": c.RealIP(),
				"took":   time.Since(began),
			})
			if failure != nil {
				entry.WithError(failure).Warn("management request failed")
			} else {
				entry.Debug("management request")
			}
			return err
		}
	}
}

func (a *API) health(c RequestContext) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"units":  len(a.deployer.Deployments()),
	})
}

func (a *API) listUnits(c RequestContext) error {
	deps := a.deployer.Deployments()
	out := make([]UnitSummary, 0, len(deps))
	for _, dep := range deps {
		out = append(out, summarize(dep))
	}
	return c.JSON(http.StatusOK, out)
}

func (a *API) getUnit(c RequestContext) error {
	dep, err := a.deployment(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summarize(dep))
}

func (a *API) undeploy(c RequestContext) error {
	dep, err := a.deployment(c)
	if err != nil {
		return err
	}
	if err := a.deployer.Undeploy(c.Context(), dep.Name()); err != nil {
		return asHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *API) getComponent(c RequestContext) error {
	dep, err := a.deployment(c)
	if err != nil {
		return err
	}
	detail, err := describe(dep, c.Param("component"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

func (a *API) getPool(c RequestContext) error {
	dep, err := a.deployment(c)
	if err != nil {
		return err
	}
	name := c.Param("component")
	comp, ok := dep.Component(name)
	if !ok {
		return NewHTTPError(http.StatusNotFound, "component "+name+" is not running")
	}
	pooled, ok := comp.(ejb.Poolable)
	if !ok {
		return NewHTTPError(http.StatusBadRequest, "component "+name+" is not pooled")
	}
	return c.JSON(http.StatusOK, pooled.Pool().Stats())
}

func (a *API) stopComponent(c RequestContext) error {
	dep, err := a.deployment(c)
	if err != nil {
		return err
	}
	if err := a.deployer.StopComponent(c.Context(), dep.Name(), c.Param("component")); err != nil {
		return asHTTPError(err)
	}
	return a.getComponent(c)
}

func (a *API) startComponent(c RequestContext) error {
	dep, err := a.deployment(c)
	if err != nil {
		return err
	}
	if err := a.deployer.StartComponent(c.Context(), dep.Name(), c.Param("component")); err != nil {
		return asHTTPError(err)
	}
	return a.getComponent(c)
}

func (a *API) deployment(c RequestContext) (*deployment.Deployment, error) {
	name := service.Name(c.Param("unit"))
	dep, ok := a.deployer.Deployment(name)
	if !ok {
		return nil, NewHTTPError(http.StatusNotFound, "unit "+name.String()+" is not deployed")
	}
	return dep, nil
}

func summarize(dep *deployment.Deployment) UnitSummary {
	u := dep.Unit()
	return UnitSummary{
		Name:        dep.Name().String(),
		ID:          dep.ID(),
		Application: u.Module.ApplicationName,
		Module:      u.Module.ModuleName,
		DeployedAt:  dep.DeployedAt(),
		Components:  dep.Status(),
	}
}

func describe(dep *deployment.Deployment, name string) (*ComponentDetail, error) {
	var detail *ComponentDetail
	for _, st := range dep.Status() {
		if st.Name == name {
			detail = &ComponentDetail{ComponentStatus: st}
			break
		}
	}
	if detail == nil {
		return nil, NewHTTPError(http.StatusNotFound, "unit "+dep.Name().String()+" has no component "+name)
	}

	comp, ok := dep.Component(name)
	if !ok {
		return detail, nil
	}
	if bean, ok := comp.(ejb.Bean); ok {
		detail.Kind = bean.Kind().String()
	}
	if live, ok := comp.(interface{ LiveInstances() []*component.Instance }); ok {
		detail.Instances = len(live.LiveInstances())
	}
	if sessions, ok := comp.(interface{ Sessions() int }); ok {
		n := sessions.Sessions()
		detail.Sessions = &n
	}
	if pooled, ok := comp.(ejb.Poolable); ok {
		stats := pooled.Pool().Stats()
		detail.Pool = &stats
	}
	return detail, nil
}

// asHTTPError maps container errors onto status codes
func asHTTPError(err error) error {
	switch {
	case errors.HasCode(err, errors.IllegalStateErrorCode):
		return NewHTTPError(http.StatusNotFound, err.Error(), err)
	case errors.HasCode(err, errors.DeploymentErrorCode):
		return NewHTTPError(http.StatusConflict, err.Error(), err)
	default:
		return NewHTTPError(http.StatusInternalServerError, err.Error(), err)
	}
}
