package cli

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/toyz/eecore/internal/config"
	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/logging"
	"github.com/toyz/eecore/internal/merge"
	"github.com/toyz/eecore/internal/metadata"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/deployment"
	"github.com/toyz/eecore/pkg/ee/ejb"
	"github.com/toyz/eecore/pkg/ee/management"
	"github.com/toyz/eecore/pkg/ee/management/adapters"
	"github.com/toyz/eecore/pkg/ee/metrics"
	"github.com/toyz/eecore/pkg/ee/service"
)

// ShutdownTimeout bounds how long Run waits for the server and the
// deployments to stop
const ShutdownTimeout = 30 * time.Second

// Runtime hosts deployments built from metadata, plus the management API
type Runtime struct {
	cfg      *config.Config
	log      *logrus.Entry
	metrics  *metrics.Collector
	deployer *deployment.Deployer
	server   management.Server
}

// RuntimeOption tunes a Runtime
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	logOutput io.Writer
}

// WithLogOutput sends runtime logs to w instead of stderr
func WithLogOutput(w io.Writer) RuntimeOption {
	return func(o *runtimeOptions) { o.logOutput = w }
}

// NewRuntime wires a runtime from cfg. The management server is created but
// not started.
func NewRuntime(cfg *config.Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o runtimeOptions
	for _, opt := range opts {
		opt(&o)
	}

	log := logrus.NewEntry(logging.New(o.logOutput, cfg.LogLevel))
	r := &Runtime{cfg: cfg, log: log}

	deployerOpts := []deployment.Option{
		deployment.WithLogger(log),
		deployment.WithParallelism(cfg.Deployment.Parallelism),
	}
	if cfg.Management.Metrics {
		r.metrics = metrics.NewCollector(cfg.Management.Namespace)
		deployerOpts = append(deployerOpts, deployment.WithObserver(r.metrics))
	}
	r.deployer = deployment.NewDeployer(service.NewContainer(log), deployerOpts...)

	if cfg.Management.Enabled {
		server, err := adapters.New(cfg.Management.Engine)
		if err != nil {
			return nil, errors.Wrap(errors.ConfigurationErrorCode, err.Error(), err)
		}
		apiOpts := []management.Option{management.WithLogger(log)}
		if r.metrics != nil {
			apiOpts = append(apiOpts, management.WithMetrics(r.metrics.Handler()))
		}
		management.NewAPI(r.deployer, apiOpts...).Register(server)
		r.server = server
	}
	return r, nil
}

// Logger returns the runtime logger
func (r *Runtime) Logger() *logrus.Entry { return r.log }

// Deployer returns the deployer behind the runtime
func (r *Runtime) Deployer() *deployment.Deployer { return r.deployer }

// Metrics returns the metrics collector, nil when metrics are disabled
func (r *Runtime) Metrics() *metrics.Collector { return r.metrics }

// Server returns the management server, nil when management is disabled
func (r *Runtime) Server() management.Server { return r.server }

// Deploy builds a unit from md with classes from loader and deploys it. When
// metrics are on, every component is counted by the collector.
func (r *Runtime) Deploy(ctx context.Context, md *metadata.ModuleMetadata, loader *classes.Loader) (*deployment.Deployment, error) {
	base := ejb.Options{Pool: r.cfg.PoolDefaults()}
	var unitOpts []merge.UnitOption
	if r.metrics != nil {
		base.PoolObserver = r.metrics
		unitOpts = append(unitOpts, merge.WithLifecycle(r.metrics.Interceptor))
	}

	unit, err := merge.BuildUnit(md, loader, base, unitOpts...)
	if err != nil {
		return nil, err
	}
	return r.deployer.Deploy(ctx, unit)
}

// DeploySources describes the configured sources, ./... when none are set,
// and deploys the result
func (r *Runtime) DeploySources(ctx context.Context, describer *Describer, loader *classes.Loader) (*deployment.Deployment, error) {
	sources := r.cfg.Sources
	if len(sources) == 0 {
		sources = []string{"./..."}
	}
	desc, err := describer.Run(Config{
		Directories: sources,
		Descriptor:  r.cfg.Descriptor,
	})
	if err != nil {
		return nil, err
	}
	return r.Deploy(ctx, desc.Metadata, loader)
}

// Run serves the management API until ctx is done, then stops the server and
// shuts every deployment down
func (r *Runtime) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if r.server != nil {
		addr := r.cfg.Management.Address
		g.Go(func() error {
			r.log.WithFields(logrus.Fields{"address": addr, "engine": r.server.Name()}).Info("management API listening")
			if err := r.server.Start(addr); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return errors.Wrapf(errors.ConfigurationErrorCode, err, "management server: %v", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return r.shutdown()
	})
	return g.Wait()
}

func (r *Runtime) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var errs *errors.MultipleErrors
	if r.server != nil {
		if err := r.server.Stop(ctx); err != nil {
			errors.AddToMultiple(&errs, errors.NewCleanupError("management server", err))
		}
	}
	if err := r.deployer.Shutdown(ctx); err != nil {
		collect(&errs, err)
	}
	r.log.Info("runtime stopped")
	if errs != nil {
		return errs
	}
	return nil
}
