// Package config loads the server configuration of the eecore command.
//
// Values come from three places, later ones winning: the defaults, an
// optional YAML file and EECORE_* environment variables.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/utils"
	"github.com/toyz/eecore/pkg/ee/ejb"
	"github.com/toyz/eecore/pkg/ee/management/adapters"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "EECORE_"

// Config is the server configuration
type Config struct {
	LogLevel   string           `json:"log-level"`
	Descriptor string           `json:"descriptor,omitempty"`
	Sources    []string         `json:"sources,omitempty"`
	Pool       PoolConfig       `json:"pool"`
	Deployment DeploymentConfig `json:"deployment"`
	Management ManagementConfig `json:"management"`
}

// PoolConfig holds the defaults for stateless pools. Timeout uses
// time.ParseDuration syntax.
type PoolConfig struct {
	MaxSize int64  `json:"max-size"`
	Timeout string `json:"timeout"`
}

// DeploymentConfig tunes the deployer
type DeploymentConfig struct {
	// Parallelism bounds concurrent component configuration, 0 means GOMAXPROCS
	Parallelism int `json:"parallelism"`
}

// ManagementConfig configures the management HTTP server
type ManagementConfig struct {
	Enabled   bool   `json:"enabled"`
	Address   string `json:"address"`
	Engine    string `json:"engine"`
	Metrics   bool   `json:"metrics"`
	Namespace string `json:"namespace"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Pool: PoolConfig{
			MaxSize: ejb.DefaultPoolSize,
			Timeout: ejb.DefaultPoolTimeout.String(),
		},
		Management: ManagementConfig{
			Enabled:   true,
			Address:   ":9090",
			Engine:    "echo",
			Metrics:   true,
			Namespace: "eecore",
		},
	}
}

// Load reads path over the defaults and applies the environment. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFileSystemError("read", path, err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, errors.Wrapf(errors.ConfigurationErrorCode, err, "parse %s: %v", path, err).
				WithLocation(errors.SourceLocation{File: path})
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from EECORE_* variables found through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	var errs *errors.MultipleErrors
	bad := func(key, value string, err error) {
		errors.AddToMultiple(&errs, errors.Wrapf(errors.ConfigurationErrorCode, err, "%s%s=%q: %v", EnvPrefix, key, value, err))
	}

	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("DESCRIPTOR"); ok {
		c.Descriptor = v
	}
	if v, ok := get("SOURCES"); ok {
		c.Sources = strings.Split(v, ",")
	}
	if v, ok := get("POOL_MAX_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			bad("POOL_MAX_SIZE", v, err)
		} else {
			c.Pool.MaxSize = n
		}
	}
	if v, ok := get("POOL_TIMEOUT"); ok {
		c.Pool.Timeout = v
	}
	if v, ok := get("DEPLOYMENT_PARALLELISM"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			bad("DEPLOYMENT_PARALLELISM", v, err)
		} else {
			c.Deployment.Parallelism = n
		}
	}
	if v, ok := get("MANAGEMENT_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			bad("MANAGEMENT_ENABLED", v, err)
		} else {
			c.Management.Enabled = b
		}
	}
	if v, ok := get("MANAGEMENT_ADDRESS"); ok {
		c.Management.Address = v
	}
	if v, ok := get("MANAGEMENT_ENGINE"); ok {
		c.Management.Engine = v
	}
	if v, ok := get("MANAGEMENT_METRICS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			bad("MANAGEMENT_METRICS", v, err)
		} else {
			c.Management.Metrics = b
		}
	}

	if errs != nil {
		return errs
	}
	return nil
}

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	var errs *errors.MultipleErrors
	check := func(err error) {
		if err != nil {
			errors.AddToMultiple(&errs, errors.Wrap(errors.ConfigurationErrorCode, err.Error(), err))
		}
	}

	check(utils.IsOneOf("log-level", "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic")(strings.ToLower(c.LogLevel)))
	check(utils.ValidateEach("sources", utils.NotEmpty("source"))(c.Sources))
	check(utils.AtLeast("pool.max-size", int64(0))(c.Pool.MaxSize))
	check(utils.ValidateDuration("pool.timeout")(c.Pool.Timeout))
	check(utils.AtLeast("deployment.parallelism", 0)(c.Deployment.Parallelism))

	for _, v := range managementValidators {
		check(v(c))
	}

	if errs != nil {
		return errs
	}
	return nil
}

var metricNamespace = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

func managementEnabled(c *Config) bool { return c.Management.Enabled }

func metricsEnabled(c *Config) bool { return c.Management.Enabled && c.Management.Metrics }

// managementValidators only look at the management block when it is in use
var managementValidators = []utils.Validator[*Config]{
	utils.Conditional(managementEnabled, func(c *Config) error {
		return utils.ValidateListenAddress("management.address")(c.Management.Address)
	}),
	utils.Conditional(managementEnabled, func(c *Config) error {
		return utils.IsOneOf("management.engine", adapters.Engines...)(strings.ToLower(c.Management.Engine))
	}),
	utils.Conditional(metricsEnabled, func(c *Config) error {
		return utils.NewValidatorChain(
			utils.NotEmpty("management.namespace"),
			utils.Custom("management.namespace", "must be a valid metric name prefix", metricNamespace.MatchString),
		).Validate(c.Management.Namespace)
	}),
}

// PoolDefaults returns the pool settings components start from. Validate
// must have passed.
func (c *Config) PoolDefaults() ejb.PoolSettings {
	out := ejb.PoolSettings{MaxSize: c.Pool.MaxSize, Timeout: ejb.DefaultPoolTimeout}
	if c.Pool.Timeout != "" {
		if d, err := time.ParseDuration(c.Pool.Timeout); err == nil {
			out.Timeout = d
		}
	}
	return out
}
