package p4dctl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Build-time path defaults, overridable with -ldflags "-X".
var (
	DefaultConfigFile          = "/etc/perforce/p4dctl-ng.conf"
	DefaultP4DExecute          = "/opt/perforce/sbin/p4d"
	DefaultPidFileDirectory    = "/run/p4dctl-ng"
	DefaultServerRootDirectory = "/opt/perforce/servers"
	DefaultIncludeDirectory    = "/etc/perforce/p4dctl-ng.conf.d"
	ConfigEnvVar               = "P4DCTL_CONFIG"
)

// AppConfig is the controller's top-level configuration
type AppConfig struct {
	P4DExecute                 string             `json:"P4DExecute,omitempty" yaml:"P4DExecute,omitempty"`
	PidFileDirectory           string             `json:"PidFileDirectory,omitempty" yaml:"PidFileDirectory,omitempty"`
	DefaultServerRootDirectory string             `json:"DefaultServerRootDirectory,omitempty" yaml:"DefaultServerRootDirectory,omitempty"`
	Includes                   []string           `json:"Includes,omitempty" yaml:"Includes,omitempty"`
	Environment                map[string]*string `json:"Environment,omitempty" yaml:"Environment,omitempty"`
	StopTimeout                string             `json:"StopTimeout,omitempty" yaml:"StopTimeout,omitempty"`
	KillGrace                  string             `json:"KillGrace,omitempty" yaml:"KillGrace,omitempty"`

	// path is the file this config was read from
	path string

	stopTimeout time.Duration
	killGrace   time.Duration
}

// ResolveConfigPath picks the config file: the explicit path, then $P4DCTL_CONFIG,
// then DefaultConfigFile.
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(ConfigEnvVar); env != "" {
		return env
	}
	return DefaultConfigFile
}

// LoadAppConfig reads, defaults and validates the application config. Any
// failure is fatal for the invocation and wraps ErrInvalidConfig.
func LoadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot load config file %q: %v", ErrInvalidConfig, path, err)
	}

	cfg := &AppConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: cannot load config file %q: %v", ErrInvalidConfig, path, err)
	}

	cfg.path = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.P4DExecute == "" {
		c.P4DExecute = DefaultP4DExecute
	}
	if c.PidFileDirectory == "" {
		c.PidFileDirectory = DefaultPidFileDirectory
	}
	if c.DefaultServerRootDirectory == "" {
		c.DefaultServerRootDirectory = DefaultServerRootDirectory
	}
}

// Validate checks mandatory fields and parses durations
func (c *AppConfig) Validate() error {
	if c.P4DExecute == "" {
		return fmt.Errorf("%w: %s: missing P4DExecute field", ErrInvalidConfig, c.path)
	}
	if c.PidFileDirectory == "" {
		return fmt.Errorf("%w: %s: missing PidFileDirectory field", ErrInvalidConfig, c.path)
	}
	if c.DefaultServerRootDirectory == "" {
		return fmt.Errorf("%w: %s: missing DefaultServerRootDirectory field", ErrInvalidConfig, c.path)
	}

	var err error
	if c.stopTimeout, err = parseDuration(c.StopTimeout, DefaultStopTimeout); err != nil {
		return fmt.Errorf("%w: %s: StopTimeout: %v", ErrInvalidConfig, c.path, err)
	}
	if c.killGrace, err = parseDuration(c.KillGrace, DefaultKillGrace); err != nil {
		return fmt.Errorf("%w: %s: KillGrace: %v", ErrInvalidConfig, c.path, err)
	}
	return nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

// Path returns the file the config was loaded from
func (c *AppConfig) Path() string { return c.path }

// StopTimeoutDuration returns the validated stop deadline
func (c *AppConfig) StopTimeoutDuration() time.Duration {
	if c.stopTimeout == 0 {
		return DefaultStopTimeout
	}
	return c.stopTimeout
}

// KillGraceDuration returns the validated post-kill wait
func (c *AppConfig) KillGraceDuration() time.Duration {
	if c.killGrace == 0 {
		return DefaultKillGrace
	}
	return c.killGrace
}

// FirstInclude returns the first include directory, the default home for new configs
func (c *AppConfig) FirstInclude() string {
	if len(c.Includes) > 0 {
		return c.Includes[0]
	}
	return DefaultIncludeDirectory
}

// ServiceOptions returns the Service options implied by this config
func (c *AppConfig) ServiceOptions() []ServiceOption {
	return []ServiceOption{
		WithStopTimeout(c.StopTimeoutDuration()),
		WithKillGrace(c.KillGraceDuration()),
		WithEnvironment(c.Environment),
	}
}
