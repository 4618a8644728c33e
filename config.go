package p4dctl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// ServiceConfig is the declarative description of one supervised service,
// persisted as one JSON file per service in an include directory.
type ServiceConfig struct {
	// FilePath is where the config was loaded from or will be written to
	FilePath string `json:"-"`
	// Name is the unique registry key
	Name string `json:"Name"`
	// ServerType is a display string, "p4d" for Helix Core servers
	ServerType string `json:"ServerType,omitempty"`
	// Owner is the OS user the server runs as
	Owner string `json:"Owner,omitempty"`
	// Execute is the path of the server executable
	Execute string `json:"Execute"`
	// Args is a fixed argument prefix applied before per-call arguments
	Args string `json:"Args,omitempty"`
	// Enabled controls "all" selection; absent means true
	Enabled bool `json:"Enabled"`
	// Prefix is carried through for compatibility with existing files
	Prefix string `json:"Prefix,omitempty"`
	// Environment overlays the child environment; a null value unsets the variable
	Environment map[string]*string `json:"Environment,omitempty"`
}

// UnmarshalJSON decodes a config, defaulting Enabled to true when the key is absent
func (c *ServiceConfig) UnmarshalJSON(data []byte) error {
	type plain ServiceConfig
	p := plain{Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	filePath := c.FilePath
	*c = ServiceConfig(p)
	c.FilePath = filePath
	return nil
}

// LoadServiceConfig reads and decodes a service configuration file
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &OpError{Op: OpLoad, Service: path, Err: err}
	}

	cfg := &ServiceConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, &OpError{Op: OpLoad, Service: path, Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
	}
	cfg.FilePath = path

	return cfg, nil
}

// Save writes the config to FilePath as indented JSON, creating parent
// directories as needed. The file is replaced atomically.
func (c *ServiceConfig) Save() error {
	if c.FilePath == "" {
		return &OpError{Op: OpCreate, Service: c.Name, Err: fmt.Errorf("%w: no file path", ErrInvalidConfig)}
	}

	if err := os.MkdirAll(filepath.Dir(c.FilePath), DirMode); err != nil {
		return &OpError{Op: OpCreate, Service: c.Name, Err: fmt.Errorf("creating config directory: %w", err)}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return &OpError{Op: OpCreate, Service: c.Name, Err: err}
	}
	data = append(data, '\n')

	if err := renameio.WriteFile(c.FilePath, data, FileMode); err != nil {
		return &OpError{Op: OpCreate, Service: c.Name, Err: fmt.Errorf("writing config: %w", err)}
	}
	return nil
}

// Type returns the parsed ServerType
func (c *ServiceConfig) Type() ServerType {
	return ParseServerType(c.ServerType)
}

// ArgList splits the fixed argument prefix on whitespace
func (c *ServiceConfig) ArgList() []string {
	return strings.Fields(c.Args)
}

// Env returns the value of an environment entry, or "" if absent or null
func (c *ServiceConfig) Env(key string) string {
	if v, ok := c.Environment[key]; ok && v != nil {
		return *v
	}
	return ""
}

// SetEnv sets an environment entry
func (c *ServiceConfig) SetEnv(key, value string) {
	if c.Environment == nil {
		c.Environment = make(map[string]*string)
	}
	c.Environment[key] = &value
}

// Port returns the server's P4PORT
func (c *ServiceConfig) Port() string { return c.Env(EnvPort) }

// Root returns the server's P4ROOT
func (c *ServiceConfig) Root() string { return c.Env(EnvRoot) }

// Target returns the server's P4TARGET
func (c *ServiceConfig) Target() string { return c.Env(EnvTarget) }
