package p4dctl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// MaxServiceNameLength bounds the length of a service name
const MaxServiceNameLength = 32

// Server root layout created for a new service
const (
	// RootSubdir holds the server database and is the service's P4ROOT
	RootSubdir = "root"
	// JournalsSubdir holds journals and checkpoints
	JournalsSubdir = "journals"
	// LogsSubdir holds the server log
	LogsSubdir = "logs"
	// ArchivesSubdir holds versioned file archives
	ArchivesSubdir = "archives"
	// SSLSubdir lives under RootSubdir and holds the server key pair
	SSLSubdir = "ssl"
)

var serviceNamePattern = regexp.MustCompile(`^[\w-]+$`)

// ValidateServiceName checks a name for use as a service name and PID file component
func ValidateServiceName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: service name is required", ErrInvalidConfig)
	case len(name) > MaxServiceNameLength:
		return fmt.Errorf("%w: service name longer than %d characters", ErrInvalidConfig, MaxServiceNameLength)
	case !serviceNamePattern.MatchString(name):
		return fmt.Errorf("%w: service name %q should only contain alphanumeric symbols, '_' and '-'", ErrInvalidConfig, name)
	}
	return nil
}

// ServiceBuilder provides a fluent interface for provisioning a new server:
// its directory layout and the ServiceConfig that supervises it.
type ServiceBuilder struct {
	// Name is the service name
	Name string
	// Execute is the server executable
	Execute string
	// Owner is the OS user the server runs as
	Owner string
	// Port is the server address (P4PORT)
	Port string
	// BaseDir is the server base directory; the layout subdirectories go under it
	BaseDir string
	// ConfigPath is where the service config is saved
	ConfigPath string
	// Args is the fixed argument prefix
	Args string
	// SSL creates an SSL directory and sets P4SSLDIR. It defaults to true for ssl ports.
	SSL *bool
	// Env holds extra environment variables
	Env map[string]string
	// Disabled saves the service with Enabled set to false
	Disabled bool

	// created holds the topmost directories Build made, for Discard
	created []string
}

// NewServiceBuilder creates a ServiceBuilder with paths defaulted from app
func NewServiceBuilder(name string, app *AppConfig) *ServiceBuilder {
	return &ServiceBuilder{
		Name:       name,
		Execute:    app.P4DExecute,
		BaseDir:    filepath.Join(app.DefaultServerRootDirectory, name),
		ConfigPath: DefaultConfigPath(app.FirstInclude(), name),
		Env:        make(map[string]string),
	}
}

// WithPort sets the server address
func (b *ServiceBuilder) WithPort(port string) *ServiceBuilder {
	b.Port = port
	return b
}

// WithBaseDir sets the server base directory
func (b *ServiceBuilder) WithBaseDir(dir string) *ServiceBuilder {
	b.BaseDir = dir
	return b
}

// WithOwner sets the OS user the server runs as
func (b *ServiceBuilder) WithOwner(owner string) *ServiceBuilder {
	b.Owner = owner
	return b
}

// WithConfigPath sets where the service config is saved
func (b *ServiceBuilder) WithConfigPath(path string) *ServiceBuilder {
	b.ConfigPath = path
	return b
}

// WithArgs sets the fixed argument prefix
func (b *ServiceBuilder) WithArgs(args string) *ServiceBuilder {
	b.Args = args
	return b
}

// WithSSL forces SSL directory creation on or off
func (b *ServiceBuilder) WithSSL(enabled bool) *ServiceBuilder {
	b.SSL = &enabled
	return b
}

// WithEnv adds an environment variable
func (b *ServiceBuilder) WithEnv(key, value string) *ServiceBuilder {
	b.Env[key] = value
	return b
}

// WithDisabled saves the service disabled
func (b *ServiceBuilder) WithDisabled(disabled bool) *ServiceBuilder {
	b.Disabled = disabled
	return b
}

// RootDir is the server's P4ROOT
func (b *ServiceBuilder) RootDir() string {
	return filepath.Join(b.BaseDir, RootSubdir)
}

func (b *ServiceBuilder) useSSL() bool {
	if b.SSL != nil {
		return *b.SSL
	}
	return strings.HasPrefix(b.Port, "ssl")
}

// Validate checks the builder before anything is written
func (b *ServiceBuilder) Validate() error {
	if err := ValidateServiceName(b.Name); err != nil {
		return err
	}
	if b.Port == "" {
		return fmt.Errorf("%w: server address (P4PORT) is required", ErrInvalidConfig)
	}
	if b.Execute == "" {
		return fmt.Errorf("%w: missing Execute", ErrInvalidConfig)
	}
	if !filepath.IsAbs(b.BaseDir) {
		return fmt.Errorf("%w: server root %q is not absolute", ErrInvalidConfig, b.BaseDir)
	}
	if b.ConfigPath == "" {
		return fmt.Errorf("%w: config path is required", ErrInvalidConfig)
	}
	if _, err := os.Stat(b.ConfigPath); err == nil {
		return fmt.Errorf("%w: config file %s already exists", ErrDuplicate, b.ConfigPath)
	}
	if empty, err := dirEmpty(b.RootDir()); err != nil {
		return fmt.Errorf("checking server root: %w", err)
	} else if !empty {
		return fmt.Errorf("%w: server root %s is not empty", ErrInvalidConfig, b.RootDir())
	}
	return nil
}

// Build validates the builder, creates the server directory layout and returns
// the ServiceConfig. The config is not saved; Registry.CreateService does that.
func (b *ServiceBuilder) Build() (*ServiceConfig, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	for _, sub := range []string{RootSubdir, JournalsSubdir, LogsSubdir, ArchivesSubdir} {
		if err := b.mkdir(filepath.Join(b.BaseDir, sub)); err != nil {
			b.Discard()
			return nil, fmt.Errorf("creating server directory: %w", err)
		}
	}
	if err := os.Chmod(b.BaseDir, PrivateDirMode); err != nil {
		b.Discard()
		return nil, fmt.Errorf("restricting server directory: %w", err)
	}

	cfg := &ServiceConfig{
		FilePath:   b.ConfigPath,
		Name:       b.Name,
		ServerType: ServerTypeP4D.String(),
		Owner:      b.Owner,
		Execute:    b.Execute,
		Args:       b.Args,
		Enabled:    !b.Disabled,
	}

	cfg.SetEnv(EnvRoot, b.RootDir())
	cfg.SetEnv(EnvPort, b.Port)
	cfg.SetEnv(EnvJournal, filepath.Join("..", JournalsSubdir, "journal"))
	cfg.SetEnv(EnvLog, filepath.Join("..", LogsSubdir, "log"))

	if b.useSSL() {
		sslDir := filepath.Join(b.RootDir(), SSLSubdir)
		if err := b.mkdir(sslDir); err != nil {
			b.Discard()
			return nil, fmt.Errorf("creating ssl directory: %w", err)
		}
		cfg.SetEnv(EnvSSLDir, sslDir)
	}

	for k, v := range b.Env {
		cfg.SetEnv(k, v)
	}

	return cfg, nil
}

// Discard removes the directories Build created. Directories that existed
// before Build are left alone.
func (b *ServiceBuilder) Discard() {
	for i := len(b.created) - 1; i >= 0; i-- {
		_ = os.RemoveAll(b.created[i])
	}
	b.created = nil
}

// mkdir creates dir and its parents, remembering the topmost one it made
func (b *ServiceBuilder) mkdir(dir string) error {
	top := ""
	for p := filepath.Clean(dir); !exists(p); p = filepath.Dir(p) {
		top = p
		if filepath.Dir(p) == p {
			break
		}
	}
	if err := os.MkdirAll(dir, PrivateDirMode); err != nil {
		return err
	}
	if top != "" {
		b.created = append(b.created, top)
	}
	return nil
}

// DefaultConfigPath returns dir/<name>.conf, or the first free numbered
// variant (<name>1.conf, <name>2.conf, ...) when that file exists.
func DefaultConfigPath(dir, name string) string {
	path := filepath.Join(dir, name+ConfigFileExt)
	for n := 1; n < 100 && exists(path); n++ {
		path = filepath.Join(dir, name+strconv.Itoa(n)+ConfigFileExt)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func dirEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
