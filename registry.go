package p4dctl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// Registry indexes the configured services by name. It is populated once per
// invocation, before any bulk operation runs, and is read-only afterwards.
// CreateService must not race with itself or with readers.
type Registry struct {
	pidDir   string
	opts     []ServiceOption
	logger   *zap.Logger
	services map[string]*Service
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithServiceOptions sets options applied to every Service the registry builds
func WithServiceOptions(opts ...ServiceOption) RegistryOption {
	return func(r *Registry) {
		r.opts = append(r.opts, opts...)
	}
}

// WithRegistryLogger sets the logger used for discovery diagnostics
func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry whose services keep PID files in pidDir
func NewRegistry(pidDir string, opts ...RegistryOption) *Registry {
	r := &Registry{
		pidDir:   pidDir,
		logger:   zap.NewNop(),
		services: make(map[string]*Service),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// DiscoveryIssue records one file or directory discovery passed over
type DiscoveryIssue struct {
	Path string
	Err  error
}

// DiscoveryStats summarizes a LoadAll pass
type DiscoveryStats struct {
	// Scanned counts config files found in search paths
	Scanned int
	// Loaded counts services registered
	Loaded int
	// Skipped counts files that could not be parsed or had no name
	Skipped int
	// Duplicates counts configs whose name was already registered
	Duplicates int
	// Issues lists every skipped file, duplicate and unusable search path
	Issues []DiscoveryIssue
}

// LoadAll scans each absolute, existing directory in searchPaths for config
// files (non-recursively) and registers one Service per new name. Malformed
// files are skipped; the first config seen for a name wins.
func (r *Registry) LoadAll(searchPaths []string) DiscoveryStats {
	var stats DiscoveryStats

	for _, dir := range searchPaths {
		if !filepath.IsAbs(dir) {
			stats.Issues = append(stats.Issues, DiscoveryIssue{Path: dir, Err: errors.New("search path is not absolute")})
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			stats.Issues = append(stats.Issues, DiscoveryIssue{Path: dir, Err: err})
			continue
		}

		for _, entry := range entries {
			if filepath.Ext(entry.Name()) != ConfigFileExt {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			if !isRegularFile(path) {
				continue
			}
			stats.Scanned++

			cfg, err := LoadServiceConfig(path)
			if err != nil {
				stats.Skipped++
				stats.Issues = append(stats.Issues, DiscoveryIssue{Path: path, Err: err})
				r.logger.Debug("skipping config", zap.String("path", path), zap.Error(err))
				continue
			}

			if cfg.Name == "" {
				stats.Skipped++
				stats.Issues = append(stats.Issues, DiscoveryIssue{Path: path, Err: fmt.Errorf("%w: missing Name", ErrInvalidConfig)})
				r.logger.Debug("skipping config without name", zap.String("path", path))
				continue
			}

			if existing, ok := r.services[cfg.Name]; ok {
				stats.Duplicates++
				stats.Issues = append(stats.Issues, DiscoveryIssue{
					Path: path,
					Err:  fmt.Errorf("%w: %q already loaded from %s", ErrDuplicate, cfg.Name, existing.Config.FilePath),
				})
				r.logger.Debug("skipping duplicate config", zap.String("path", path), zap.String("name", cfg.Name))
				continue
			}

			r.services[cfg.Name] = NewService(cfg, r.pidDir, r.opts...)
			stats.Loaded++
		}
	}

	return stats
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&fs.ModeType == 0
}

// FindByName returns the service registered under name
func (r *Registry) FindByName(name string) (*Service, bool) {
	s, ok := r.services[name]
	return s, ok
}

// GetAll returns every registered service, sorted by name
func (r *Registry) GetAll() []*Service {
	all := make([]*Service, 0, len(r.services))
	for _, s := range r.services {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name() < all[j].Name()
	})
	return all
}

// Len returns the number of registered services
func (r *Registry) Len() int {
	return len(r.services)
}

// CreateService registers a new service. If cfg.FilePath is set and no file
// exists there yet, the config is written to it first.
func (r *Registry) CreateService(cfg *ServiceConfig) (*Service, error) {
	if cfg.Name == "" {
		return nil, &OpError{Op: OpCreate, Service: cfg.FilePath, Err: fmt.Errorf("%w: missing Name", ErrInvalidConfig)}
	}
	if _, ok := r.services[cfg.Name]; ok {
		return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: ErrDuplicate}
	}

	if cfg.FilePath != "" {
		_, err := os.Stat(cfg.FilePath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if err := cfg.Save(); err != nil {
				return nil, err
			}
			r.logger.Debug("wrote config", zap.String("path", cfg.FilePath), zap.String("name", cfg.Name))
		case err != nil:
			return nil, &OpError{Op: OpCreate, Service: cfg.Name, Err: err}
		}
	}

	s := NewService(cfg, r.pidDir, r.opts...)
	r.services[cfg.Name] = s
	return s, nil
}
