package p4dctl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager runs lifecycle operations across many services of a Registry
// concurrently. Each targeted service gets its own goroutine; a failure in one
// never cancels or skips another, and every outcome is collected in a Report.
type Manager struct {
	// Registry resolves service names
	Registry *Registry
	// Concurrency caps concurrent operations; 0 runs every target at once
	Concurrency int
	// OpTimeout bounds each per-service operation; 0 means no bound
	OpTimeout time.Duration

	logger *zap.Logger
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithConcurrency sets the maximum number of concurrent operations
func WithConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		m.Concurrency = n
	}
}

// WithOpTimeout sets the per-operation timeout
func WithOpTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.OpTimeout = d
	}
}

// WithManagerLogger sets the logger
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager over reg
func NewManager(reg *Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		Registry: reg,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.Concurrency < 0 {
		m.Concurrency = 0
	}

	return m
}

// Selector picks the services a bulk operation targets
type Selector struct {
	// All selects every enabled service, further filtered per operation
	All bool
	// Names selects services explicitly; unknown names are reported, not fatal
	Names []string
}

// Outcome classifies one service's result in a bulk operation
type Outcome int

const (
	// OutcomePending marks a target whose operation has not completed
	OutcomePending Outcome = iota
	// OutcomeOK means the operation succeeded
	OutcomeOK
	// OutcomeFailed means the operation returned an error
	OutcomeFailed
	// OutcomeNotFound means the name is not registered
	OutcomeNotFound
	// OutcomeSkipped means the service was not operated on (disabled)
	OutcomeSkipped
)

// String returns the string representation of an Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFailed:
		return "failed"
	case OutcomeNotFound:
		return "not found"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Result is one service's outcome in a bulk operation
type Result struct {
	// Name is the requested or resolved service name
	Name string
	// Service is nil when the name was not found
	Service *Service
	// Action is the operation actually performed, which can differ from the
	// requested one (restart of a stopped service starts it)
	Action Operation
	// Outcome classifies the result
	Outcome Outcome
	// Running is the observed liveness for status queries
	Running bool
	// PID is the process id after the operation, or UnknownPID
	PID int
	// Err is the failure, if any
	Err error
}

// Report aggregates the results of one bulk operation
type Report struct {
	// Op is the requested operation
	Op Operation
	// Results lists outcomes in selection order
	Results []Result
}

// Succeeded counts successful operations
func (r Report) Succeeded() int {
	return r.count(OutcomeOK)
}

// Failed counts failed and not-found results
func (r Report) Failed() int {
	return r.count(OutcomeFailed) + r.count(OutcomeNotFound)
}

func (r Report) count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Err returns a MultiError of every failure, or nil
func (r Report) Err() error {
	merr := &MultiError{}
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed || res.Outcome == OutcomeNotFound {
			merr.Add(res.Err)
		}
	}
	return merr.Err()
}

// ExitCode is 0 when every targeted operation succeeded and 1 otherwise
func (r Report) ExitCode() int {
	if r.Failed() > 0 {
		return 1
	}
	return 0
}

type opFunc func(ctx context.Context, s *Service, res *Result) error

// resolve turns a selector into results. Targets are left OutcomePending;
// unknown and disabled names are resolved immediately. allFilter narrows
// All selections (enabled services only are considered).
func (m *Manager) resolve(op Operation, sel Selector, allFilter func(*Service) bool, skipDisabled bool) []Result {
	var results []Result

	if sel.All {
		for _, s := range m.Registry.GetAll() {
			if !s.Config.Enabled {
				continue
			}
			if allFilter != nil && !allFilter(s) {
				continue
			}
			results = append(results, Result{Name: s.Name(), Service: s, Action: op, PID: s.ProcessID()})
		}
		return results
	}

	seen := make(map[string]struct{}, len(sel.Names))
	for _, name := range sel.Names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		s, ok := m.Registry.FindByName(name)
		if !ok {
			results = append(results, Result{
				Name:    name,
				Action:  op,
				Outcome: OutcomeNotFound,
				PID:     UnknownPID,
				Err:     &OpError{Op: op, Service: name, Err: ErrNotFound},
			})
			continue
		}

		if skipDisabled && !s.Config.Enabled {
			results = append(results, Result{
				Name:    name,
				Service: s,
				Action:  op,
				Outcome: OutcomeSkipped,
				PID:     s.ProcessID(),
				Err:     &OpError{Op: op, Service: name, Err: ErrDisabled},
			})
			continue
		}

		results = append(results, Result{Name: name, Service: s, Action: op, PID: s.ProcessID()})
	}

	return results
}

// execute runs fn for every pending result concurrently and waits for all of them
func (m *Manager) execute(ctx context.Context, op Operation, results []Result, fn opFunc) Report {
	var sem chan struct{}
	if m.Concurrency > 0 {
		sem = make(chan struct{}, m.Concurrency)
	}

	var wg sync.WaitGroup

	for i := range results {
		res := &results[i]
		if res.Outcome != OutcomePending {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			// A panicking operation fails only its own service
			defer func() {
				if p := recover(); p != nil {
					res.Outcome = OutcomeFailed
					res.Err = &OpError{Op: res.Action, Service: res.Name, Err: fmt.Errorf("panic: %v", p)}
				}
			}()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					res.Outcome = OutcomeFailed
					res.Err = &OpError{Op: res.Action, Service: res.Name, Err: ctx.Err()}
					return
				}
			}

			opCtx := ctx
			if m.OpTimeout > 0 {
				var cancel context.CancelFunc
				opCtx, cancel = context.WithTimeout(ctx, m.OpTimeout)
				defer cancel()
			}

			if err := fn(opCtx, res.Service, res); err != nil {
				res.Outcome = OutcomeFailed
				res.Err = err
			} else if res.Outcome == OutcomePending {
				res.Outcome = OutcomeOK
			}
			res.PID = res.Service.ProcessID()
		}()
	}

	wg.Wait()

	for _, res := range results {
		m.logger.Debug("operation finished",
			zap.Stringer("op", res.Action),
			zap.String("service", res.Name),
			zap.Stringer("outcome", res.Outcome),
			zap.Error(res.Err))
	}

	return Report{Op: op, Results: results}
}

// Start starts the selected services. All selects enabled services that are
// not running; explicitly named disabled services are skipped.
func (m *Manager) Start(ctx context.Context, sel Selector, silent bool) Report {
	results := m.resolve(OpStart, sel, func(s *Service) bool {
		return !s.IsRunning(ctx)
	}, true)

	return m.execute(ctx, OpStart, results, func(ctx context.Context, s *Service, _ *Result) error {
		return s.Start(ctx, silent)
	})
}

// Stop stops the selected services. All selects enabled services that are running.
func (m *Manager) Stop(ctx context.Context, sel Selector) Report {
	results := m.resolve(OpStop, sel, func(s *Service) bool {
		return s.IsRunning(ctx)
	}, false)

	return m.execute(ctx, OpStop, results, func(ctx context.Context, s *Service, _ *Result) error {
		return s.Stop(ctx)
	})
}

// Restart restarts the selected services, softly by signal or, with force,
// by a full stop then start. A named service that is not running is started.
// All selects enabled services that are running.
func (m *Manager) Restart(ctx context.Context, sel Selector, force, silent bool) Report {
	results := m.resolve(OpRestart, sel, func(s *Service) bool {
		return s.IsRunning(ctx)
	}, false)

	return m.execute(ctx, OpRestart, results, func(ctx context.Context, s *Service, res *Result) error {
		err := s.Restart(ctx, force, silent)
		if errors.Is(err, ErrNotRunning) {
			res.Action = OpStart
			return s.Start(ctx, silent)
		}
		return err
	})
}

// Status checks liveness of the selected enabled services. A stopped service
// is a failure. ErrNoServices is returned when nothing matched. The PID file
// of a service not known to be running is re-read first, so a server started
// by another invocation is seen.
func (m *Manager) Status(ctx context.Context, sel Selector) (Report, error) {
	results := m.resolve(OpStatus, sel, nil, true)

	report := m.execute(ctx, OpStatus, results, func(ctx context.Context, s *Service, res *Result) error {
		if !s.IsRunning(ctx) {
			s.Refresh()
		}
		res.Running = s.IsRunning(ctx)
		if !res.Running {
			return &OpError{Op: OpStatus, Service: s.Name(), Err: ErrNotRunning}
		}
		return nil
	})

	if report.count(OutcomeOK)+report.count(OutcomeFailed) == 0 {
		return report, ErrNoServices
	}
	return report, nil
}

// Upgrade runs the schema upgrade for the selected enabled services
func (m *Manager) Upgrade(ctx context.Context, sel Selector, silent bool) Report {
	results := m.resolve(OpExec, sel, nil, true)

	return m.execute(ctx, OpExec, results, func(ctx context.Context, s *Service, _ *Result) error {
		return exitErr(s, OpExec)(s.Exec(ctx, []string{UpgradeFlag}, silent))
	})
}

// Exec runs the executable of one named service with args. Unless force is
// set it refuses while the service is running.
func (m *Manager) Exec(ctx context.Context, name string, args []string, force, silent bool) (int, error) {
	s, ok := m.Registry.FindByName(name)
	if !ok {
		return 1, &OpError{Op: OpExec, Service: name, Err: ErrNotFound}
	}
	if !force && s.IsRunning(ctx) {
		return 1, &OpError{Op: OpExec, Service: name, Err: ErrAlreadyRunning}
	}
	return s.Exec(ctx, args, silent)
}

// Checkpoint requests a journal checkpoint from one named service
func (m *Manager) Checkpoint(ctx context.Context, name string, silent bool) (int, error) {
	return m.Exec(ctx, name, []string{CheckpointFlag}, true, silent)
}

func exitErr(s *Service, op Operation) func(int, error) error {
	return func(code int, err error) error {
		if err != nil {
			return err
		}
		if code != 0 {
			return &OpError{Op: op, Service: s.Name(), Err: &ExitStatusError{Code: code}}
		}
		return nil
	}
}
