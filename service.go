package p4dctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Service supervises one configured server. It owns the service's PID file
// lifecycle and drives the OS process through a Processes implementation.
//
// Liveness is never cached: every IsRunning call asks the OS about the last
// known process id, because the server may exit at any time.
type Service struct {
	// Config is the service configuration, owned by this Service
	Config *ServiceConfig

	// PidFilePath is where the server writes its process id
	PidFilePath string

	// StopTimeout bounds the wait for exit after SIGTERM
	StopTimeout time.Duration

	// KillGrace bounds the wait for exit after SIGKILL
	KillGrace time.Duration

	// PollInterval is the liveness polling interval during waits
	PollInterval time.Duration

	// PidFileSettle bounds the wait for a live PID after a successful bootstrap
	PidFileSettle time.Duration

	procs  Processes
	env    map[string]*string
	logger *zap.Logger

	pid atomic.Int64

	// mu serializes lifecycle operations on this service
	mu sync.Mutex
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithProcesses sets the OS process boundary
func WithProcesses(p Processes) ServiceOption {
	return func(s *Service) {
		s.procs = p
	}
}

// WithStopTimeout sets the graceful stop deadline
func WithStopTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.StopTimeout = d
	}
}

// WithKillGrace sets the wait after the forced kill
func WithKillGrace(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.KillGrace = d
	}
}

// WithPollInterval sets the liveness polling interval
func WithPollInterval(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.PollInterval = d
	}
}

// WithPidFileSettle sets how long Start waits for the PID file to name a live process
func WithPidFileSettle(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.PidFileSettle = d
	}
}

// WithEnvironment sets an environment overlay applied before the service's own
func WithEnvironment(env map[string]*string) ServiceOption {
	return func(s *Service) {
		s.env = env
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService binds a Service to cfg. The PID file path is derived from pidDir
// and the service name; an existing PID file seeds ProcessID.
func NewService(cfg *ServiceConfig, pidDir string, opts ...ServiceOption) *Service {
	s := &Service{
		Config:        cfg,
		PidFilePath:   PidFilePath(pidDir, cfg.Name),
		StopTimeout:   DefaultStopTimeout,
		KillGrace:     DefaultKillGrace,
		PollInterval:  DefaultPollInterval,
		PidFileSettle: DefaultPidFileSettle,
		procs:         OSProcesses(),
		logger:        zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With(zap.String("service", cfg.Name))
	s.pid.Store(int64(ReadPIDFile(s.PidFilePath)))

	return s
}

// Name returns the service name
func (s *Service) Name() string {
	return s.Config.Name
}

// ProcessID returns the last known process id, or UnknownPID
func (s *Service) ProcessID() int {
	return int(s.pid.Load())
}

// Refresh re-reads the PID file and returns the adopted process id
func (s *Service) Refresh() int {
	pid := ReadPIDFile(s.PidFilePath)
	s.pid.Store(int64(pid))
	return pid
}

func (s *Service) forget() {
	s.pid.Store(UnknownPID)
}

// PIDState asks the OS about the last known process id
func (s *Service) PIDState(ctx context.Context) PIDState {
	pid := s.ProcessID()
	if pid == UnknownPID {
		return PIDUnknown
	}
	alive, err := s.procs.Alive(ctx, pid)
	if err != nil {
		return PIDUnchecked
	}
	if alive {
		return PIDAlive
	}
	return PIDDead
}

// IsRunning reports whether the last known process is alive right now
func (s *Service) IsRunning(ctx context.Context) bool {
	return s.PIDState(ctx) == PIDAlive
}

// Start launches the server through its bootstrap process, which detaches the
// server and writes its PID file. Start returns once the bootstrap exits; a
// non-zero bootstrap exit is reported as an ExitStatusError.
func (s *Service) Start(ctx context.Context, silent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start(ctx, silent)
}

func (s *Service) start(ctx context.Context, silent bool) error {
	if s.IsRunning(ctx) {
		return &OpError{Op: OpStart, Service: s.Name(), Err: ErrAlreadyRunning}
	}

	if err := os.MkdirAll(filepath.Dir(s.PidFilePath), DirMode); err != nil {
		return &OpError{Op: OpStart, Service: s.Name(), Err: err}
	}

	args := append(s.Config.ArgList(), pidFileFlag+s.PidFilePath, daemonFlag)
	s.logger.Debug("launching bootstrap", zap.String("execute", s.Config.Execute), zap.Strings("args", args))

	code, err := s.procs.Run(ctx, s.command(args, silent))
	if err != nil {
		return &OpError{Op: OpStart, Service: s.Name(), Err: launchErr(err)}
	}
	if code != 0 {
		return &OpError{Op: OpStart, Service: s.Name(), Err: &ExitStatusError{Code: code}}
	}

	pid := awaitPID(ctx, s.procs, s.PidFilePath, s.PidFileSettle, s.PollInterval)
	if pid == UnknownPID {
		s.logger.Warn("bootstrap succeeded but PID file names no live process", zap.String("pidfile", s.PidFilePath))
		return nil
	}
	s.pid.Store(int64(pid))
	s.logger.Debug("adopted process", zap.Int("pid", pid))

	return nil
}

// Stop sends SIGTERM and waits up to StopTimeout for the process to exit. On
// timeout it escalates to SIGKILL and reports ErrStopTimeout even when the kill
// succeeds. The PID file is left for the server (or the next Start) to handle.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop(ctx)
}

func (s *Service) stop(ctx context.Context) error {
	if !s.IsRunning(ctx) {
		return &OpError{Op: OpStop, Service: s.Name(), Err: ErrNotRunning}
	}

	pid := s.ProcessID()
	s.logger.Debug("sending signal", zap.Int("pid", pid), zap.Stringer("signal", SignalTerminate))
	if err := s.procs.Signal(pid, SignalTerminate); err != nil {
		if errors.Is(err, ErrNoProcess) {
			s.forget()
			return nil
		}
		return &OpError{Op: OpStop, Service: s.Name(), Err: err}
	}

	exited, err := waitExit(ctx, s.procs, pid, s.PidFilePath, s.StopTimeout, s.PollInterval)
	if err != nil {
		return &OpError{Op: OpStop, Service: s.Name(), Err: err}
	}
	if exited {
		s.forget()
		return nil
	}

	s.logger.Warn("process ignored SIGTERM, killing", zap.Int("pid", pid), zap.Duration("timeout", s.StopTimeout))
	if err := s.procs.Signal(pid, SignalKill); err != nil && !errors.Is(err, ErrNoProcess) {
		return &OpError{Op: OpKill, Service: s.Name(), Err: fmt.Errorf("%w: %v", ErrStopTimeout, err)}
	}

	killed, err := waitExit(ctx, s.procs, pid, s.PidFilePath, s.KillGrace, s.PollInterval)
	if err != nil {
		return &OpError{Op: OpKill, Service: s.Name(), Err: err}
	}
	if !killed {
		return &OpError{Op: OpKill, Service: s.Name(), Err: fmt.Errorf("%w: pid %d alive after SIGKILL", ErrStopTimeout, pid)}
	}

	s.forget()
	return &OpError{Op: OpStop, Service: s.Name(), Err: fmt.Errorf("%w: killed after %s", ErrStopTimeout, s.StopTimeout)}
}

// Restart restarts a running service. A soft restart delivers the reload
// signal and returns immediately. A forced restart stops the process
// completely before starting a new one; when the stop needed SIGKILL the new
// process is still started and ErrStopTimeout is reported alongside.
func (s *Service) Restart(ctx context.Context, force, silent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsRunning(ctx) {
		return &OpError{Op: OpRestart, Service: s.Name(), Err: ErrNotRunning}
	}

	if !force {
		return s.reload()
	}

	stopErr := s.stop(ctx)
	if stopErr != nil {
		if !errors.Is(stopErr, ErrStopTimeout) || s.ProcessID() != UnknownPID {
			return stopErr
		}
		s.logger.Warn("starting after forced kill", zap.Error(stopErr))
	}
	return errors.Join(stopErr, s.start(ctx, silent))
}

// Reload delivers the reload signal to a running service
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsRunning(ctx) {
		return &OpError{Op: OpReload, Service: s.Name(), Err: ErrNotRunning}
	}
	return s.reload()
}

func (s *Service) reload() error {
	pid := s.ProcessID()
	s.logger.Debug("sending signal", zap.Int("pid", pid), zap.Stringer("signal", SignalReload))
	if err := s.procs.Signal(pid, SignalReload); err != nil {
		if errors.Is(err, ErrNoProcess) {
			err = ErrNotRunning
		}
		return &OpError{Op: OpReload, Service: s.Name(), Err: err}
	}
	return nil
}

// Exec runs the server executable with args appended to the fixed argument
// prefix and returns its exit code. It does not consult or change ProcessID;
// callers decide whether running alongside a live server is acceptable.
func (s *Service) Exec(ctx context.Context, args []string, silent bool) (int, error) {
	full := append(s.Config.ArgList(), args...)
	s.logger.Debug("exec", zap.String("execute", s.Config.Execute), zap.Strings("args", full))

	code, err := s.procs.Run(ctx, s.command(full, silent))
	if err != nil {
		return -1, &OpError{Op: OpExec, Service: s.Name(), Err: launchErr(err)}
	}
	return code, nil
}

func (s *Service) command(args []string, silent bool) Command {
	return Command{
		Path:   s.Config.Execute,
		Args:   args,
		Owner:  s.Config.Owner,
		Env:    mergeEnv(os.Environ(), s.env, s.Config.Environment),
		Silent: silent,
	}
}

func launchErr(err error) error {
	if errors.Is(err, ErrLaunch) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrLaunch, err)
}
