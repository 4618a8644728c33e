package p4dctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/axondata/go-p4dctl/internal/unix"
)

// Signal is a signal kind delivered to a supervised process
type Signal int

const (
	// SignalTerminate asks the server to shut down gracefully
	SignalTerminate Signal = iota
	// SignalReload asks the server to reload without exiting
	SignalReload
	// SignalKill forcibly terminates the server
	SignalKill
)

// String returns the string representation of a Signal
func (s Signal) String() string {
	switch s {
	case SignalTerminate:
		return "TERM"
	case SignalReload:
		return "HUP"
	case SignalKill:
		return "KILL"
	default:
		return "unknown"
	}
}

func (s Signal) syscall() syscall.Signal {
	switch s {
	case SignalReload:
		return unix.SIGHUP
	case SignalKill:
		return unix.SIGKILL
	default:
		return unix.SIGTERM
	}
}

// ErrNoProcess is returned by Processes.Signal when the target has already exited
var ErrNoProcess = unix.ErrNoProcess

// Command describes one child process launch
type Command struct {
	// Path is the executable
	Path string
	// Args are the arguments after the executable name
	Args []string
	// Owner is the OS user to run as; empty means the current user
	Owner string
	// Env is the complete child environment in KEY=VALUE form
	Env []string
	// Silent detaches stdio instead of inheriting it
	Silent bool
}

// Processes is the OS process and signal boundary. Implementations must be
// safe for concurrent use.
type Processes interface {
	// Alive reports whether pid names a live, non-zombie process
	Alive(ctx context.Context, pid int) (bool, error)
	// Signal delivers sig to pid
	Signal(pid int, sig Signal) error
	// Run launches cmd and waits for it to exit. The returned error is
	// non-nil only when the process could not be launched or waited for.
	Run(ctx context.Context, cmd Command) (int, error)
}

// OSProcesses returns the Processes implementation backed by the host OS
func OSProcesses() Processes {
	return osProcesses{}
}

type osProcesses struct{}

func (osProcesses) Alive(ctx context.Context, pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}

	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil || !exists {
		return false, err
	}

	p := &process.Process{Pid: int32(pid)}
	status, err := p.StatusWithContext(ctx)
	if err != nil {
		// Exists but status is unreadable (permissions, unsupported platform)
		return true, nil
	}
	for _, st := range status {
		if st == process.Zombie {
			return false, nil
		}
	}
	return true, nil
}

func (osProcesses) Signal(pid int, sig Signal) error {
	return unix.Kill(pid, sig.syscall())
}

func (osProcesses) Run(ctx context.Context, c Command) (int, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = c.Env

	attr, err := unix.SysProcAttr(c.Owner)
	if err != nil {
		return -1, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	cmd.SysProcAttr = attr

	// Silent leaves stdio nil, which exec connects to the null device. No pipes
	// are used so a daemonized grandchild cannot hold Wait open.
	if !c.Silent {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// terminated by a signal
			code = 1
		}
		return code, nil
	}
	return -1, err
}

// mergeEnv overlays environment maps onto base in order. A nil value removes
// the variable. The result is sorted for stable output.
func mergeEnv(base []string, overlays ...map[string]*string) []string {
	env := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	for _, overlay := range overlays {
		for k, v := range overlay {
			if v == nil {
				delete(env, k)
				continue
			}
			env[k] = *v
		}
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
