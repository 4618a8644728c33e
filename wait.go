package p4dctl

import (
	"context"
	"time"
)

// waitExit blocks until pid is no longer alive, timeout elapses, or ctx is
// done. It reports true once the exit is confirmed. Liveness is polled every
// interval; changes to pidFile wake the loop early since servers remove their
// PID file on clean exit.
func waitExit(ctx context.Context, procs Processes, pid int, pidFile string, timeout, interval time.Duration) (bool, error) {
	wake, cleanup, err := watchPIDFile(ctx, pidFile)
	if err == nil {
		defer func() { _ = cleanup() }()
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		alive, err := procs.Alive(ctx, pid)
		if err == nil && !alive {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			alive, err := procs.Alive(ctx, pid)
			return err == nil && !alive, nil
		case <-ticker.C:
		case <-wake:
		}
	}
}

// awaitPID reads pidFile until it names a live process or settle elapses.
// It returns UnknownPID unless a live process id was found.
func awaitPID(ctx context.Context, procs Processes, pidFile string, settle, interval time.Duration) int {
	wake, cleanup, err := watchPIDFile(ctx, pidFile)
	if err == nil {
		defer func() { _ = cleanup() }()
	}

	deadline := time.NewTimer(settle)
	defer deadline.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if pid := livePID(ctx, procs, pidFile); pid != UnknownPID {
			return pid
		}

		select {
		case <-ctx.Done():
			return UnknownPID
		case <-deadline.C:
			return livePID(ctx, procs, pidFile)
		case <-ticker.C:
		case <-wake:
		}
	}
}

func livePID(ctx context.Context, procs Processes, pidFile string) int {
	pid := ReadPIDFile(pidFile)
	if pid == UnknownPID {
		return UnknownPID
	}
	if alive, err := procs.Alive(ctx, pid); err != nil || !alive {
		return UnknownPID
	}
	return pid
}
