//go:build linux || darwin

// Package unix provides the platform-specific signal and credential
// plumbing used to control supervised server processes.
package unix

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"syscall"

	xunix "golang.org/x/sys/unix"
)

// Signals delivered to supervised processes.
const (
	SIGTERM = xunix.SIGTERM
	SIGHUP  = xunix.SIGHUP
	SIGKILL = xunix.SIGKILL
)

// Kill delivers sig to pid. A process that no longer exists is reported as
// ErrNoProcess.
func Kill(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	err := xunix.Kill(pid, sig)
	if errors.Is(err, xunix.ESRCH) {
		return ErrNoProcess
	}
	return err
}

// ErrNoProcess reports a signal sent to a process that has already exited
var ErrNoProcess = errors.New("no such process")

// SysProcAttr returns the attributes needed to run a child as owner. An empty
// owner, or the current user, yields nil (no credential switch).
func SysProcAttr(owner string) (*syscall.SysProcAttr, error) {
	if owner == "" {
		return nil, nil
	}

	u, err := user.Lookup(owner)
	if err != nil {
		return nil, fmt.Errorf("looking up owner %q: %w", owner, err)
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("owner %q: bad uid %q", owner, u.Uid)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("owner %q: bad gid %q", owner, u.Gid)
	}

	if uint32(uid) == uint32(xunix.Getuid()) {
		return nil, nil
	}

	cred := &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}
	if ids, err := u.GroupIds(); err == nil {
		for _, id := range ids {
			if g, err := strconv.ParseUint(id, 10, 32); err == nil {
				cred.Groups = append(cred.Groups, uint32(g))
			}
		}
	}

	return &syscall.SysProcAttr{Credential: cred}, nil
}
