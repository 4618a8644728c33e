//go:build !linux && !darwin

// Package unix provides the platform-specific signal and credential
// plumbing used to control supervised server processes.
package unix

import (
	"errors"
	"syscall"
)

// Signals delivered to supervised processes.
const (
	SIGTERM = syscall.Signal(0xf)
	SIGHUP  = syscall.Signal(0x1)
	SIGKILL = syscall.Signal(0x9)
)

// ErrNoProcess reports a signal sent to a process that has already exited
var ErrNoProcess = errors.New("no such process")

var errUnsupported = errors.New("process control not supported on this platform")

// Kill is not supported on this platform
func Kill(_ int, _ syscall.Signal) error {
	return errUnsupported
}

// SysProcAttr is not supported on this platform
func SysProcAttr(owner string) (*syscall.SysProcAttr, error) {
	if owner == "" {
		return nil, nil
	}
	return nil, errUnsupported
}
