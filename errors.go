package p4dctl

import (
	"errors"
	"fmt"
)

// Common errors returned by p4dctl operations
var (
	// ErrNotFound indicates no service with the requested name is registered
	ErrNotFound = errors.New("p4dctl: service not found")

	// ErrAlreadyRunning indicates Start was requested for a live service
	ErrAlreadyRunning = errors.New("p4dctl: service already running")

	// ErrNotRunning indicates Stop or a soft restart was requested for a stopped service
	ErrNotRunning = errors.New("p4dctl: service not running")

	// ErrStopTimeout indicates the process did not exit within the stop deadline
	ErrStopTimeout = errors.New("p4dctl: failed to stop within deadline")

	// ErrLaunch indicates the OS could not create the child process
	ErrLaunch = errors.New("p4dctl: launch failed")

	// ErrInvalidConfig indicates a configuration is missing a mandatory field or cannot be parsed
	ErrInvalidConfig = errors.New("p4dctl: invalid config")

	// ErrDuplicate indicates a service name is already registered
	ErrDuplicate = errors.New("p4dctl: duplicate service name")

	// ErrDisabled indicates a named service was skipped because it is disabled
	ErrDisabled = errors.New("p4dctl: service disabled")

	// ErrNoServices indicates a selection resolved to zero services
	ErrNoServices = errors.New("p4dctl: no services matched")
)

// ExitCodeNoServices is the process exit code reported when a status query matched nothing
const ExitCodeNoServices = 4

// OpError represents an error from an operation on one service
type OpError struct {
	// Op is the operation that failed
	Op Operation
	// Service is the service name, or a file path for load errors
	Service string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("p4dctl %s %q: %v", e.Op.String(), e.Service, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// ExitStatusError reports a child process that exited with a non-zero code
type ExitStatusError struct {
	Code int
}

func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// MultiError aggregates multiple errors from bulk operations
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// ExitCode maps an error to a process exit code: 0 for nil, the child's code for
// an ExitStatusError, ExitCodeNoServices for ErrNoServices, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrNoServices) {
		return ExitCodeNoServices
	}
	var exitErr *ExitStatusError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}
