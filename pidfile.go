package p4dctl

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// PIDState is what is known about a service's process id
type PIDState int

const (
	// PIDUnknown means no process id has been resolved
	PIDUnknown PIDState = iota
	// PIDUnchecked means a process id is known but liveness has not been asked of the OS
	PIDUnchecked
	// PIDAlive means the OS reported the process alive on the last query
	PIDAlive
	// PIDDead means the OS confirmed the process is gone
	PIDDead
)

// String returns the string representation of a PIDState
func (s PIDState) String() string {
	switch s {
	case PIDUnchecked:
		return "unchecked"
	case PIDAlive:
		return "alive"
	case PIDDead:
		return "dead"
	default:
		return "unknown"
	}
}

// PidFilePath returns the deterministic PID file path for a service name
func PidFilePath(dir, name string) string {
	return filepath.Join(dir, PidFilePrefix+name+PidFileSuffix)
}

// ParsePID decodes PID file content. Non-numeric, negative or zero content
// yields UnknownPID.
func ParsePID(data []byte) int {
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return UnknownPID
	}
	return pid
}

// ReadPIDFile reads a PID file. A missing or unreadable file yields UnknownPID.
func ReadPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return UnknownPID
	}
	return ParsePID(data)
}

// WritePIDFile atomically writes pid as decimal text followed by a newline
func WritePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return err
	}
	return renameio.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), FileMode)
}
