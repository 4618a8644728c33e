package p4dctl

import (
	"io/fs"
	"time"
)

// File and naming constants
const (
	// ConfigFileExt is the extension of service configuration files in include directories
	ConfigFileExt = ".conf"

	// SyslogTag identifies p4dctl messages in the system log
	SyslogTag = "p4dctl-ng"

	// PidFilePrefix and PidFileSuffix frame the service name in PID file names
	PidFilePrefix = "p4d."
	PidFileSuffix = ".pid"

	// UnknownPID marks a service whose process id has never been resolved
	UnknownPID = -1

	// DefaultStopTimeout bounds the wait for a process to exit after SIGTERM
	DefaultStopTimeout = 30 * time.Second

	// DefaultKillGrace bounds the wait for a process to exit after SIGKILL
	DefaultKillGrace = 5 * time.Second

	// DefaultPollInterval is the liveness polling interval while waiting for exit
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultPidFileSettle bounds the wait for the PID file after a successful bootstrap
	DefaultPidFileSettle = 2 * time.Second
)

// Bootstrap flags understood by the supervised server executable
const (
	pidFileFlag = "--pid-file="
	daemonFlag  = "-d"

	// CheckpointFlag requests a journal checkpoint
	CheckpointFlag = "-jc"

	// UpgradeFlag requests a database schema upgrade
	UpgradeFlag = "-xu"
)

// Well-known environment variables carried in service configs
const (
	EnvPort   = "P4PORT"
	EnvRoot   = "P4ROOT"
	EnvTarget = "P4TARGET"
	EnvSSLDir = "P4SSLDIR"

	EnvJournal = "P4JOURNAL"
	EnvLog     = "P4LOG"
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode fs.FileMode = 0o755

	// FileMode is the default mode for written config and PID files
	FileMode fs.FileMode = 0o644

	// PrivateDirMode is used for server root layouts
	PrivateDirMode fs.FileMode = 0o700
)

// Operation represents a lifecycle operation on a service
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpStart launches the service through its bootstrap process
	OpStart
	// OpStop terminates the service and waits for it to exit
	OpStop
	// OpRestart performs a soft or hard restart
	OpRestart
	// OpReload sends the reload signal
	OpReload
	// OpKill sends SIGKILL after a stop deadline
	OpKill
	// OpExec runs the server executable to completion
	OpExec
	// OpStatus checks liveness
	OpStatus
	// OpLoad reads a configuration file
	OpLoad
	// OpCreate registers and persists a new service
	OpCreate
)

// Operation string constants
const (
	opUnknownStr = "unknown"
	opStartStr   = "start"
	opStopStr    = "stop"
	opRestartStr = "restart"
	opReloadStr  = "reload"
	opKillStr    = "kill"
	opExecStr    = "exec"
	opStatusStr  = "status"
	opLoadStr    = "load"
	opCreateStr  = "create"
)

// String returns the string representation of an Operation
func (op Operation) String() string {
	switch op {
	case OpStart:
		return opStartStr
	case OpStop:
		return opStopStr
	case OpRestart:
		return opRestartStr
	case OpReload:
		return opReloadStr
	case OpKill:
		return opKillStr
	case OpExec:
		return opExecStr
	case OpStatus:
		return opStatusStr
	case OpLoad:
		return opLoadStr
	case OpCreate:
		return opCreateStr
	default:
		return opUnknownStr
	}
}

// ServerType identifies the kind of server a config describes
type ServerType int

const (
	// ServerTypeUnknown is any type string this build does not know
	ServerTypeUnknown ServerType = iota
	// ServerTypeP4D is a Helix Core server
	ServerTypeP4D
)

const (
	serverTypeUnknownStr = "unknown"
	serverTypeP4DStr     = "p4d"
)

// ParseServerType maps a config string to a ServerType
func ParseServerType(s string) ServerType {
	switch s {
	case serverTypeP4DStr:
		return ServerTypeP4D
	default:
		return ServerTypeUnknown
	}
}

// String returns the string representation of ServerType
func (st ServerType) String() string {
	switch st {
	case ServerTypeP4D:
		return serverTypeP4DStr
	case ServerTypeUnknown:
		fallthrough
	default:
		return serverTypeUnknownStr
	}
}
