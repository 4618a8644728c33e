package p4dctl

// Version is the current version of p4dctl. Release builds override it with
// -ldflags "-X github.com/axondata/go-p4dctl.Version=...".
var Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// SyslogTag is the tag quiet mode logs under
	SyslogTag string
	// PidFileFormat describes the PID file naming scheme
	PidFileFormat string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:       Version,
		SyslogTag:     SyslogTag,
		PidFileFormat: PidFilePrefix + "<name>" + PidFileSuffix,
	}
}
