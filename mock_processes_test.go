package p4dctl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// sentSignal records one Signal call
type sentSignal struct {
	PID    int
	Signal Signal
}

// mockProcesses is an in-memory process table. Run recognises bootstrap
// invocations (a --pid-file= argument) and "daemonizes" a new fake process,
// writing its PID file the way the server does.
type mockProcesses struct {
	mu sync.Mutex

	nextPID  int
	alive    map[int]bool
	pidFiles map[int]string

	signals []sentSignal
	runs    []Command

	// ignoreTerm leaves processes alive after SIGTERM
	ignoreTerm bool
	// bootstrapCode is returned by bootstrap runs; non-zero spawns nothing
	bootstrapCode int
	// skipPIDFile makes a successful bootstrap write no PID file
	skipPIDFile bool
	// execCode is returned by non-bootstrap runs
	execCode int
	// launchErr fails every Run
	launchErr error
	// onRun is called before a run is processed, outside the lock
	onRun func(Command)
}

func newMockProcesses() *mockProcesses {
	return &mockProcesses{
		nextPID:  1000,
		alive:    make(map[int]bool),
		pidFiles: make(map[int]string),
	}
}

func (m *mockProcesses) Alive(_ context.Context, pid int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alive[pid], nil
}

func (m *mockProcesses) Signal(pid int, sig Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.signals = append(m.signals, sentSignal{PID: pid, Signal: sig})
	if !m.alive[pid] {
		return ErrNoProcess
	}

	switch sig {
	case SignalTerminate:
		if !m.ignoreTerm {
			m.exitLocked(pid)
		}
	case SignalKill:
		m.exitLocked(pid)
	}
	return nil
}

func (m *mockProcesses) exitLocked(pid int) {
	delete(m.alive, pid)
	if path, ok := m.pidFiles[pid]; ok {
		_ = os.Remove(path)
		delete(m.pidFiles, pid)
	}
}

func (m *mockProcesses) Run(_ context.Context, c Command) (int, error) {
	if m.onRun != nil {
		m.onRun(c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, c)
	if m.launchErr != nil {
		return -1, m.launchErr
	}

	pidFile := ""
	for _, arg := range c.Args {
		if strings.HasPrefix(arg, pidFileFlag) {
			pidFile = strings.TrimPrefix(arg, pidFileFlag)
		}
	}
	if pidFile == "" {
		return m.execCode, nil
	}

	if m.bootstrapCode != 0 {
		return m.bootstrapCode, nil
	}

	m.nextPID++
	pid := m.nextPID
	m.alive[pid] = true
	if !m.skipPIDFile {
		if err := WritePIDFile(pidFile, pid); err != nil {
			return -1, err
		}
		m.pidFiles[pid] = pidFile
	}
	return 0, nil
}

// spawn registers a live process that no bootstrap launched
func (m *mockProcesses) spawn() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPID++
	m.alive[m.nextPID] = true
	return m.nextPID
}

func (m *mockProcesses) kill(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exitLocked(pid)
}

func (m *mockProcesses) isAlive(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alive[pid]
}

func (m *mockProcesses) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alive)
}

func (m *mockProcesses) sent() []sentSignal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentSignal(nil), m.signals...)
}

func (m *mockProcesses) commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.runs...)
}

// fastOptions keep waits short enough for unit tests
func fastOptions(procs Processes) []ServiceOption {
	return []ServiceOption{
		WithProcesses(procs),
		WithStopTimeout(200 * time.Millisecond),
		WithKillGrace(200 * time.Millisecond),
		WithPollInterval(5 * time.Millisecond),
		WithPidFileSettle(200 * time.Millisecond),
	}
}

func testConfig(name string) *ServiceConfig {
	return &ServiceConfig{
		Name:       name,
		ServerType: "p4d",
		Execute:    "/opt/perforce/sbin/p4d",
		Args:       "-r /srv/" + name,
		Enabled:    true,
	}
}

// writeConfigFile writes a service config file into dir and returns its path
func writeConfigFile(t *testing.T, dir, file, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
