package p4dctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ServiceSuite struct {
	suite.Suite

	ctx    context.Context
	pidDir string
	procs  *mockProcesses
	svc    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.pidDir = s.T().TempDir()
	s.procs = newMockProcesses()
	s.svc = NewService(testConfig("master"), s.pidDir, fastOptions(s.procs)...)
}

func (s *ServiceSuite) TestNewServiceDerivesPidFile() {
	s.Equal(filepath.Join(s.pidDir, "p4d.master.pid"), s.svc.PidFilePath)
	s.Equal(UnknownPID, s.svc.ProcessID())
	s.Equal(PIDUnknown, s.svc.PIDState(s.ctx))
	s.False(s.svc.IsRunning(s.ctx))
}

func (s *ServiceSuite) TestNewServiceAdoptsExistingPidFile() {
	pid := s.procs.spawn()
	s.Require().NoError(WritePIDFile(PidFilePath(s.pidDir, "edge"), pid))

	svc := NewService(testConfig("edge"), s.pidDir, fastOptions(s.procs)...)
	s.Equal(pid, svc.ProcessID())
	s.True(svc.IsRunning(s.ctx))
}

func (s *ServiceSuite) TestNonNumericPidFileIsUnknown() {
	path := PidFilePath(s.pidDir, "edge")
	s.Require().NoError(os.WriteFile(path, []byte("not-a-pid\n"), 0o644))

	svc := NewService(testConfig("edge"), s.pidDir, fastOptions(s.procs)...)
	s.Equal(UnknownPID, svc.ProcessID())
	s.False(svc.IsRunning(s.ctx))
}

func (s *ServiceSuite) TestStartLaunchesBootstrapAndAdoptsPID() {
	s.Require().NoError(s.svc.Start(s.ctx, true))

	s.True(s.svc.IsRunning(s.ctx))
	s.Equal(PIDAlive, s.svc.PIDState(s.ctx))
	s.Equal(ReadPIDFile(s.svc.PidFilePath), s.svc.ProcessID())

	cmds := s.procs.commands()
	s.Require().Len(cmds, 1)
	s.Equal("/opt/perforce/sbin/p4d", cmds[0].Path)
	s.Equal([]string{"-r", "/srv/master", "--pid-file=" + s.svc.PidFilePath, "-d"}, cmds[0].Args)
	s.True(cmds[0].Silent)
}

func (s *ServiceSuite) TestStartWhileRunningFails() {
	s.Require().NoError(s.svc.Start(s.ctx, true))
	pid := s.svc.ProcessID()

	err := s.svc.Start(s.ctx, true)
	s.ErrorIs(err, ErrAlreadyRunning)

	s.Len(s.procs.commands(), 1, "no second bootstrap")
	s.Equal(pid, s.svc.ProcessID())
}

func (s *ServiceSuite) TestStartBootstrapFailure() {
	s.procs.bootstrapCode = 3

	err := s.svc.Start(s.ctx, true)
	var exitErr *ExitStatusError
	s.Require().ErrorAs(err, &exitErr)
	s.Equal(3, exitErr.Code)
	s.Equal(3, ExitCode(err))
	s.False(s.svc.IsRunning(s.ctx))
}

func (s *ServiceSuite) TestStartLaunchFailure() {
	s.procs.launchErr = errors.New("exec format error")

	err := s.svc.Start(s.ctx, true)
	s.ErrorIs(err, ErrLaunch)

	var opErr *OpError
	s.Require().ErrorAs(err, &opErr)
	s.Equal(OpStart, opErr.Op)
	s.Equal("master", opErr.Service)
}

func (s *ServiceSuite) TestStartWithoutPidFileLeavesPIDUnknown() {
	s.procs.skipPIDFile = true

	s.Require().NoError(s.svc.Start(s.ctx, true))
	s.Equal(UnknownPID, s.svc.ProcessID())
	s.False(s.svc.IsRunning(s.ctx))
}

func (s *ServiceSuite) TestStartWithStalePidFileLeavesPIDUnknown() {
	s.procs.skipPIDFile = true
	s.Require().NoError(WritePIDFile(s.svc.PidFilePath, 99999))

	s.Require().NoError(s.svc.Start(s.ctx, true))
	s.Equal(UnknownPID, s.svc.ProcessID())
	s.False(s.svc.IsRunning(s.ctx))
}

func (s *ServiceSuite) TestRefreshAdoptsPidFile() {
	pid := s.procs.spawn()
	s.Require().NoError(WritePIDFile(s.svc.PidFilePath, pid))

	s.Equal(UnknownPID, s.svc.ProcessID())
	s.Equal(pid, s.svc.Refresh())
	s.True(s.svc.IsRunning(s.ctx))

	s.Require().NoError(os.Remove(s.svc.PidFilePath))
	s.Equal(UnknownPID, s.svc.Refresh())
}

func (s *ServiceSuite) TestStopResetsPID() {
	s.Require().NoError(s.svc.Start(s.ctx, true))
	pid := s.svc.ProcessID()

	s.Require().NoError(s.svc.Stop(s.ctx))

	s.Equal(UnknownPID, s.svc.ProcessID())
	s.False(s.svc.IsRunning(s.ctx))
	s.False(s.procs.isAlive(pid))
	s.Equal([]sentSignal{{PID: pid, Signal: SignalTerminate}}, s.procs.sent())
}

func (s *ServiceSuite) TestStopWhenNotRunning() {
	err := s.svc.Stop(s.ctx)
	s.ErrorIs(err, ErrNotRunning)
	s.Empty(s.procs.sent())
}

func (s *ServiceSuite) TestStopAfterExternalExit() {
	s.Require().NoError(s.svc.Start(s.ctx, true))
	s.procs.kill(s.svc.ProcessID())

	s.ErrorIs(s.svc.Stop(s.ctx), ErrNotRunning)
	s.Equal(PIDDead, s.svc.PIDState(s.ctx))
}

func (s *ServiceSuite) TestStopTimeoutEscalatesToKill() {
	s.procs.ignoreTerm = true
	s.Require().NoError(s.svc.Start(s.ctx, true))
	pid := s.svc.ProcessID()

	start := time.Now()
	err := s.svc.Stop(s.ctx)
	s.ErrorIs(err, ErrStopTimeout)
	s.GreaterOrEqual(time.Since(start), s.svc.StopTimeout)

	s.False(s.procs.isAlive(pid))
	s.Equal(UnknownPID, s.svc.ProcessID())
	s.Equal([]sentSignal{
		{PID: pid, Signal: SignalTerminate},
		{PID: pid, Signal: SignalKill},
	}, s.procs.sent())
}

func (s *ServiceSuite) TestStopHonoursContext() {
	s.procs.ignoreTerm = true
	s.svc.StopTimeout = time.Minute
	s.Require().NoError(s.svc.Start(s.ctx, true))

	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()

	err := s.svc.Stop(ctx)
	s.ErrorIs(err, context.DeadlineExceeded)
	s.True(s.svc.IsRunning(s.ctx))
}

func (s *ServiceSuite) TestSoftRestartSendsOneReloadSignal() {
	s.Require().NoError(s.svc.Start(s.ctx, true))
	pid := s.svc.ProcessID()

	s.Require().NoError(s.svc.Restart(s.ctx, false, true))

	s.Equal([]sentSignal{{PID: pid, Signal: SignalReload}}, s.procs.sent())
	s.Equal(pid, s.svc.ProcessID())
	s.True(s.svc.IsRunning(s.ctx))
	s.Len(s.procs.commands(), 1, "soft restart launches nothing")
}

func (s *ServiceSuite) TestHardRestartNeverOverlaps() {
	s.Require().NoError(s.svc.Start(s.ctx, true))
	oldPID := s.svc.ProcessID()

	var overlapped bool
	s.procs.onRun = func(Command) {
		if s.procs.isAlive(oldPID) {
			overlapped = true
		}
	}

	s.Require().NoError(s.svc.Restart(s.ctx, true, true))

	s.False(overlapped, "new bootstrap launched while old process alive")
	s.NotEqual(oldPID, s.svc.ProcessID())
	s.True(s.svc.IsRunning(s.ctx))
	s.Equal(1, s.procs.liveCount())
}

func (s *ServiceSuite) TestHardRestartStartsAfterForcedKill() {
	s.procs.ignoreTerm = true
	s.Require().NoError(s.svc.Start(s.ctx, true))
	oldPID := s.svc.ProcessID()

	err := s.svc.Restart(s.ctx, true, true)
	s.ErrorIs(err, ErrStopTimeout)

	s.False(s.procs.isAlive(oldPID))
	s.NotEqual(oldPID, s.svc.ProcessID())
	s.NotEqual(UnknownPID, s.svc.ProcessID())
	s.True(s.svc.IsRunning(s.ctx))
	s.Len(s.procs.commands(), 2)
}

func (s *ServiceSuite) TestHardRestartKeepsSilent() {
	s.Require().NoError(s.svc.Start(s.ctx, true))
	s.Require().NoError(s.svc.Restart(s.ctx, true, true))

	cmds := s.procs.commands()
	s.Require().Len(cmds, 2)
	s.True(cmds[1].Silent)
}

func (s *ServiceSuite) TestRestartWhenNotRunning() {
	s.ErrorIs(s.svc.Restart(s.ctx, false, true), ErrNotRunning)
	s.ErrorIs(s.svc.Restart(s.ctx, true, true), ErrNotRunning)
	s.Empty(s.procs.commands())
}

func (s *ServiceSuite) TestReload() {
	s.ErrorIs(s.svc.Reload(s.ctx), ErrNotRunning)

	s.Require().NoError(s.svc.Start(s.ctx, true))
	s.Require().NoError(s.svc.Reload(s.ctx))
	s.Equal(SignalReload, s.procs.sent()[0].Signal)
}

func (s *ServiceSuite) TestExecAppendsArgsAndKeepsPID() {
	s.procs.execCode = 7

	code, err := s.svc.Exec(s.ctx, []string{"-jc"}, false)
	s.Require().NoError(err)
	s.Equal(7, code)
	s.Equal(UnknownPID, s.svc.ProcessID())

	cmds := s.procs.commands()
	s.Require().Len(cmds, 1)
	s.Equal([]string{"-r", "/srv/master", "-jc"}, cmds[0].Args)
	s.False(cmds[0].Silent)
}

func (s *ServiceSuite) TestEnvironmentOverlay() {
	global := "global"
	s.svc.Config.SetEnv(EnvPort, "ssl:1666")
	svc := NewService(s.svc.Config, s.pidDir, append(fastOptions(s.procs),
		WithEnvironment(map[string]*string{"P4DEBUG": &global, EnvPort: &global}))...)

	_, err := svc.Exec(s.ctx, nil, true)
	s.Require().NoError(err)

	env := s.procs.commands()[0].Env
	s.Contains(env, "P4DEBUG=global")
	s.Contains(env, "P4PORT=ssl:1666", "service environment overrides the global overlay")
}

func TestMergeEnv(t *testing.T) {
	v := "2"
	got := mergeEnv(
		[]string{"A=1", "B=1", "C=1"},
		map[string]*string{"B": &v},
		map[string]*string{"C": nil, "D": &v},
	)
	require.Equal(t, []string{"A=1", "B=2", "D=2"}, got)
}

func TestSignalString(t *testing.T) {
	require.Equal(t, "TERM", SignalTerminate.String())
	require.Equal(t, "HUP", SignalReload.String())
	require.Equal(t, "KILL", SignalKill.String())
}
