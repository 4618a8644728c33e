// Package p4dctl supervises the Helix Core (p4d) servers configured on one
// host. It discovers service configurations, starts servers through their own
// daemonizing bootstrap, tracks them by PID file, and stops, restarts and
// queries them individually or in bulk.
//
// A Service controls one configured server:
//
//	cfg, err := p4dctl.LoadServiceConfig("/etc/perforce/p4dctl-ng.conf.d/master.conf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc := p4dctl.NewService(cfg, "/run/p4dctl-ng")
//
//	// Launch the bootstrap and adopt the PID it writes
//	err = svc.Start(ctx, true)
//
//	// SIGTERM, then SIGKILL once StopTimeout passes
//	err = svc.Stop(ctx)
//
// Liveness is never cached. IsRunning asks the OS about the last known
// process id on every call, so a server that exits on its own is noticed the
// next time anyone looks.
//
// # Bulk Operations
//
// A Registry indexes services loaded from include directories, and a Manager
// fans lifecycle operations out across it, one goroutine per service:
//
//	reg := p4dctl.NewRegistry("/run/p4dctl-ng")
//	reg.LoadAll([]string{"/etc/perforce/p4dctl-ng.conf.d"})
//
//	mgr := p4dctl.NewManager(reg, p4dctl.WithOpTimeout(time.Minute))
//	report := mgr.Stop(ctx, p4dctl.Selector{All: true})
//	os.Exit(report.ExitCode())
//
// One service failing never prevents the others from being acted on. Every
// outcome, including unknown names, is collected in the Report.
//
// # Process Boundary
//
// All process creation, signal delivery and liveness queries go through the
// Processes interface. OSProcesses is the host implementation; tests supply
// their own.
package p4dctl
