// Command p4dctl controls the Helix Core servers configured on this host.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/axondata/go-p4dctl"
	"github.com/axondata/go-p4dctl/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cli holds state shared by every subcommand of one invocation
type cli struct {
	configPath string
	quiet      bool
	debug      bool
	jobs       int

	stdout io.Writer
	stderr io.Writer

	logger *zap.Logger
	app    *p4dctl.AppConfig
	reg    *p4dctl.Registry
	mgr    *p4dctl.Manager
}

// exitError carries an exit code that is not derived from an error kind
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}

	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	if c.logger != nil {
		c.logger.Error(err.Error())
	} else {
		fmt.Fprintln(stderr, err)
	}
	return p4dctl.ExitCode(err)
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "p4dctl",
		Short:         "Control the Helix Core servers configured on this host",
		Version:       p4dctl.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Application config file (default $"+p4dctl.ConfigEnvVar+" or "+p4dctl.DefaultConfigFile+")")
	root.PersistentFlags().BoolVarP(&c.quiet, "quiet", "q", false, "Send output to syslog instead of STDOUT or STDERR")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "Enable debug output")
	root.PersistentFlags().IntVarP(&c.jobs, "jobs", "j", 0, "Maximum concurrent operations in bulk commands (0 = unlimited)")

	root.AddCommand(
		c.newCommand(),
		c.startCommand(),
		c.stopCommand(),
		c.restartCommand(),
		c.listCommand(),
		c.statusCommand(),
		c.checkpointCommand(),
		c.execCommand(),
		c.upgradeCommand(),
	)

	return root
}

// setup builds the logger, loads the application config and discovers services.
// A config problem is fatal before any command runs.
func (c *cli) setup() error {
	logger, err := logging.New(logging.Options{
		Quiet:  c.quiet,
		Debug:  c.debug,
		Tag:    p4dctl.SyslogTag,
		Stdout: c.stdout,
		Stderr: c.stderr,
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	c.logger = logger

	path := p4dctl.ResolveConfigPath(c.configPath)
	app, err := p4dctl.LoadAppConfig(path)
	if err != nil {
		return err
	}
	c.app = app
	logger.Debug("loaded config", zap.String("path", path))

	svcOpts := append(app.ServiceOptions(), p4dctl.WithLogger(logger))
	c.reg = p4dctl.NewRegistry(app.PidFileDirectory,
		p4dctl.WithServiceOptions(svcOpts...),
		p4dctl.WithRegistryLogger(logger),
	)

	stats := c.reg.LoadAll(app.Includes)
	for _, issue := range stats.Issues {
		logger.Debug("discovery", zap.String("path", issue.Path), zap.Error(issue.Err))
	}
	logger.Debug("discovered services",
		zap.Int("scanned", stats.Scanned),
		zap.Int("loaded", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("duplicates", stats.Duplicates))

	c.mgr = p4dctl.NewManager(c.reg,
		p4dctl.WithConcurrency(c.jobs),
		p4dctl.WithManagerLogger(logger),
	)
	return nil
}

// exitCode turns a non-zero code into an error the root command reports silently
func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return &exitError{code: code}
}
