package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axondata/go-p4dctl"
)

func selector(all bool, names []string) (p4dctl.Selector, error) {
	if !all && len(names) == 0 {
		return p4dctl.Selector{}, errors.New("specify service names or --all")
	}
	return p4dctl.Selector{All: all, Names: names}, nil
}

// reportCommon logs the outcomes every bulk command reports the same way
// and returns true when the result was handled.
func (c *cli) reportCommon(res p4dctl.Result) bool {
	switch {
	case res.Outcome == p4dctl.OutcomeNotFound:
		c.logger.Error(fmt.Sprintf("Service '%s' not found.", res.Name))
	case res.Outcome == p4dctl.OutcomeSkipped:
		c.logger.Info(fmt.Sprintf("'%s' p4d service is disabled.", res.Name))
	case errors.Is(res.Err, p4dctl.ErrAlreadyRunning):
		c.logger.Warn(fmt.Sprintf("'%s' p4d service is already running.", res.Name))
	case errors.Is(res.Err, p4dctl.ErrNotRunning):
		c.logger.Warn(fmt.Sprintf("'%s' p4d service not running.", res.Name))
	case errors.Is(res.Err, p4dctl.ErrStopTimeout):
		c.logger.Error(fmt.Sprintf("'%s' p4d service did not stop in time: %v", res.Name, res.Err))
	default:
		return false
	}
	return true
}

func (c *cli) startCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "start [flags] <name>...",
		Short: "Start services",
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selector(all, args)
			if err != nil {
				return err
			}

			report := c.mgr.Start(cmd.Context(), sel, c.quiet)
			for _, res := range report.Results {
				if c.reportCommon(res) {
					continue
				}
				if res.Err != nil {
					c.logger.Error(fmt.Sprintf("'%s' p4d service has error on start: %v", res.Name, res.Err))
					continue
				}
				c.logger.Info(fmt.Sprintf("Started '%s' p4d service.", res.Name))
			}
			c.logger.Info(fmt.Sprintf("Started %d service.", report.Succeeded()))
			return exitCode(report.ExitCode())
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "All servers")
	return cmd
}

func (c *cli) stopCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "stop [flags] <name>...",
		Short: "Stop services",
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selector(all, args)
			if err != nil {
				return err
			}

			report := c.mgr.Stop(cmd.Context(), sel)
			for _, res := range report.Results {
				if c.reportCommon(res) {
					continue
				}
				if res.Err != nil {
					c.logger.Error(fmt.Sprintf("'%s' p4d service has error on stop: %v", res.Name, res.Err))
					continue
				}
				c.logger.Info(fmt.Sprintf("Stopped '%s' p4d service.", res.Name))
			}
			c.logger.Info(fmt.Sprintf("Stopped %d service.", report.Succeeded()))
			return exitCode(report.ExitCode())
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "All servers")
	return cmd
}

func (c *cli) restartCommand() *cobra.Command {
	var all, force bool

	cmd := &cobra.Command{
		Use:   "restart [flags] <name>...",
		Short: "Restart services",
		Long: "Restart services. By default the running server is asked to restart itself;\n" +
			"--force stops it completely and starts a new process. A named service that\n" +
			"is not running is started.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selector(all, args)
			if err != nil {
				return err
			}

			report := c.mgr.Restart(cmd.Context(), sel, force, c.quiet)
			for _, res := range report.Results {
				if c.reportCommon(res) {
					continue
				}
				if res.Err != nil {
					c.logger.Error(fmt.Sprintf("'%s' p4d service has error on restart: %v", res.Name, res.Err))
					continue
				}
				if res.Action == p4dctl.OpStart {
					c.logger.Info(fmt.Sprintf("'%s' p4d service not running, started it.", res.Name))
					continue
				}
				c.logger.Info(fmt.Sprintf("Restarted '%s' p4d service.", res.Name))
			}
			c.logger.Info(fmt.Sprintf("Restarted %d service.", report.Succeeded()))
			return exitCode(report.ExitCode())
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "All servers")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Stop and start instead of signalling a restart")
	return cmd
}

func (c *cli) statusCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "status [flags] <name>...",
		Short: "Show whether services are running",
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selector(all, args)
			if err != nil {
				return err
			}

			report, err := c.mgr.Status(cmd.Context(), sel)
			for _, res := range report.Results {
				switch {
				case res.Outcome == p4dctl.OutcomeNotFound:
					c.logger.Error(fmt.Sprintf("Service '%s' not found.", res.Name))
				case res.Outcome == p4dctl.OutcomeSkipped:
					c.logger.Info(fmt.Sprintf("'%s' p4d service is disabled.", res.Name))
				case res.Running:
					c.logger.Info(fmt.Sprintf("'%s' p4d service is running.", res.Name))
				default:
					c.logger.Info(fmt.Sprintf("'%s' p4d service not running.", res.Name))
				}
			}
			if errors.Is(err, p4dctl.ErrNoServices) {
				c.logger.Error("No services found.")
				return exitCode(p4dctl.ExitCodeNoServices)
			}
			return exitCode(report.ExitCode())
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "All servers")
	return cmd
}

func (c *cli) upgradeCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "upgrade [flags] <name>...",
		Short: "Upgrade server database schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selector(all, args)
			if err != nil {
				return err
			}

			report := c.mgr.Upgrade(cmd.Context(), sel, c.quiet)
			for _, res := range report.Results {
				if c.reportCommon(res) {
					continue
				}
				if res.Err != nil {
					c.logger.Error(fmt.Sprintf("'%s' p4d service has error on upgrade: %v", res.Name, res.Err))
					continue
				}
				c.logger.Info(fmt.Sprintf("Upgraded '%s' p4d service.", res.Name))
			}
			c.logger.Info(fmt.Sprintf("Upgraded %d service.", report.Succeeded()))
			return exitCode(report.ExitCode())
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "All servers")
	return cmd
}
