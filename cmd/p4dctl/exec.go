package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axondata/go-p4dctl"
)

func (c *cli) execCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "exec [flags] <name> [-- <exec args>...]",
		Short: "Run the server executable of a service with extra arguments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, extra := args[0], args[1:]

			code, err := c.mgr.Exec(cmd.Context(), name, extra, force, c.quiet)
			if err != nil {
				return c.singleServiceErr(name, err)
			}
			return exitCode(code)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Execute even if the p4d instance is currently running")
	return cmd
}

func (c *cli) checkpointCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint <name>",
		Short: "Take a journal checkpoint of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := c.mgr.Checkpoint(cmd.Context(), args[0], c.quiet)
			if err != nil {
				return c.singleServiceErr(args[0], err)
			}
			return exitCode(code)
		},
	}
}

func (c *cli) singleServiceErr(name string, err error) error {
	switch {
	case errors.Is(err, p4dctl.ErrNotFound):
		c.logger.Error(fmt.Sprintf("Service '%s' not found.", name))
	case errors.Is(err, p4dctl.ErrAlreadyRunning):
		c.logger.Error(fmt.Sprintf("Service '%s' is running.", name))
	default:
		return err
	}
	return exitCode(1)
}
