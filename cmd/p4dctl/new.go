package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axondata/go-p4dctl"
)

type newFlags struct {
	port       string
	rootDir    string
	owner      string
	configPath string
	args       string
	ssl        bool
	noSSL      bool
	disabled   bool
	start      bool
	env        map[string]string
}

func (c *cli) newCommand() *cobra.Command {
	f := &newFlags{}

	cmd := &cobra.Command{
		Use:   "new [flags] <name>",
		Short: "Configure a new p4d service",
		Long: "Create the server directory layout and save a service config.\n" +
			"The server root defaults to <DefaultServerRootDirectory>/<name> and the\n" +
			"config to <first include>/<name>.conf.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if err := p4dctl.ValidateServiceName(name); err != nil {
				return err
			}
			if _, ok := c.reg.FindByName(name); ok {
				return fmt.Errorf("%w: service %q already configured", p4dctl.ErrDuplicate, name)
			}

			b := p4dctl.NewServiceBuilder(name, c.app).
				WithPort(f.port).
				WithOwner(f.owner).
				WithArgs(f.args).
				WithDisabled(f.disabled)
			if f.rootDir != "" {
				b.WithBaseDir(f.rootDir)
			}
			if f.configPath != "" {
				b.WithConfigPath(f.configPath)
			}
			switch {
			case f.noSSL:
				b.WithSSL(false)
			case f.ssl:
				b.WithSSL(true)
			}
			for k, v := range f.env {
				b.WithEnv(k, v)
			}

			c.logger.Info(fmt.Sprintf("Configuring p4d service '%s' with the information you specified...", name))

			cfg, err := b.Build()
			if err != nil {
				return err
			}

			svc, err := c.reg.CreateService(cfg)
			if err != nil {
				b.Discard()
				return err
			}
			c.logger.Info(fmt.Sprintf("Service conf file saved as %s", cfg.FilePath))

			if !f.start {
				return nil
			}
			if err := svc.Start(cmd.Context(), c.quiet); err != nil {
				c.logger.Error(fmt.Sprintf("'%s' p4d service has error on start: %v", name, err))
				return exitCode(1)
			}
			c.logger.Info(fmt.Sprintf("Started '%s' p4d service.", name))
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.port, "port", "p", "", "Server address (P4PORT)")
	cmd.Flags().StringVarP(&f.rootDir, "root-directory", "r", "", "Server base directory")
	cmd.Flags().StringVar(&f.owner, "owner", "", "OS user the server runs as")
	cmd.Flags().StringVar(&f.configPath, "config-path", "", "Where to save the service config")
	cmd.Flags().StringVar(&f.args, "args", "", "Fixed arguments passed to the server executable")
	cmd.Flags().BoolVar(&f.ssl, "ssl", false, "Create an SSL directory even for a plaintext port")
	cmd.Flags().BoolVar(&f.noSSL, "no-ssl", false, "Do not create an SSL directory")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "Save the service disabled")
	cmd.Flags().BoolVar(&f.start, "start", false, "Start the server after configuring it")
	cmd.Flags().StringToStringVarP(&f.env, "env", "e", nil, "Extra environment variables (KEY=VALUE)")
	cmd.MarkFlagsMutuallyExclusive("ssl", "no-ssl")
	_ = cmd.MarkFlagRequired("port")

	return cmd
}
