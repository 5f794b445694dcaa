package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/whistle/internal/service"
)

func newServiceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the whistle systemd service",
	}
	cmd.AddCommand(newServiceInstallCmd(a))
	return cmd
}

func newServiceInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the whistle systemd service (requires root)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if os.Geteuid() != 0 {
				return errors.New("this command must be run as root")
			}
			execPath, err := os.Executable()
			if err != nil {
				if execPath, err = exec.LookPath("whistle"); err != nil {
					return fmt.Errorf("cannot locate the whistle executable: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Installing whistle service (executable: %s)...\n", execPath)

			res, err := service.NewInstaller(execPath, a.logger.Named("service")).Install(cmd.Context())
			if err != nil {
				return err
			}
			if res.ConfigCreated {
				fmt.Fprintf(out, "Created default config at %s\n", res.ConfigPath)
			} else {
				fmt.Fprintf(out, "Config file %s already exists, left unchanged.\n", res.ConfigPath)
			}
			fmt.Fprintf(out, "Wrote %s\n", res.UnitPath)
			if res.ReloadErr != nil {
				color.New(color.FgYellow).Fprintf(out, "Reloading systemd failed: %v\nRun 'sudo systemctl daemon-reload' manually.\n", res.ReloadErr)
			}

			color.New(color.FgGreen).Fprintln(out, "\nwhistle service installed.")
			fmt.Fprintf(out, "Start it with:  sudo systemctl start %s\n", service.UnitName)
			fmt.Fprintf(out, "Enable on boot: sudo systemctl enable %s\n", service.UnitName)
			return nil
		},
	}
}
