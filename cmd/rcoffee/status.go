package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rkuchma96/rcoffee/internal/daemon"
	"github.com/rkuchma96/rcoffee/internal/domain"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether an rcoffee daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			pidPath, err := daemon.DefaultPIDPath()
			if err != nil {
				return err
			}

			pidFile := daemon.NewPIDFile(pidPath)
			running, err := pidFile.IsRunning()
			if err != nil {
				if errors.Is(err, domain.ErrDaemonNotRunning) {
					fmt.Fprintln(cmd.OutOrStdout(), "daemon is not running")
					return nil
				}
				return err
			}

			if running {
				pid, _ := pidFile.Read()
				fmt.Fprintf(cmd.OutOrStdout(), "daemon is running (pid %d)\n", pid)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "daemon is not running (stale PID file)")
			}
			return nil
		},
	}
}
