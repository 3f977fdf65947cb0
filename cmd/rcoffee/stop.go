package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rkuchma96/rcoffee/internal/daemon"
)

func init() {
	rootCmd.AddCommand(newStopCmd())
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running rcoffee daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			pidPath, err := daemon.DefaultPIDPath()
			if err != nil {
				return err
			}

			pidFile := daemon.NewPIDFile(pidPath)
			pid, err := pidFile.Read()
			if err != nil {
				return err
			}

			if err := pidFile.Kill(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent stop signal to daemon (pid %d)\n", pid)
			return nil
		},
	}
}
