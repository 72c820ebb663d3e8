package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNoStateFile = errors.New("no state file configured, test mode cannot be persisted")

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func newTestModeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "test-mode [on|off|toggle]",
		Short:     "Show or change the persisted test mode",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd, opts)
			if err != nil {
				return err
			}
			defer svc.Close()

			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), onOff(svc.Orchestrator.TestMode()))
				return nil
			}
			if svc.Settings == nil {
				return errNoStateFile
			}

			switch args[0] {
			case "toggle":
				_, err = svc.Settings.Toggle()
			default:
				err = svc.SetTestMode(args[0] == "on")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), onOff(svc.Orchestrator.TestMode()))
			return nil
		},
	}
}
