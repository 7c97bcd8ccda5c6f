package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !theApp.cfg.SchedulerEnabled {
			fmt.Println("scheduler disabled (TERRASYNC_SCHEDULER_ENABLED=false), idling until interrupted")
			<-cmd.Context().Done()
			return nil
		}
		theApp.sched.Start()
		fmt.Println("scheduler running, press Ctrl-C to stop")
		<-cmd.Context().Done()
		theApp.sched.Stop()
		return nil
	},
}
