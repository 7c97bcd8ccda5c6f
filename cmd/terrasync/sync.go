package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Start, cancel, or inspect sync operations",
}

var syncStartCmd = &cobra.Command{
	Use:   "start <pair-id>",
	Short: "Start a sync operation for the named pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := theApp.sync.StartOperation(cmd.Context(), args[0], "cli", nil)
		if err != nil {
			return err
		}
		printResult(map[string]any{"operation_id": id})
		return nil
	},
}

var syncCancelCmd = &cobra.Command{
	Use:   "cancel <operation-id>",
	Short: "Request cancellation of a running sync operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := theApp.sync.CancelOperation(args[0]); err != nil {
			return err
		}
		printResult(map[string]any{"operation_id": args[0], "status": "cancellation_requested"})
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status <operation-id>",
	Short: "Show the current status of a sync operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := theApp.sync.GetOperationStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printResult(op)
		return nil
	},
}

func init() {
	syncCmd.AddCommand(syncStartCmd, syncCancelCmd, syncStatusCmd)
}

func printResult(v any) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	fmt.Printf("%+v\n", v)
}
