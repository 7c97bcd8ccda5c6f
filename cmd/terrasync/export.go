package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/countygov/terrasync/internal/exportengine"
	"github.com/countygov/terrasync/internal/types"
)

var (
	exportCounty string
	exportFormat string
	exportLayers string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Start, cancel, or inspect GIS exports",
}

var exportStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a GIS export for a county",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := exportengine.CreateExportRequest{
			CountyID:     exportCounty,
			ExportFormat: types.ExportFormat(exportFormat),
			Layers:       splitNonEmpty(exportLayers),
		}
		id, err := theApp.export.StartExport(cmd.Context(), req, "cli")
		if err != nil {
			return err
		}
		printResult(map[string]any{"export_id": id})
		return nil
	},
}

var exportCancelCmd = &cobra.Command{
	Use:   "cancel <export-id>",
	Short: "Request cancellation of a running export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := theApp.export.CancelExport(args[0]); err != nil {
			return err
		}
		printResult(map[string]any{"export_id": args[0], "status": "cancellation_requested"})
		return nil
	},
}

var exportStatusCmd = &cobra.Command{
	Use:   "status <export-id>",
	Short: "Show the current status of a GIS export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := theApp.export.GetExportStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printResult(job)
		return nil
	},
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	exportStartCmd.Flags().StringVar(&exportCounty, "county", "", "County id")
	exportStartCmd.Flags().StringVar(&exportFormat, "format", "geojson", "Export format (shapefile|geojson|kml|csv|geopackage)")
	exportStartCmd.Flags().StringVar(&exportLayers, "layers", "", "Comma-separated layer ids")
	_ = exportStartCmd.MarkFlagRequired("county")
	_ = exportStartCmd.MarkFlagRequired("layers")

	exportCmd.AddCommand(exportStartCmd, exportCancelCmd, exportStatusCmd)
}
