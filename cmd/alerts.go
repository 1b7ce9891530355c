package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/parent-watch/internal/alert"
	"github.com/sells-group/parent-watch/internal/store"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect alert history",
}

// -- alerts list --

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded alerts, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		records, err := queryAlerts(cmd)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No alerts found.")
			return nil
		}
		formatAlertsList(cmd.OutOrStdout(), records)
		return nil
	},
}

// -- alerts export --

var alertsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export alert history to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return eris.New("--out is required")
		}
		records, err := queryAlerts(cmd)
		if err != nil {
			return err
		}
		if err := writeAlertsXLSX(out, records); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d alerts to %s\n", len(records), out)
		return err
	},
}

func queryAlerts(cmd *cobra.Command) ([]store.AlertRecord, error) {
	ctx := cmd.Context()

	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("alert history is disabled (store.driver is empty)")
	}
	defer st.Close() //nolint:errcheck

	subject, _ := cmd.Flags().GetString("subject")
	active, _ := cmd.Flags().GetBool("active")
	limit, _ := cmd.Flags().GetInt("limit")

	records, err := st.ListAlerts(ctx, store.AlertFilter{Subject: subject, ActiveOnly: active, Limit: limit})
	return records, eris.Wrap(err, "alerts list")
}

// formatAlertsList writes a tabular list of alerts to out.
func formatAlertsList(out io.Writer, records []store.AlertRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RAISED\tSUBJECT\tZONE\tDISTANCE_M\tEXPECTED\tCLEARED")
	for _, r := range records {
		cleared := "-"
		if r.ClearedAt != nil {
			cleared = r.ClearedAt.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.RaisedAt.Format(time.RFC3339), r.Subject, r.Zone, alert.RoundMeters(r.DistanceMeters), r.ExpectedZone, cleared)
	}
	_ = w.Flush()
}

var alertsXLSXHeader = []string{"ID", "Raised", "Subject", "Zone", "Distance (m)", "Expected zone", "Cleared", "Message"}

// writeAlertsXLSX writes records to a single-sheet workbook at path.
func writeAlertsXLSX(path string, records []store.AlertRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Alerts")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range alertsXLSXHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(r.ID)
		row.AddCell().SetString(r.RaisedAt.UTC().Format(time.RFC3339))
		row.AddCell().SetString(r.Subject)
		row.AddCell().SetString(r.Zone)
		row.AddCell().SetInt(alert.RoundMeters(r.DistanceMeters))
		row.AddCell().SetString(r.ExpectedZone)
		cleared := row.AddCell()
		if r.ClearedAt != nil {
			cleared.SetString(r.ClearedAt.UTC().Format(time.RFC3339))
		}
		row.AddCell().SetString(r.Message)
	}

	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func addAlertFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("subject", "", "filter by subject name")
	cmd.Flags().Bool("active", false, "only alerts that have not cleared")
	cmd.Flags().Int("limit", 100, "max number of alerts")
}

func init() {
	addAlertFilterFlags(alertsListCmd)
	addAlertFilterFlags(alertsExportCmd)
	alertsExportCmd.Flags().String("out", "", "output .xlsx path")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsExportCmd)
	rootCmd.AddCommand(alertsCmd)
}
