package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.Flags().Bool("json", false, "Print the report as JSON")
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List overdue loans",
	Args:  cobra.NoArgs,
	RunE:  runAlerts,
}

func runAlerts(cmd *cobra.Command, _ []string) error {
	a, err := openApp("alerts")
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.svc.Alerts.Scan(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "%d overdue of %d active loan(s) (default %v %s, end of day %s)\n",
		len(report.Alerts), report.Active, report.Duration, report.Unit, report.Cutoff)
	if len(report.Alerts) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMPRUNTEUR\tOBJETS\tEMPRUNT\tRETOUR PREVU\tRETARD")
	for i := range report.Alerts {
		l := &report.Alerts[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.BorrowerName(), l.Description, l.StartedAt, l.DueAt, l.OverdueLabel)
	}
	return tw.Flush()
}
