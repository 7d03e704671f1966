package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"pretgo/internal/export"

	"github.com/spf13/cobra"
)

// kindWorkbook selects the XLSX export.
const kindWorkbook = "xlsx"

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", `Output file, "-" for stdout (default: <exports.path>/<generated name>)`)
}

var exportCmd = &cobra.Command{
	Use:       "export KIND",
	Short:     "Export loans, alerts, people or inventory",
	Long:      `KIND is one of loans, active, alerts, people, items (CSV) or xlsx (loans and alerts workbook).`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{export.KindLoans, export.KindActive, export.KindAlerts, export.KindPeople, export.KindItems, kindWorkbook},
	RunE:      runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp("export")
	if err != nil {
		return err
	}
	defer a.Close()

	kind := args[0]
	write := func(ctx context.Context, w io.Writer) error { return a.svc.ExportCSV(ctx, w, kind) }
	filename := export.Filename(kind, "csv", time.Now())
	if kind == kindWorkbook {
		write = a.svc.ExportWorkbook
		filename = export.Filename(export.KindLoans, "xlsx", time.Now())
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "-" {
		return write(cmd.Context(), cmd.OutOrStdout())
	}
	if output == "" {
		output = filepath.Join(a.cfg.Exports.Path, filename)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	err = write(cmd.Context(), f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(output)
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
