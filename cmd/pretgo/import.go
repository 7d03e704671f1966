package main

import (
	"fmt"
	"os"
	"strings"

	"pretgo/internal/models"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importPeopleCmd)
	importCmd.AddCommand(importItemsCmd)

	importPeopleCmd.Flags().Bool("sync", false, "Synchronise: update known people and deactivate those missing from the file")
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import people or inventory from a CSV file",
}

var importPeopleCmd = &cobra.Command{
	Use:   "people FILE",
	Short: "Import a roster of pupils and staff",
	Long: `Import people from a CSV file (";", "," or tab separated, UTF-8 with or
without BOM). Without --sync only new people are added.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportPeople,
}

var importItemsCmd = &cobra.Command{
	Use:   "items FILE",
	Short: "Import inventory items; known inventory numbers are skipped",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportItems,
}

func runImportPeople(cmd *cobra.Command, args []string) error {
	a, err := openApp("import")
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	mode := models.ImportAdd
	if sync, _ := cmd.Flags().GetBool("sync"); sync {
		mode = models.ImportSync
	}
	res, err := a.svc.People.Import(cmd.Context(), f, mode)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "added: %d, updated: %d, skipped: %d, deactivated: %d\n",
		res.Added, res.Updated, res.Skipped, res.Deactivated)
	if len(res.Protected) > 0 {
		fmt.Fprintf(out, "kept (active loans): %s\n", strings.Join(res.Protected, ", "))
	}
	return nil
}

func runImportItems(cmd *cobra.Command, args []string) error {
	a, err := openApp("import")
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	res, err := a.svc.Inventory.Import(cmd.Context(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added: %d, duplicates: %d\n", res.Added, res.Duplicates)
	return nil
}
