package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pretgo/internal/database"
	"pretgo/internal/logging"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)

	backupCmd.Flags().StringP("output", "o", "", "Archive path (default: <backup.storage_path>/sauvegarde_<date>.pretgo)")
	backupCmd.Flags().Bool("snapshot", false, "Write a database-only snapshot and prune old ones instead of a full archive")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a backup archive of the database, images and documents",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore FILE",
	Short: "Replace the database and files with the content of a backup archive",
	Long: `Restore a .pretgo archive produced by "pretgo backup" or the admin API.
The current database is overwritten; images and documents from the archive
replace files with the same name.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func runBackup(cmd *cobra.Command, _ []string) error {
	a, err := openApp("backup")
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	snapshot, _ := cmd.Flags().GetBool("snapshot")
	if snapshot {
		svc := database.NewBackupService(a.db, a.cfg.Backup, logging.Component(a.base, "backup"))
		path, err := svc.PerformBackup(ctx)
		if err != nil {
			return err
		}
		svc.CleanupOldBackups()
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		dir := a.cfg.Backup.StoragePath
		if dir == "" {
			dir = "."
		}
		output = filepath.Join(dir, "sauvegarde_"+time.Now().Format("20060102_150405")+database.ArchiveExtension)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	summary, err := a.db.WriteArchive(ctx, f, a.layout)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(output)
		return err
	}

	a.logger.Info().
		Str("path", output).
		Int("images", summary.Images).
		Int("documents", summary.Documents).
		Msg("backup archive written")
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	a, err := openApp("restore")
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()
	summary, err := a.db.RestoreArchive(ctx, f, info.Size(), a.layout)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "restored %s: %d image(s), %d document(s), recovery code: %t\n",
		args[0], summary.Images, summary.Documents, summary.Recovery)
	return nil
}
