package database

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// Entries of a .pretgo archive.
const (
	ArchiveExtension    = ".pretgo"
	ArchiveDBEntry      = "gestion_prets.db"
	ArchiveUploadsDir   = "uploads/materiel/"
	ArchiveDocumentsDir = "documents/"
	ArchiveRecoveryFile = "code_recuperation.txt"
)

var ErrInvalidArchive = errors.New("invalid backup archive")

// ArchiveLayout tells where the files bundled with the database live.
// Empty paths are skipped.
type ArchiveLayout struct {
	UploadsDir   string
	DocumentsDir string
	RecoveryFile string
}

// ArchiveSummary counts what an archive contained.
type ArchiveSummary struct {
	Images    int  `json:"images"`
	Documents int  `json:"documents"`
	Recovery  bool `json:"recovery_code"`
}

// WriteArchive streams a zip with a database snapshot and the installation files.
func (db *DB) WriteArchive(ctx context.Context, w io.Writer, layout ArchiveLayout) (*ArchiveSummary, error) {
	tmp := filepath.Join(os.TempDir(), "pretgo-"+uuid.NewString()+".db")
	if err := db.Snapshot(ctx, tmp); err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	zw := zip.NewWriter(w)
	summary := &ArchiveSummary{}

	if err := addFile(zw, tmp, ArchiveDBEntry); err != nil {
		return nil, err
	}

	n, err := addDir(zw, layout.UploadsDir, ArchiveUploadsDir, false)
	if err != nil {
		return nil, err
	}
	summary.Images = n

	n, err = addDir(zw, layout.DocumentsDir, ArchiveDocumentsDir, true)
	if err != nil {
		return nil, err
	}
	summary.Documents = n

	if layout.RecoveryFile != "" {
		if _, err := os.Stat(layout.RecoveryFile); err == nil {
			if err := addFile(zw, layout.RecoveryFile, ArchiveRecoveryFile); err != nil {
				return nil, err
			}
			summary.Recovery = true
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	db.logger.Info().Int("images", summary.Images).Int("documents", summary.Documents).Msg("Backup archive written")
	return summary, nil
}

func addFile(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func addDir(zw *zip.Writer, dir, prefix string, recursive bool) (int, error) {
	if dir == "" {
		return 0, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	count := 0
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		count++
		return addFile(zw, p, prefix+filepath.ToSlash(rel))
	})
	return count, err
}

// safeEntry rejects absolute names and names escaping the archive root.
func safeEntry(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, ":") {
		return "", fmt.Errorf("%w: unsafe entry %q", ErrInvalidArchive, name)
	}
	return clean, nil
}

// RestoreArchive replaces the database and the bundled files with the
// content of an archive, then runs migrations on the restored data.
func (db *DB) RestoreArchive(ctx context.Context, r io.ReaderAt, size int64, layout ArchiveLayout) (*ArchiveSummary, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	var dbEntry *zip.File
	for _, f := range zr.File {
		name, err := safeEntry(f.Name)
		if err != nil {
			return nil, err
		}
		if name == ArchiveDBEntry {
			dbEntry = f
		}
	}
	if dbEntry == nil {
		return nil, fmt.Errorf("%w: %s is missing", ErrInvalidArchive, ArchiveDBEntry)
	}

	tmp := filepath.Join(os.TempDir(), "pretgo-restore-"+uuid.NewString()+".db")
	if err := extractTo(dbEntry, tmp); err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	if err := db.restoreFrom(ctx, tmp); err != nil {
		return nil, err
	}

	summary := &ArchiveSummary{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, _ := safeEntry(f.Name)
		var dst string
		switch {
		case strings.HasPrefix(name, ArchiveUploadsDir) && layout.UploadsDir != "":
			dst = filepath.Join(layout.UploadsDir, filepath.Base(name))
			summary.Images++
		case strings.HasPrefix(name, ArchiveDocumentsDir) && layout.DocumentsDir != "":
			dst = filepath.Join(layout.DocumentsDir, filepath.FromSlash(strings.TrimPrefix(name, ArchiveDocumentsDir)))
			summary.Documents++
		case name == ArchiveRecoveryFile && layout.RecoveryFile != "":
			dst = layout.RecoveryFile
			summary.Recovery = true
		default:
			continue
		}
		if err := extractTo(f, dst); err != nil {
			return nil, err
		}
	}

	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate restored database: %w", err)
	}
	db.logger.Info().Int("images", summary.Images).Int("documents", summary.Documents).Msg("Backup archive restored")
	return summary, nil
}

func extractTo(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// restoreFrom copies the database file at src over the live database with
// the SQLite online backup API, so open handles stay valid.
func (db *DB) restoreFrom(ctx context.Context, src string) error {
	srcDB, err := sql.Open("sqlite3", src)
	if err != nil {
		return fmt.Errorf("failed to open restored database: %w", err)
	}
	defer srcDB.Close()

	var tables int
	if err := srcDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('prets', 'personnes')`).Scan(&tables); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	if tables < 2 {
		return fmt.Errorf("%w: not a loan database", ErrInvalidArchive)
	}

	srcConn, err := srcDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open restored database: %w", err)
	}
	defer srcConn.Close()

	dstConn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire database connection: %w", err)
	}
	defer dstConn.Close()

	return srcConn.Raw(func(srcRaw any) error {
		return dstConn.Raw(func(dstRaw any) error {
			from, ok := srcRaw.(*sqlite3.SQLiteConn)
			to, ok2 := dstRaw.(*sqlite3.SQLiteConn)
			if !ok || !ok2 {
				return errors.New("unexpected sqlite driver connection")
			}
			backup, err := to.Backup("main", from, "main")
			if err != nil {
				return fmt.Errorf("failed to start restore: %w", err)
			}
			if _, err := backup.Step(-1); err != nil {
				_ = backup.Finish()
				return fmt.Errorf("failed to restore database: %w", err)
			}
			return backup.Finish()
		})
	})
}
