package database

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pretgo/internal/config"
	"pretgo/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	storagePath := filepath.Join(tempDir, "backups")
	logger := zerolog.Nop()

	db, err := NewDB(filepath.Join(tempDir, "gestion_prets.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	s := NewBackupService(db, config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, path)

		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "gestion_prets_20000101_000000.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		unrelated := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(unrelated, oldTime, oldTime))

		s.CleanupOldBackups()

		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, unrelated)
	})

	t.Run("Loop", func(t *testing.T) {
		cfg := config.BackupConfig{Enabled: true, Interval: 10 * time.Millisecond, StoragePath: filepath.Join(tempDir, "loop")}
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		NewBackupService(db, cfg, &logger).Start(ctx)

		files, err := os.ReadDir(cfg.StoragePath)
		require.NoError(t, err)
		assert.NotEmpty(t, files)
	})
}

func TestBackupService_Disabled(_ *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}

func TestBackupService_StorageError(t *testing.T) {
	db := setupTestDB(t)
	tmpFile := filepath.Join(t.TempDir(), "notadir")
	require.NoError(t, os.WriteFile(tmpFile, nil, 0o644))

	logger := zerolog.Nop()
	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: filepath.Join(tmpFile, "sub")}, &logger)

	_, err := s.PerformBackup(context.Background())
	assert.Error(t, err)
}

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupTestDB(t)

	srcDir := t.TempDir()
	layout := ArchiveLayout{
		UploadsDir:   filepath.Join(srcDir, "uploads"),
		DocumentsDir: filepath.Join(srcDir, "documents"),
		RecoveryFile: filepath.Join(srcDir, ArchiveRecoveryFile),
	}
	require.NoError(t, os.MkdirAll(layout.UploadsDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(layout.DocumentsDir, "charte"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(layout.UploadsDir, "pc.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(layout.DocumentsDir, "charte", "charte.pdf"), []byte("pdf"), 0o644))
	require.NoError(t, os.WriteFile(layout.RecoveryFile, []byte("ABCD-EFGH-IJKL-MNOP"), 0o600))

	p := createPerson(t, src, "ARCHIVE", "Zoé", "eleve")
	require.NoError(t, src.CreateLoan(ctx, &models.Loan{
		PersonID: p.ID, Description: "Tablette", StartedAt: "2024-02-01 10:00:00", DurationType: models.DurationDefault,
	}))

	var buf bytes.Buffer
	summary, err := src.WriteArchive(ctx, &buf, layout)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Images)
	assert.Equal(t, 1, summary.Documents)
	assert.True(t, summary.Recovery)

	dst := setupTestDB(t)
	dstDir := t.TempDir()
	dstLayout := ArchiveLayout{
		UploadsDir:   filepath.Join(dstDir, "uploads"),
		DocumentsDir: filepath.Join(dstDir, "documents"),
		RecoveryFile: filepath.Join(dstDir, ArchiveRecoveryFile),
	}

	restored, err := dst.RestoreArchive(ctx, bytes.NewReader(buf.Bytes()), int64(buf.Len()), dstLayout)
	require.NoError(t, err)
	assert.Equal(t, summary, restored)

	loans, err := dst.ListLoans(ctx, models.LoanFilter{})
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, "Zoé ARCHIVE", loans[0].BorrowerName())

	assert.FileExists(t, filepath.Join(dstLayout.UploadsDir, "pc.png"))
	assert.FileExists(t, filepath.Join(dstLayout.DocumentsDir, "charte", "charte.pdf"))
	assert.FileExists(t, dstLayout.RecoveryFile)
}

func zipOf(t *testing.T, entries map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestRestoreArchive_Rejects(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		entries map[string]string
	}{
		{"MissingDatabase", map[string]string{"documents/a.pdf": "x"}},
		{"Traversal", map[string]string{ArchiveDBEntry: "x", "../../etc/passwd": "x"}},
		{"Absolute", map[string]string{ArchiveDBEntry: "x", "/etc/passwd": "x"}},
		{"NotADatabase", map[string]string{ArchiveDBEntry: "definitely not sqlite"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := zipOf(t, tt.entries)
			_, err := db.RestoreArchive(ctx, r, r.Size(), ArchiveLayout{})
			assert.ErrorIs(t, err, ErrInvalidArchive)
		})
	}

	t.Run("NotAZip", func(t *testing.T) {
		r := bytes.NewReader([]byte("garbage"))
		_, err := db.RestoreArchive(ctx, r, r.Size(), ArchiveLayout{})
		assert.ErrorIs(t, err, ErrInvalidArchive)
	})
}
