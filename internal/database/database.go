package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pretgo/internal/models"
	"pretgo/internal/security"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the SQLite store of the installation.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: writes are serialised and :memory: stays a single database
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, logger: logger}
	if err := db.Migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS personnes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nom TEXT NOT NULL,
		prenom TEXT NOT NULL,
		categorie TEXT NOT NULL,
		classe TEXT DEFAULT '',
		actif INTEGER DEFAULT 1,
		date_creation DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS inventaire (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type_materiel TEXT NOT NULL,
		marque TEXT DEFAULT '',
		modele TEXT DEFAULT '',
		numero_serie TEXT DEFAULT '',
		numero_inventaire TEXT NOT NULL UNIQUE,
		systeme_exploitation TEXT DEFAULT '',
		etat TEXT DEFAULT 'disponible',
		notes TEXT DEFAULT '',
		actif INTEGER DEFAULT 1,
		date_creation DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS prets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		personne_id INTEGER NOT NULL,
		descriptif_objets TEXT NOT NULL,
		date_emprunt DATETIME NOT NULL,
		date_retour DATETIME,
		retour_confirme INTEGER DEFAULT 0,
		signature_retour TEXT,
		notes TEXT DEFAULT '',
		duree_pret_jours INTEGER DEFAULT NULL,
		duree_pret_heures REAL DEFAULT NULL,
		materiel_id INTEGER DEFAULT NULL,
		date_modification DATETIME DEFAULT NULL,
		FOREIGN KEY (personne_id) REFERENCES personnes(id),
		FOREIGN KEY (materiel_id) REFERENCES inventaire(id)
	)`,
	`CREATE TABLE IF NOT EXISTS pret_materiels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pret_id INTEGER NOT NULL,
		materiel_id INTEGER DEFAULT NULL,
		description TEXT NOT NULL,
		FOREIGN KEY (pret_id) REFERENCES prets(id) ON DELETE CASCADE,
		FOREIGN KEY (materiel_id) REFERENCES inventaire(id)
	)`,
	`CREATE TABLE IF NOT EXISTS categories_materiel (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nom TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS categories_personnes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cle TEXT NOT NULL UNIQUE,
		libelle TEXT NOT NULL,
		icone TEXT DEFAULT 'bi-person',
		couleur_bg TEXT DEFAULT '#f1f3f4',
		couleur_text TEXT DEFAULT '#5f6368',
		ordre INTEGER DEFAULT 0,
		actif INTEGER DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS lieux (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nom TEXT NOT NULL UNIQUE,
		actif INTEGER DEFAULT 1,
		date_creation DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS parametres (
		cle TEXT PRIMARY KEY,
		valeur TEXT NOT NULL
	)`,
}

// columns added after the first release
var columnMigrations = []struct {
	table, column, definition string
}{
	{"prets", "duree_pret_jours", "INTEGER DEFAULT NULL"},
	{"prets", "duree_pret_heures", "REAL DEFAULT NULL"},
	{"prets", "materiel_id", "INTEGER DEFAULT NULL"},
	{"prets", "lieu_id", "INTEGER DEFAULT NULL"},
	{"prets", "type_duree", "TEXT DEFAULT NULL"},
	{"inventaire", "image", "TEXT DEFAULT ''"},
	{"categories_materiel", "prefixe_inventaire", "TEXT DEFAULT ''"},
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_prets_retour ON prets(retour_confirme)`,
	`CREATE INDEX IF NOT EXISTS idx_prets_personne ON prets(personne_id)`,
	`CREATE INDEX IF NOT EXISTS idx_pret_materiels_pret ON pret_materiels(pret_id)`,
	`CREATE INDEX IF NOT EXISTS idx_pret_materiels_materiel ON pret_materiels(materiel_id)`,
	`CREATE INDEX IF NOT EXISTS idx_personnes_nom ON personnes(nom, prenom)`,
}

// Migrate creates missing tables and columns and seeds default rows.
// It is idempotent and runs again after a restore.
func (db *DB) Migrate(ctx context.Context) error {
	for _, query := range schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	for _, m := range columnMigrations {
		if err := db.ensureColumn(ctx, m.table, m.column, m.definition); err != nil {
			return err
		}
	}
	for _, query := range indexes {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return db.seed(ctx)
}

func (db *DB) ensureColumn(ctx context.Context, table, column, definition string) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("failed to scan table info: %w", err)
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	db.logger.Info().Str("table", table).Str("column", column).Msg("Column added")
	return nil
}

var defaultItemCategories = []models.ItemCategory{
	{Name: "Informatique", Prefix: "PC"},
	{Name: "Audio/Vidéo", Prefix: "AV"},
	{Name: "Sport", Prefix: "SPT"},
	{Name: "Livres", Prefix: "LIV"},
	{Name: "Outils", Prefix: "OUT"},
	{Name: "Fournitures", Prefix: "FRN"},
	{Name: "Réseau", Prefix: "NET"},
	{Name: "Autre", Prefix: "DIV"},
}

var defaultPersonCategories = []models.PersonCategory{
	{Key: "eleve", Label: "Élève", Icon: "bi-mortarboard", BgColor: "#e8f0fe", TextColor: "#1a73e8", Order: 1},
	{Key: "enseignant", Label: "Enseignant", Icon: "bi-person-workspace", BgColor: "#e6f4ea", TextColor: "#0d904f", Order: 2},
	{Key: "agent", Label: "Agent", Icon: "bi-person-badge", BgColor: "#fef7e0", TextColor: "#ea8600", Order: 3},
	{Key: "non_enseignant", Label: "Non enseignant", Icon: "bi-person", BgColor: "#f1f3f4", TextColor: "#5f6368", Order: 4},
}

var defaultLocations = []string{
	"Salle informatique", "CDI", "Salle de réunion",
	"Bureau administratif", "Atelier", "Gymnase",
}

// DefaultSettings are inserted when missing. The admin password is added
// separately because it needs hashing.
var DefaultSettings = map[string]string{
	models.SettingDefaultDuration:  "7",
	models.SettingDefaultUnit:      "jours",
	models.SettingEndOfDay:         "17:45",
	models.SettingPasswordChanged:  "0",
	models.SettingSchoolName:       "",
	models.SettingScannerMode:      "les_deux",
	models.SettingZebraEnabled:     "0",
	models.SettingZebraMethod:      "serial",
	models.SettingZebraPort:        "COM3",
	models.SettingZebraBaud:        "38400",
	models.SettingZebraTearOff:     "018",
	models.SettingZebraURL:         "http://localhost:9100",
	models.SettingZPLTemplate:      models.DefaultZPLTemplate,
	models.SettingLabelWidth:       "51",
	models.SettingLabelHeight:      "25",
	models.SettingLabelColumns:     "4",
	models.SettingLabelRows:        "11",
	models.SettingLabelFont:        "Courier New",
	models.SettingLabelBarcodeSize: "60",
	models.SettingLabelTextSize:    "8",
	models.SettingLabelSubtextSize: "6",
	models.SettingLabelFreeText:    "",
}

func (db *DB) seed(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, c := range defaultItemCategories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories_materiel (nom, prefixe_inventaire) VALUES (?, ?)
			 ON CONFLICT(nom) DO UPDATE SET prefixe_inventaire = excluded.prefixe_inventaire
			 WHERE prefixe_inventaire IS NULL OR prefixe_inventaire = ''`,
			c.Name, c.Prefix); err != nil {
			return fmt.Errorf("failed to seed item categories: %w", err)
		}
	}
	for _, c := range defaultPersonCategories {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories_personnes (cle, libelle, icone, couleur_bg, couleur_text, ordre)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.Key, c.Label, c.Icon, c.BgColor, c.TextColor, c.Order); err != nil {
			return fmt.Errorf("failed to seed person categories: %w", err)
		}
	}
	for _, name := range defaultLocations {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO lieux (nom) VALUES (?)`, name); err != nil {
			return fmt.Errorf("failed to seed locations: %w", err)
		}
	}
	for key, value := range DefaultSettings {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO parametres (cle, valeur) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("failed to seed settings: %w", err)
		}
	}

	if err := seedAdminPassword(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// seedAdminPassword installs the default password on fresh databases. An
// installation that never customised its password is reset to the default.
func seedAdminPassword(ctx context.Context, tx *sql.Tx) error {
	var stored, changed string
	err := tx.QueryRowContext(ctx, `SELECT valeur FROM parametres WHERE cle = ?`, models.SettingAdminPassword).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read admin password: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT valeur FROM parametres WHERE cle = ?`, models.SettingPasswordChanged).Scan(&changed); err != nil {
		return fmt.Errorf("failed to read password state: %w", err)
	}

	if stored != "" && (changed != "0" || security.VerifyPassword(models.DefaultAdminPassword, stored)) {
		return nil
	}

	hash, err := security.HashPassword(models.DefaultAdminPassword)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO parametres (cle, valeur) VALUES (?, ?)`, models.SettingAdminPassword, hash); err != nil {
		return fmt.Errorf("failed to seed admin password: %w", err)
	}
	if stored != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM parametres WHERE cle = ?`, models.SettingRecoveryCodeHash); err != nil {
			return fmt.Errorf("failed to clear recovery code: %w", err)
		}
	}
	return nil
}
