package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pretgo/internal/database"
	"pretgo/internal/domain"
	"pretgo/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
)

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// InventoryService manages items, their categories, locations and the
// shared image library.
type InventoryService struct {
	repo      domain.InventoryRepository
	loans     domain.LoanRepository
	imagesDir string
	logger    *zerolog.Logger
}

func NewInventoryService(repo domain.InventoryRepository, loans domain.LoanRepository, imagesDir string, logger *zerolog.Logger) *InventoryService {
	return &InventoryService{
		repo:      repo,
		loans:     loans,
		imagesDir: imagesDir,
		logger:    logger,
	}
}

func trimItem(it *models.Item) {
	it.Type = strings.TrimSpace(it.Type)
	it.Brand = strings.TrimSpace(it.Brand)
	it.Model = strings.TrimSpace(it.Model)
	it.SerialNumber = strings.TrimSpace(it.SerialNumber)
	it.InventoryNumber = strings.TrimSpace(it.InventoryNumber)
	it.OS = strings.TrimSpace(it.OS)
	it.Notes = strings.TrimSpace(it.Notes)
	it.Image = filepath.Base(strings.TrimSpace(it.Image))
	if it.Image == "." {
		it.Image = ""
	}
}

// Create adds an item. An empty inventory number is generated from the
// category prefix.
func (s *InventoryService) Create(ctx context.Context, it *models.Item) error {
	trimItem(it)
	if it.Type == "" {
		return fmt.Errorf("%w: item type is required", ErrValidation)
	}
	if err := s.repo.CreateItem(ctx, it); err != nil {
		return err
	}
	s.logger.Info().Int64("item_id", it.ID).Str("inventory_number", it.InventoryNumber).Msg("Item created")
	return nil
}

func (s *InventoryService) Update(ctx context.Context, it *models.Item) error {
	trimItem(it)
	if it.Type == "" {
		return fmt.Errorf("%w: item type is required", ErrValidation)
	}
	return s.repo.UpdateItem(ctx, it)
}

func (s *InventoryService) Get(ctx context.Context, id int64) (*models.Item, error) {
	return s.repo.GetItem(ctx, id)
}

func (s *InventoryService) List(ctx context.Context, f models.ItemFilter) ([]models.Item, error) {
	return s.repo.ListItems(ctx, f)
}

// Search backs the item autocomplete of the loan form.
func (s *InventoryService) Search(ctx context.Context, q string) ([]models.Item, error) {
	return s.repo.ListItems(ctx, models.ItemFilter{Query: strings.TrimSpace(q), Limit: models.SearchLimit})
}

// Delete deactivates an item that is not currently lent.
func (s *InventoryService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("item_id", id).Msg("Item deactivated")
	return nil
}

func (s *InventoryService) NextNumber(ctx context.Context, itemType string) (string, error) {
	return s.repo.NextInventoryNumber(ctx, strings.TrimSpace(itemType))
}

// Scan looks up a scanned code and reports the active loan of the item, if any.
func (s *InventoryService) Scan(ctx context.Context, code string) (*models.ScanResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return &models.ScanResult{Message: "Aucun code fourni."}, nil
	}

	item, err := s.repo.FindItemByCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		return &models.ScanResult{Message: fmt.Sprintf("Aucun matériel trouvé pour « %s ».", code)}, nil
	}
	if err != nil {
		return nil, err
	}

	loanID, err := s.loans.ActiveLoanForItem(ctx, item.ID)
	switch {
	case err == nil:
		return &models.ScanResult{
			Found:   true,
			Kind:    "pret_actif",
			Message: item.Label() + " — Prêt actif trouvé",
			ItemID:  item.ID,
			LoanID:  loanID,
		}, nil
	case errors.Is(err, database.ErrNotFound):
		return &models.ScanResult{
			Found:   true,
			Kind:    "materiel",
			Message: item.Label() + " — " + item.State,
			ItemID:  item.ID,
		}, nil
	default:
		return nil, err
	}
}

// Import reads an inventory CSV. Rows without an inventory number and
// comment rows are ignored; known inventory numbers count as duplicates.
func (s *InventoryService) Import(ctx context.Context, r io.Reader) (*models.ItemImportResult, error) {
	records, err := readCSV(r, ';', ',', '\t')
	if err != nil {
		return nil, err
	}
	categories, err := s.repo.ListItemCategories(ctx)
	if err != nil {
		return nil, err
	}

	byLower := make(map[string]string, len(categories))
	fallbackType := "Autre"
	for i, c := range categories {
		byLower[strings.ToLower(c.Name)] = c.Name
		if i == 0 {
			fallbackType = c.Name
		}
	}

	items := make([]models.Item, 0, len(records))
	for _, rec := range records {
		number := rec.field("numero_inventaire", "Numero inventaire", "N° inventaire")
		if number == "" || strings.HasPrefix(number, "#") {
			continue
		}
		it := models.Item{
			Type:            rec.field("type_materiel", "Type", "type"),
			Brand:           rec.field("marque", "Marque"),
			Model:           rec.field("modele", "Modele", "Modèle"),
			SerialNumber:    rec.field("numero_serie", "Numero serie", "N° série"),
			InventoryNumber: number,
			OS:              rec.field("systeme_exploitation", "OS", "Système"),
			Notes:           rec.field("notes", "Notes"),
			State:           models.ItemAvailable,
		}
		if name, ok := byLower[strings.ToLower(it.Type)]; ok {
			it.Type = name
		}
		if it.Type == "" {
			it.Type = fallbackType
		}
		items = append(items, it)
	}

	res, err := s.repo.ImportItems(ctx, items)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("added", res.Added).Int("duplicates", res.Duplicates).Msg("Inventory import finished")
	return res, nil
}

// Item categories

func (s *InventoryService) Categories(ctx context.Context) ([]models.ItemCategory, error) {
	return s.repo.ListItemCategories(ctx)
}

func (s *InventoryService) CreateCategory(ctx context.Context, c *models.ItemCategory) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}
	c.Prefix = strings.ToUpper(strings.TrimSpace(c.Prefix))
	return s.repo.CreateItemCategory(ctx, c)
}

func (s *InventoryService) UpdateCategoryPrefix(ctx context.Context, id int64, prefix string) error {
	return s.repo.UpdateItemCategoryPrefix(ctx, id, strings.ToUpper(strings.TrimSpace(prefix)))
}

func (s *InventoryService) DeleteCategory(ctx context.Context, id int64, replacementID *int64) (int, error) {
	moved, err := s.repo.DeleteItemCategory(ctx, id, replacementID)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("category_id", id).Int("moved", moved).Msg("Item category deleted")
	return moved, nil
}

// Locations

func (s *InventoryService) Locations(ctx context.Context, includeInactive bool) ([]models.Location, error) {
	return s.repo.ListLocations(ctx, includeInactive)
}

func (s *InventoryService) CreateLocation(ctx context.Context, l *models.Location) error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return fmt.Errorf("%w: location name is required", ErrValidation)
	}
	return s.repo.CreateLocation(ctx, l)
}

func (s *InventoryService) UpdateLocation(ctx context.Context, l *models.Location) error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return fmt.Errorf("%w: location name is required", ErrValidation)
	}
	return s.repo.UpdateLocation(ctx, l)
}

func (s *InventoryService) DeleteLocation(ctx context.Context, id int64) (bool, error) {
	return s.repo.DeleteLocation(ctx, id)
}

// Image library

func allowedImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// SafeFilename keeps ASCII letters, digits, dots, dashes and underscores.
// Accents are dropped and spaces become underscores.
func SafeFilename(name string) string {
	name = norm.NFD.String(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "._")
}

// Images lists the image library, sorted by name.
func (s *InventoryService) Images() ([]string, error) {
	entries, err := os.ReadDir(s.imagesDir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	images := []string{}
	for _, e := range entries {
		if !e.IsDir() && allowedImage(e.Name()) {
			images = append(images, e.Name())
		}
	}
	sort.Strings(images)
	return images, nil
}

// SaveImage stores an upload under its cleaned name, adding a short random
// suffix when the name is taken. It returns the stored name.
func (s *InventoryService) SaveImage(name string, r io.Reader) (string, error) {
	clean := SafeFilename(name)
	if clean == "" || !allowedImage(clean) {
		return "", fmt.Errorf("%w: unsupported image %q (jpg, png, gif, webp)", ErrValidation, name)
	}
	if err := os.MkdirAll(s.imagesDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	final := clean
	if _, err := os.Stat(filepath.Join(s.imagesDir, final)); err == nil {
		ext := filepath.Ext(clean)
		final = strings.TrimSuffix(clean, ext) + "_" + uuid.NewString()[:6] + ext
	}

	f, err := os.OpenFile(filepath.Join(s.imagesDir, final), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	s.logger.Info().Str("image", final).Msg("Image uploaded")
	return final, nil
}

// DeleteImage removes a library image. Missing files are not an error.
func (s *InventoryService) DeleteImage(name string) error {
	clean := SafeFilename(name)
	if clean == "" || !allowedImage(clean) {
		return fmt.Errorf("%w: invalid image %q", ErrValidation, name)
	}
	if err := os.Remove(filepath.Join(s.imagesDir, clean)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
