package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	"pretgo/internal/domain"
	"pretgo/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultPersonCategory is given to imported rows without a category.
const DefaultPersonCategory = "non_enseignant"

var categorySynonyms = map[string]string{
	"élève":      "eleve",
	"elève":      "eleve",
	"etudiant":   "eleve",
	"étudiant":   "eleve",
	"professeur": "enseignant",
	"prof":       "enseignant",
}


// PersonService manages the borrower roster and its categories.
type PersonService struct {
	repo   domain.PersonRepository
	logger *zerolog.Logger
}

func NewPersonService(repo domain.PersonRepository, logger *zerolog.Logger) *PersonService {
	return &PersonService{repo: repo, logger: logger}
}

// normalizeName stores last names upper-case and first names title-case.
func normalizeName(p *models.Person) {
	p.LastName = strings.ToUpper(strings.TrimSpace(p.LastName))
	p.FirstName = cases.Title(language.French).String(strings.TrimSpace(p.FirstName))
	p.Class = strings.TrimSpace(p.Class)
	p.Category = strings.TrimSpace(p.Category)
}

func (s *PersonService) Create(ctx context.Context, p *models.Person) error {
	normalizeName(p)
	if p.LastName == "" || p.FirstName == "" {
		return fmt.Errorf("%w: last and first name are required", ErrValidation)
	}
	if p.Category == "" {
		p.Category = DefaultPersonCategory
	}
	if err := s.repo.CreatePerson(ctx, p); err != nil {
		return err
	}
	s.logger.Info().Int64("person_id", p.ID).Str("category", p.Category).Msg("Person created")
	return nil
}

func (s *PersonService) Update(ctx context.Context, p *models.Person) error {
	normalizeName(p)
	if p.LastName == "" || p.FirstName == "" {
		return fmt.Errorf("%w: last and first name are required", ErrValidation)
	}
	return s.repo.UpdatePerson(ctx, p)
}

func (s *PersonService) Get(ctx context.Context, id int64) (*models.Person, error) {
	return s.repo.GetPerson(ctx, id)
}

func (s *PersonService) List(ctx context.Context, f models.PersonFilter) ([]models.Person, error) {
	return s.repo.ListPeople(ctx, f)
}

// Search backs the borrower autocomplete.
func (s *PersonService) Search(ctx context.Context, q string) ([]models.Person, error) {
	return s.repo.ListPeople(ctx, models.PersonFilter{Query: strings.TrimSpace(q), Limit: models.SearchLimit})
}

// Delete removes a person, or deactivates them when loans reference them.
func (s *PersonService) Delete(ctx context.Context, id int64) (deactivated bool, err error) {
	deactivated, err = s.repo.DeletePerson(ctx, id)
	if err != nil {
		return false, err
	}
	s.logger.Info().Int64("person_id", id).Bool("deactivated", deactivated).Msg("Person deleted")
	return deactivated, nil
}

// Import reads a roster CSV. Mode is ImportAdd or ImportSync.
func (s *PersonService) Import(ctx context.Context, r io.Reader, mode string) (*models.PersonImportResult, error) {
	if mode == "" {
		mode = models.ImportAdd
	}
	if mode != models.ImportAdd && mode != models.ImportSync {
		return nil, fmt.Errorf("%w: unknown import mode %q", ErrValidation, mode)
	}

	records, err := readCSV(r, ';', '\t', ',')
	if err != nil {
		return nil, err
	}
	categories, err := s.repo.ListPersonCategories(ctx)
	if err != nil {
		return nil, err
	}
	resolve := categoryResolver(categories)

	people := make([]models.Person, 0, len(records))
	for _, rec := range records {
		p := models.Person{
			LastName:  rec.field("nom", "Nom", "NOM"),
			FirstName: rec.field("prenom", "Prenom", "Prénom", "prénom"),
			Class:     rec.field("classe", "Classe"),
		}
		normalizeName(&p)
		if p.LastName == "" || p.FirstName == "" || strings.HasPrefix(p.LastName, "#") {
			continue
		}
		p.Category = resolve(rec.field("categorie", "Categorie", "Catégorie", "catégorie"))
		people = append(people, p)
	}

	res, err := s.repo.ApplyPeopleImport(ctx, people, mode)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("mode", mode).
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("deactivated", res.Deactivated).
		Int("protected", len(res.Protected)).
		Msg("People import finished")
	return res, nil
}

// categoryResolver maps a CSV category cell to a category key: by key, by
// label, by synonym, else kept as given. Empty maps to the default.
func categoryResolver(categories []models.PersonCategory) func(string) string {
	byKey := make(map[string]string, len(categories))
	byLabel := make(map[string]string, len(categories))
	for _, c := range categories {
		byKey[c.Key] = c.Key
		byLabel[strings.ToLower(c.Label)] = c.Key
	}
	return func(raw string) string {
		v := strings.ToLower(strings.TrimSpace(raw))
		if k, ok := byKey[v]; ok {
			return k
		}
		if k, ok := byLabel[v]; ok {
			return k
		}
		if k, ok := categorySynonyms[v]; ok {
			return k
		}
		if v == "" {
			return DefaultPersonCategory
		}
		return v
	}
}

// CategoryKey derives a category key from its label: lower-case ASCII,
// underscores for spaces and dashes.
func CategoryKey(label string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(label)))
	var b strings.Builder
	for _, r := range decomposed {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		case r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *PersonService) Categories(ctx context.Context) ([]models.PersonCategory, error) {
	return s.repo.ListPersonCategories(ctx)
}

// CreateCategory derives the key from the label and fills display defaults.
func (s *PersonService) CreateCategory(ctx context.Context, c *models.PersonCategory) error {
	c.Label = strings.TrimSpace(c.Label)
	if c.Label == "" {
		return fmt.Errorf("%w: label is required", ErrValidation)
	}
	c.Key = CategoryKey(c.Label)
	if c.Key == "" {
		return fmt.Errorf("%w: label %q gives an empty key", ErrValidation, c.Label)
	}
	applyCategoryDefaults(c)
	return s.repo.CreatePersonCategory(ctx, c)
}

func (s *PersonService) UpdateCategory(ctx context.Context, c *models.PersonCategory) error {
	c.Label = strings.TrimSpace(c.Label)
	if c.Label == "" {
		return fmt.Errorf("%w: label is required", ErrValidation)
	}
	applyCategoryDefaults(c)
	return s.repo.UpdatePersonCategory(ctx, c)
}

func applyCategoryDefaults(c *models.PersonCategory) {
	if strings.TrimSpace(c.Icon) == "" {
		c.Icon = "bi-person"
	}
	if strings.TrimSpace(c.BgColor) == "" {
		c.BgColor = "#f1f3f4"
	}
	if strings.TrimSpace(c.TextColor) == "" {
		c.TextColor = "#5f6368"
	}
}

// DeleteCategory moves active members to replacementID when needed.
func (s *PersonService) DeleteCategory(ctx context.Context, id int64, replacementID *int64) (int, error) {
	moved, err := s.repo.DeletePersonCategory(ctx, id, replacementID)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("category_id", id).Int("moved", moved).Msg("Person category deleted")
	return moved, nil
}
