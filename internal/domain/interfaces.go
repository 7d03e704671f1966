package domain

import (
	"context"
	"time"

	"pretgo/internal/models"
	"pretgo/internal/overdue"
)

type PersonRepository interface {
	CreatePerson(ctx context.Context, p *models.Person) error
	GetPerson(ctx context.Context, id int64) (*models.Person, error)
	UpdatePerson(ctx context.Context, p *models.Person) error
	DeletePerson(ctx context.Context, id int64) (bool, error)
	ListPeople(ctx context.Context, f models.PersonFilter) ([]models.Person, error)
	CountPeopleByCategory(ctx context.Context) (map[string]int, error)
	ApplyPeopleImport(ctx context.Context, people []models.Person, mode string) (*models.PersonImportResult, error)
	ListPersonCategories(ctx context.Context) ([]models.PersonCategory, error)
	CreatePersonCategory(ctx context.Context, c *models.PersonCategory) error
	UpdatePersonCategory(ctx context.Context, c *models.PersonCategory) error
	DeletePersonCategory(ctx context.Context, id int64, replacementID *int64) (int, error)
}

type InventoryRepository interface {
	CreateItem(ctx context.Context, it *models.Item) error
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	UpdateItem(ctx context.Context, it *models.Item) error
	DeleteItem(ctx context.Context, id int64) error
	ListItems(ctx context.Context, f models.ItemFilter) ([]models.Item, error)
	GetItemsByIDs(ctx context.Context, ids []int64) ([]models.Item, error)
	FindItemByCode(ctx context.Context, code string) (*models.Item, error)
	NextInventoryNumber(ctx context.Context, itemType string) (string, error)
	ImportItems(ctx context.Context, items []models.Item) (*models.ItemImportResult, error)
	ListItemCategories(ctx context.Context) ([]models.ItemCategory, error)
	CreateItemCategory(ctx context.Context, c *models.ItemCategory) error
	UpdateItemCategoryPrefix(ctx context.Context, id int64, prefix string) error
	DeleteItemCategory(ctx context.Context, id int64, replacementID *int64) (int, error)
	ListLocations(ctx context.Context, includeInactive bool) ([]models.Location, error)
	CreateLocation(ctx context.Context, l *models.Location) error
	UpdateLocation(ctx context.Context, l *models.Location) error
	DeleteLocation(ctx context.Context, id int64) (bool, error)
}

type LoanRepository interface {
	CreateLoan(ctx context.Context, l *models.Loan) error
	GetLoan(ctx context.Context, id int64) (*models.Loan, error)
	UpdateLoan(ctx context.Context, l *models.Loan) error
	ListLoans(ctx context.Context, f models.LoanFilter) ([]models.Loan, error)
	ReturnLoan(ctx context.Context, id int64, returnedAt, signature string) error
	ReturnLoans(ctx context.Context, ids []int64, returnedAt, signature string) (int, error)
	DeleteLoan(ctx context.Context, id int64) error
	ActiveLoanForItem(ctx context.Context, itemID int64) (int64, error)
	CountLoans(ctx context.Context) (active, returned int, err error)
}

type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	GetSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
	SetSettings(ctx context.Context, values map[string]string) error
	DeleteSetting(ctx context.Context, key string) error
}

// SessionStore keeps admin sessions and login attempt counters.
type SessionStore interface {
	GetSession(ctx context.Context, token string) (*models.AdminSession, error)
	SaveSession(ctx context.Context, s *models.AdminSession) error
	DeleteSession(ctx context.Context, token string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// LabelSender delivers raw ZPL to a printer.
type LabelSender interface {
	Send(ctx context.Context, labels []string) error
}

// Clock returns the current time.
type Clock func() time.Time

// PolicySource snapshots the overdue policy of the installation.
type PolicySource interface {
	Policy(ctx context.Context) (overdue.Policy, error)
}
