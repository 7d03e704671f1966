package service

import (
	"context"
	"io"
	"testing"
	"time"

	"pretgo/internal/database"
	"pretgo/internal/models"
	"pretgo/internal/overdue"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func fixedClock(t *testing.T, raw string) func() time.Time {
	t.Helper()
	ts, err := time.ParseInLocation(overdue.TimeLayout, raw, time.UTC)
	require.NoError(t, err)
	return func() time.Time { return ts }
}

type staticPolicy overdue.Policy

func (p staticPolicy) Policy(context.Context) (overdue.Policy, error) {
	return overdue.Policy(p), nil
}

type mockLoanRepo struct {
	mock.Mock
}

func (m *mockLoanRepo) CreateLoan(ctx context.Context, l *models.Loan) error {
	return m.Called(ctx, l).Error(0)
}
func (m *mockLoanRepo) GetLoan(ctx context.Context, id int64) (*models.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}
func (m *mockLoanRepo) UpdateLoan(ctx context.Context, l *models.Loan) error {
	return m.Called(ctx, l).Error(0)
}
func (m *mockLoanRepo) ListLoans(ctx context.Context, f models.LoanFilter) ([]models.Loan, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Loan), args.Error(1)
}
func (m *mockLoanRepo) ReturnLoan(ctx context.Context, id int64, returnedAt, signature string) error {
	return m.Called(ctx, id, returnedAt, signature).Error(0)
}
func (m *mockLoanRepo) ReturnLoans(ctx context.Context, ids []int64, returnedAt, signature string) (int, error) {
	args := m.Called(ctx, ids, returnedAt, signature)
	return args.Int(0), args.Error(1)
}
func (m *mockLoanRepo) DeleteLoan(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockLoanRepo) ActiveLoanForItem(ctx context.Context, itemID int64) (int64, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockLoanRepo) CountLoans(ctx context.Context) (int, int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Int(1), args.Error(2)
}

type mockPersonRepo struct {
	mock.Mock
}

func (m *mockPersonRepo) CreatePerson(ctx context.Context, p *models.Person) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPersonRepo) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Person), args.Error(1)
}
func (m *mockPersonRepo) UpdatePerson(ctx context.Context, p *models.Person) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPersonRepo) DeletePerson(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
func (m *mockPersonRepo) ListPeople(ctx context.Context, f models.PersonFilter) ([]models.Person, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Person), args.Error(1)
}
func (m *mockPersonRepo) CountPeopleByCategory(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}
func (m *mockPersonRepo) ApplyPeopleImport(ctx context.Context, people []models.Person, mode string) (*models.PersonImportResult, error) {
	args := m.Called(ctx, people, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PersonImportResult), args.Error(1)
}
func (m *mockPersonRepo) ListPersonCategories(ctx context.Context) ([]models.PersonCategory, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PersonCategory), args.Error(1)
}
func (m *mockPersonRepo) CreatePersonCategory(ctx context.Context, c *models.PersonCategory) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockPersonRepo) UpdatePersonCategory(ctx context.Context, c *models.PersonCategory) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockPersonRepo) DeletePersonCategory(ctx context.Context, id int64, replacementID *int64) (int, error) {
	args := m.Called(ctx, id, replacementID)
	return args.Int(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}
