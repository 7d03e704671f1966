package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pretgo/internal/database"
	"pretgo/internal/events"
	"pretgo/internal/models"
	"pretgo/internal/overdue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }
func strp(v string) *string  { return &v }

func newLoanService(t *testing.T, loans *mockLoanRepo, people *mockPersonRepo, pub *mockPublisher, now string) *LoanService {
	t.Helper()
	svc := NewLoanService(loans, people, staticPolicy(overdue.DefaultPolicy()), pub, time.UTC, testLogger())
	return svc.WithClock(fixedClock(t, now))
}

func TestRawNumber_UnmarshalJSON(t *testing.T) {
	var req LoanRequest
	err := json.Unmarshal([]byte(`{"duree_heures": 2.5, "duree_jours": " 3 ", "lieu_id": null}`), &req)
	require.NoError(t, err)
	assert.Equal(t, RawNumber("2.5"), req.DurationHours)
	assert.Equal(t, RawNumber(" 3 "), req.DurationDays)
	assert.Nil(t, req.LocationID)

	require.NoError(t, json.Unmarshal([]byte(`{"duree_heures": null}`), &req))
	assert.Equal(t, RawNumber(""), req.DurationHours)
}

func TestLoanService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("EndOfDayFrozen", func(t *testing.T) {
		loans := new(mockLoanRepo)
		people := new(mockPersonRepo)
		pub := new(mockPublisher)
		svc := newLoanService(t, loans, people, pub, "2024-01-10 09:00:00")

		people.On("GetPerson", ctx, int64(3)).Return(&models.Person{ID: 3, Active: true}, nil)
		loans.On("CreateLoan", ctx, mock.MatchedBy(func(l *models.Loan) bool {
			return l.PersonID == 3 &&
				l.Description == "PC portable + Souris" &&
				l.StartedAt == "2024-01-10 09:00:00" &&
				l.DurationType == models.DurationEndOfDay &&
				l.DurationHours != nil && *l.DurationHours == 8.75 &&
				l.DurationDays == nil &&
				len(l.Items) == 2
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Loan).ID = 7
		}).Return(nil)
		loans.On("GetLoan", ctx, int64(7)).Return(&models.Loan{
			ID: 7, PersonID: 3, StartedAt: "2024-01-10 09:00:00",
			DurationHours: f64(8.75), DurationType: models.DurationEndOfDay,
		}, nil)
		pub.On("PublishJSON", events.EventLoanCreated, mock.MatchedBy(func(p events.LoanEventPayload) bool {
			return p.LoanID == 7 && len(p.ItemIDs) == 1 && p.ItemIDs[0] == 12
		})).Return(nil)

		view, err := svc.Create(ctx, LoanRequest{
			PersonID: 3,
			Items: []LoanItemRequest{
				{Description: " PC portable ", ItemID: i64(12)},
				{Description: "   "},
				{Description: "Souris"},
			},
			DurationType: "fin_journee",
		})
		require.NoError(t, err)
		assert.Equal(t, "2024-01-10 17:45:00", view.DueAt)
		assert.Equal(t, "Fin de journée (17h45)", view.DurationLabel)
		assert.False(t, view.Overdue)

		loans.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("MalformedHoursFallBackToDefault", func(t *testing.T) {
		loans := new(mockLoanRepo)
		people := new(mockPersonRepo)
		svc := newLoanService(t, loans, people, new(mockPublisher), "2024-01-10 09:00:00")
		svc.eventBus = nil

		people.On("GetPerson", ctx, int64(3)).Return(&models.Person{ID: 3, Active: true}, nil)
		loans.On("CreateLoan", ctx, mock.MatchedBy(func(l *models.Loan) bool {
			return l.DurationType == models.DurationDefault && l.DurationHours == nil && l.DurationDays == nil
		})).Return(nil)
		loans.On("GetLoan", ctx, int64(0)).Return(&models.Loan{StartedAt: "2024-01-10 09:00:00"}, nil)

		view, err := svc.Create(ctx, LoanRequest{
			PersonID:      3,
			Items:         []LoanItemRequest{{Description: "Câble"}},
			DurationType:  "heures",
			DurationHours: "1,5",
		})
		require.NoError(t, err)
		assert.Equal(t, "2024-01-17 09:00:00", view.DueAt)
		loans.AssertExpectations(t)
	})

	t.Run("Validation", func(t *testing.T) {
		loans := new(mockLoanRepo)
		people := new(mockPersonRepo)
		svc := newLoanService(t, loans, people, new(mockPublisher), "2024-01-10 09:00:00")

		_, err := svc.Create(ctx, LoanRequest{PersonID: 3, Items: []LoanItemRequest{{Description: " "}}})
		assert.ErrorIs(t, err, ErrValidation)

		people.On("GetPerson", ctx, int64(4)).Return(&models.Person{ID: 4, Active: false}, nil)
		_, err = svc.Create(ctx, LoanRequest{PersonID: 4, Items: []LoanItemRequest{{Description: "PC"}}})
		assert.ErrorIs(t, err, ErrValidation)

		people.On("GetPerson", ctx, int64(5)).Return(nil, database.ErrNotFound)
		_, err = svc.Create(ctx, LoanRequest{PersonID: 5, Items: []LoanItemRequest{{Description: "PC"}}})
		assert.ErrorIs(t, err, database.ErrNotFound)

		loans.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
	})

	t.Run("ItemAlreadyLent", func(t *testing.T) {
		loans := new(mockLoanRepo)
		people := new(mockPersonRepo)
		svc := newLoanService(t, loans, people, new(mockPublisher), "2024-01-10 09:00:00")

		people.On("GetPerson", ctx, int64(3)).Return(&models.Person{ID: 3, Active: true}, nil)
		loans.On("CreateLoan", ctx, mock.Anything).Return(database.ErrInUse)

		_, err := svc.Create(ctx, LoanRequest{PersonID: 3, Items: []LoanItemRequest{{Description: "PC", ItemID: i64(1)}}})
		assert.ErrorIs(t, err, database.ErrInUse)
	})
}

func TestLoanService_UpdateResolvesAgainstLoanStart(t *testing.T) {
	ctx := context.Background()
	loans := new(mockLoanRepo)
	people := new(mockPersonRepo)
	pub := new(mockPublisher)
	svc := newLoanService(t, loans, people, pub, "2024-01-12 16:00:00")

	existing := &models.Loan{ID: 9, PersonID: 3, StartedAt: "2024-01-10 15:45:00", DurationDays: intp(7), DurationType: "jours"}
	people.On("GetPerson", ctx, int64(3)).Return(&models.Person{ID: 3, Active: true}, nil)
	loans.On("GetLoan", ctx, int64(9)).Return(existing, nil)
	loans.On("UpdateLoan", ctx, mock.MatchedBy(func(l *models.Loan) bool {
		return l.DurationHours != nil && *l.DurationHours == 2 &&
			l.DurationDays == nil &&
			l.DurationType == models.DurationEndOfDay &&
			l.ModifiedAt != nil && *l.ModifiedAt == "2024-01-12 16:00:00" &&
			l.Description == "Tablette"
	})).Return(nil)
	pub.On("PublishJSON", events.EventLoanUpdated, mock.Anything).Return(nil)

	view, err := svc.Update(ctx, 9, LoanRequest{
		PersonID:     3,
		Items:        []LoanItemRequest{{Description: "Tablette"}},
		DurationType: "fin_journee",
	})
	require.NoError(t, err)
	assert.True(t, view.Overdue)
	assert.Equal(t, "2024-01-10 17:45:00", view.DueAt)
	loans.AssertExpectations(t)
}

func TestLoanService_UpdateReturnedLoan(t *testing.T) {
	ctx := context.Background()
	loans := new(mockLoanRepo)
	people := new(mockPersonRepo)
	svc := newLoanService(t, loans, people, new(mockPublisher), "2024-01-12 16:00:00")

	people.On("GetPerson", ctx, int64(3)).Return(&models.Person{ID: 3, Active: true}, nil)
	loans.On("GetLoan", ctx, int64(9)).Return(&models.Loan{ID: 9, StartedAt: "2024-01-10 15:45:00", Returned: true}, nil)
	loans.On("UpdateLoan", ctx, mock.Anything).Return(database.ErrAlreadyReturned)

	_, err := svc.Update(ctx, 9, LoanRequest{PersonID: 3, Items: []LoanItemRequest{{Description: "PC"}}})
	assert.ErrorIs(t, err, database.ErrAlreadyReturned)
}

func TestLoanService_List(t *testing.T) {
	ctx := context.Background()
	loans := new(mockLoanRepo)
	svc := newLoanService(t, loans, new(mockPersonRepo), new(mockPublisher), "2024-01-10 09:00:00")

	filter := models.LoanFilter{Status: models.LoanFilterActive}
	loans.On("ListLoans", ctx, filter).Return([]models.Loan{
		{ID: 1, StartedAt: "2024-01-01 09:00:00", DurationDays: intp(2), DurationType: "jours"},
		{ID: 2, StartedAt: "2024-01-10 08:00:00", DurationHours: f64(1.5), DurationType: "heures"},
		{ID: 3, StartedAt: "garbage"},
		{ID: 4, StartedAt: "2024-01-01 09:00:00", Returned: true, ReturnedAt: strp("2024-01-09 10:00:00")},
	}, nil)

	views, err := svc.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, views, 4)

	assert.True(t, views[0].Overdue)
	assert.Equal(t, "7 jour(s)", views[0].OverdueLabel)
	assert.Equal(t, "2024-01-03 09:00:00", views[0].DueAt)
	assert.Equal(t, "2 jour(s)", views[0].DurationLabel)

	assert.False(t, views[1].Overdue)
	assert.Equal(t, "1h30", views[1].DurationLabel)

	assert.False(t, views[2].Overdue)
	assert.Empty(t, views[2].DueAt)

	assert.False(t, views[3].Overdue, "returned loans are never overdue")
	assert.Equal(t, "2024-01-08 09:00:00", views[3].DueAt)
}

func TestLoanService_Return(t *testing.T) {
	ctx := context.Background()
	loans := new(mockLoanRepo)
	pub := new(mockPublisher)
	svc := newLoanService(t, loans, new(mockPersonRepo), pub, "2024-01-10 09:00:00")

	loans.On("ReturnLoan", ctx, int64(5), "2024-01-10 09:00:00", "M. Durand").Return(nil)
	loans.On("GetLoan", ctx, int64(5)).Return(&models.Loan{ID: 5, Returned: true, ReturnedAt: strp("2024-01-10 09:00:00")}, nil)
	pub.On("PublishJSON", events.EventLoanReturned, mock.MatchedBy(func(p events.LoanEventPayload) bool {
		return p.ReturnedAt == "2024-01-10 09:00:00"
	})).Return(errors.New("bus down"))

	require.NoError(t, svc.Return(ctx, 5, " M. Durand "))

	loans.On("ReturnLoan", ctx, int64(6), mock.Anything, "").Return(database.ErrAlreadyReturned)
	assert.ErrorIs(t, svc.Return(ctx, 6, ""), database.ErrAlreadyReturned)
	pub.AssertExpectations(t)
}

func TestLoanService_ReturnMany(t *testing.T) {
	ctx := context.Background()
	loans := new(mockLoanRepo)
	pub := new(mockPublisher)
	svc := newLoanService(t, loans, new(mockPersonRepo), pub, "2024-01-10 09:00:00")

	_, err := svc.ReturnMany(ctx, nil, "")
	assert.ErrorIs(t, err, ErrValidation)

	ids := []int64{1, 2}
	loans.On("ReturnLoans", ctx, ids, "2024-01-10 09:00:00", "").Return(1, nil)
	loans.On("GetLoan", ctx, int64(1)).Return(&models.Loan{ID: 1, Returned: true, ReturnedAt: strp("2024-01-10 09:00:00")}, nil)
	loans.On("GetLoan", ctx, int64(2)).Return(&models.Loan{ID: 2, Returned: true, ReturnedAt: strp("2023-12-01 09:00:00")}, nil)
	pub.On("PublishJSON", events.EventLoanReturned, mock.Anything).Return(nil).Once()

	n, err := svc.ReturnMany(ctx, ids, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	pub.AssertExpectations(t)
}

func TestLoanService_Delete(t *testing.T) {
	ctx := context.Background()
	loans := new(mockLoanRepo)
	pub := new(mockPublisher)
	svc := newLoanService(t, loans, new(mockPersonRepo), pub, "2024-01-10 09:00:00")

	loans.On("GetLoan", ctx, int64(1)).Return(&models.Loan{ID: 1}, nil)
	loans.On("DeleteLoan", ctx, int64(1)).Return(nil)
	pub.On("PublishJSON", events.EventLoanDeleted, mock.Anything).Return(nil)
	require.NoError(t, svc.Delete(ctx, 1))

	loans.On("GetLoan", ctx, int64(2)).Return(nil, database.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, 2), database.ErrNotFound)
	loans.AssertNotCalled(t, "DeleteLoan", ctx, int64(2))
}

func TestLoanService_Dashboard(t *testing.T) {
	ctx := context.Background()
	loans := new(mockLoanRepo)
	people := new(mockPersonRepo)
	svc := newLoanService(t, loans, people, new(mockPublisher), "2024-01-10 09:00:00")

	loans.On("ListLoans", ctx, models.LoanFilter{Status: models.LoanFilterActive, OldestFirst: true}).Return([]models.Loan{
		{ID: 1, StartedAt: "2024-01-01 09:00:00"},
		{ID: 2, StartedAt: "2024-01-09 09:00:00"},
	}, nil)
	loans.On("ListLoans", ctx, models.LoanFilter{Status: models.LoanFilterReturned, Limit: models.RecentReturnsLimit}).
		Return([]models.Loan{{ID: 3, Returned: true}}, nil)
	loans.On("CountLoans", ctx).Return(2, 10, nil)
	people.On("CountPeopleByCategory", ctx).Return(map[string]int{"eleve": 30, "enseignant": 4}, nil)

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Len(t, d.ActiveLoans, 2)
	assert.Len(t, d.RecentReturns, 1)
	assert.Equal(t, 2, d.ActiveCount)
	assert.Equal(t, 10, d.ReturnedCount)
	assert.Equal(t, 34, d.PeopleCount)
	assert.Equal(t, 1, d.AlertCount)
}

func TestLoanService_History(t *testing.T) {
	ctx := context.Background()
	loans := new(mockLoanRepo)
	people := new(mockPersonRepo)
	svc := newLoanService(t, loans, people, new(mockPublisher), "2024-01-10 09:00:00")

	people.On("GetPerson", ctx, int64(3)).Return(&models.Person{ID: 3}, nil)
	loans.On("ListLoans", ctx, models.LoanFilter{PersonID: 3}).Return([]models.Loan{
		{ID: 1, Returned: true}, {ID: 2}, {ID: 3, Returned: true},
	}, nil)
	h, err := svc.PersonHistory(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Total)
	assert.Equal(t, 1, h.Active)
	assert.Equal(t, 2, h.Returned)

	loans.On("ListLoans", ctx, models.LoanFilter{ItemID: 8}).Return([]models.Loan{}, nil)
	h, err = svc.ItemHistory(ctx, 8)
	require.NoError(t, err)
	assert.Zero(t, h.Total)
}
