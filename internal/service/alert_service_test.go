package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pretgo/internal/models"
	"pretgo/internal/overdue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertService_Scan(t *testing.T) {
	ctx := context.Background()
	loans := new(mockLoanRepo)
	policy := overdue.Policy{Duration: 2, Unit: overdue.UnitDays, Cutoff: overdue.DefaultCutoff}
	svc := NewAlertService(loans, staticPolicy(policy), time.UTC, testLogger()).
		WithClock(fixedClock(t, "2024-01-10 12:00:00"))

	loans.On("ListLoans", ctx, models.LoanFilter{Status: models.LoanFilterActive, OldestFirst: true}).Return([]models.Loan{
		{ID: 1, StartedAt: "2024-01-01 09:00:00"},
		{ID: 2, StartedAt: "2024-01-10 09:00:00", DurationHours: f64(1.5), DurationType: "heures"},
		{ID: 3, StartedAt: "2024-01-10 09:00:00", DurationHours: f64(3), DurationType: "heures"},
		{ID: 4, StartedAt: "2024-01-09 09:00:00", DurationDays: intp(7), DurationType: "jours"},
		{ID: 5, StartedAt: "n/a"},
	}, nil)

	report, err := svc.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Active)
	assert.Equal(t, "2024-01-10 12:00:00", report.CheckedAt)
	assert.Equal(t, 2.0, report.Duration)
	assert.Equal(t, "jours", report.Unit)
	assert.Equal(t, "17:45", report.Cutoff)

	require.Len(t, report.Alerts, 2)
	assert.Equal(t, int64(1), report.Alerts[0].ID)
	assert.Equal(t, "2024-01-03 09:00:00", report.Alerts[0].DueAt)
	assert.Equal(t, "7 jour(s)", report.Alerts[0].OverdueLabel)

	assert.Equal(t, int64(2), report.Alerts[1].ID)
	assert.Equal(t, "1h30", report.Alerts[1].OverdueLabel)
	assert.InDelta(t, 1.5, report.Alerts[1].OverdueHours, 1e-9)

	for _, a := range report.Alerts {
		assert.NotEqual(t, int64(3), a.ID, "a loan exactly at its due time is not overdue")
	}
}

func TestAlertService_ScanError(t *testing.T) {
	ctx := context.Background()
	loans := new(mockLoanRepo)
	svc := NewAlertService(loans, staticPolicy(overdue.DefaultPolicy()), nil, testLogger())

	loans.On("ListLoans", ctx, models.LoanFilter{Status: models.LoanFilterActive, OldestFirst: true}).
		Return(nil, errors.New("database is locked"))

	_, err := svc.Scan(ctx)
	assert.Error(t, err)
}
