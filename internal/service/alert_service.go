package service

import (
	"context"
	"time"

	"pretgo/internal/domain"
	"pretgo/internal/models"
	"pretgo/internal/overdue"

	"github.com/rs/zerolog"
)

// AlertReport is the result of one overdue scan.
type AlertReport struct {
	Policy    overdue.Policy    `json:"-"`
	Duration  float64           `json:"duree_defaut"`
	Unit      string            `json:"unite_defaut"`
	Cutoff    string            `json:"heure_fin_journee"`
	CheckedAt string            `json:"verifie_le"`
	Active    int               `json:"prets_actifs"`
	Alerts    []models.LoanView `json:"alertes"`
}

// AlertService finds overdue loans. Alerts are computed on read; nothing is
// stored.
type AlertService struct {
	loans  domain.LoanRepository
	policy domain.PolicySource
	now    domain.Clock
	loc    *time.Location
	logger *zerolog.Logger
}

func NewAlertService(loans domain.LoanRepository, policy domain.PolicySource, loc *time.Location, logger *zerolog.Logger) *AlertService {
	if loc == nil {
		loc = time.Local
	}
	return &AlertService{
		loans:  loans,
		policy: policy,
		now:    time.Now,
		loc:    loc,
		logger: logger,
	}
}

// WithClock replaces the time source.
func (s *AlertService) WithClock(now domain.Clock) *AlertService {
	s.now = now
	return s
}

// Scan checks every active loan, oldest first, against a single policy
// snapshot and a single instant.
func (s *AlertService) Scan(ctx context.Context) (*AlertReport, error) {
	policy, err := s.policy.Policy(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().In(s.loc)

	active, err := s.loans.ListLoans(ctx, models.LoanFilter{Status: models.LoanFilterActive, OldestFirst: true})
	if err != nil {
		return nil, err
	}

	report := &AlertReport{
		Policy:    policy,
		Duration:  policy.Duration,
		Unit:      string(policy.Unit),
		Cutoff:    policy.Cutoff.String(),
		CheckedAt: now.Format(overdue.TimeLayout),
		Active:    len(active),
		Alerts:    []models.LoanView{},
	}
	for _, l := range active {
		start, err := overdue.ParseStart(l.StartedAt, s.loc)
		if err != nil {
			s.logger.Warn().Int64("loan_id", l.ID).Str("date_emprunt", l.StartedAt).Msg("Unparseable loan start, skipped")
			continue
		}
		st := overdue.ComputeAt(start, l.DurationHours, l.DurationDays, now, policy)
		if !st.Overdue {
			continue
		}
		report.Alerts = append(report.Alerts, models.LoanView{
			Loan:          l,
			DueAt:         overdue.ResolveDueAt(start, overdue.SpecFromFields(l.DurationHours, l.DurationDays), policy).Format(overdue.TimeLayout),
			DurationLabel: overdue.FormatDuration(l.DurationType, l.DurationHours, l.DurationDays, policy.Cutoff),
			Overdue:       true,
			OverdueHours:  st.Hours,
			OverdueLabel:  st.Label(),
		})
	}
	return report, nil
}
