package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pretgo/internal/domain"
	"pretgo/internal/events"
	"pretgo/internal/metrics"
	"pretgo/internal/models"
	"pretgo/internal/overdue"

	"github.com/rs/zerolog"
)

// RawNumber keeps form input as typed: JSON numbers and strings are both
// accepted, and parsing is left to the duration resolver.
type RawNumber string

func (n *RawNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = RawNumber(s)
		return nil
	}
	*n = RawNumber(data)
	return nil
}

// LoanItemRequest is one line of the loan form.
type LoanItemRequest struct {
	Description string `json:"description"`
	ItemID      *int64 `json:"materiel_id"`
}

// LoanRequest is the loan form as submitted.
type LoanRequest struct {
	PersonID      int64             `json:"personne_id"`
	Items         []LoanItemRequest `json:"items"`
	DurationType  string            `json:"duree_type"`
	DurationHours RawNumber         `json:"duree_heures"`
	DurationDays  RawNumber         `json:"duree_jours"`
	LocationID    *int64            `json:"lieu_id"`
	Notes         string            `json:"notes"`
}

// LoanService creates, edits and returns loans and decorates them with
// their due time and overdue state.
type LoanService struct {
	loans    domain.LoanRepository
	people   domain.PersonRepository
	policy   domain.PolicySource
	eventBus domain.EventPublisher
	now      domain.Clock
	loc      *time.Location
	logger   *zerolog.Logger
}

func NewLoanService(
	loans domain.LoanRepository,
	people domain.PersonRepository,
	policy domain.PolicySource,
	eventBus domain.EventPublisher,
	loc *time.Location,
	logger *zerolog.Logger,
) *LoanService {
	if loc == nil {
		loc = time.Local
	}
	return &LoanService{
		loans:    loans,
		people:   people,
		policy:   policy,
		eventBus: eventBus,
		now:      time.Now,
		loc:      loc,
		logger:   logger,
	}
}

// WithClock replaces the time source.
func (s *LoanService) WithClock(now domain.Clock) *LoanService {
	s.now = now
	return s
}

// Now returns the current time in the installation time zone.
func (s *LoanService) Now() time.Time {
	return s.now().In(s.loc)
}

func cleanItems(items []LoanItemRequest) []models.LoanItem {
	var out []models.LoanItem
	for _, it := range items {
		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			continue
		}
		out = append(out, models.LoanItem{Description: desc, ItemID: it.ItemID})
	}
	return out
}

func describe(items []models.LoanItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.Description
	}
	return strings.Join(parts, " + ")
}

// resolveDuration turns the form choice into stored columns. An end-of-day
// loan is frozen against start.
func resolveDuration(req LoanRequest, start time.Time, cutoff overdue.Cutoff) (*float64, *int, string) {
	spec := overdue.ParseSpec(req.DurationType, string(req.DurationHours), string(req.DurationDays), start, cutoff)
	hours, days := spec.Fields()
	durationType := spec.Kind.String()
	if strings.TrimSpace(req.DurationType) == models.DurationEndOfDay {
		durationType = models.DurationEndOfDay
	}
	return hours, days, durationType
}

func (s *LoanService) validate(ctx context.Context, req LoanRequest) ([]models.LoanItem, error) {
	items := cleanItems(req.Items)
	if req.PersonID == 0 || len(items) == 0 {
		return nil, fmt.Errorf("%w: a person and at least one item are required", ErrValidation)
	}
	p, err := s.people.GetPerson(ctx, req.PersonID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: person %d is inactive", ErrValidation, p.ID)
	}
	return items, nil
}

// Create records a new loan starting now.
func (s *LoanService) Create(ctx context.Context, req LoanRequest) (*models.LoanView, error) {
	items, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy.Policy(ctx)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	hours, days, durationType := resolveDuration(req, now, policy.Cutoff)
	loan := &models.Loan{
		PersonID:      req.PersonID,
		Description:   describe(items),
		StartedAt:     now.Format(overdue.TimeLayout),
		Notes:         strings.TrimSpace(req.Notes),
		DurationHours: hours,
		DurationDays:  days,
		DurationType:  durationType,
		LocationID:    req.LocationID,
		Items:         items,
	}
	if err := s.loans.CreateLoan(ctx, loan); err != nil {
		return nil, err
	}

	metrics.IncLoansCreated()
	s.logger.Info().Int64("loan_id", loan.ID).Int64("person_id", loan.PersonID).Str("duration", durationType).Msg("Loan created")
	s.publishEvent(events.EventLoanCreated, loan, false)

	created, err := s.loans.GetLoan(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	view := s.view(*created, policy, now)
	return &view, nil
}

// Update edits an active loan. The duration is resolved again against the
// loan's own start time.
func (s *LoanService) Update(ctx context.Context, id int64, req LoanRequest) (*models.LoanView, error) {
	items, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	loan, err := s.loans.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy.Policy(ctx)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	start, err := overdue.ParseStart(loan.StartedAt, s.loc)
	if err != nil {
		start = now
	}
	hours, days, durationType := resolveDuration(req, start, policy.Cutoff)
	modified := now.Format(overdue.TimeLayout)

	loan.PersonID = req.PersonID
	loan.Description = describe(items)
	loan.Notes = strings.TrimSpace(req.Notes)
	loan.DurationHours = hours
	loan.DurationDays = days
	loan.DurationType = durationType
	loan.LocationID = req.LocationID
	loan.ModifiedAt = &modified
	loan.Items = items

	if err := s.loans.UpdateLoan(ctx, loan); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("loan_id", id).Msg("Loan updated")
	s.publishEvent(events.EventLoanUpdated, loan, true)

	updated, err := s.loans.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.view(*updated, policy, now)
	return &view, nil
}

// Return confirms the return of one loan.
func (s *LoanService) Return(ctx context.Context, id int64, signature string) error {
	returnedAt := s.Now().Format(overdue.TimeLayout)
	if err := s.loans.ReturnLoan(ctx, id, returnedAt, strings.TrimSpace(signature)); err != nil {
		return err
	}
	metrics.AddLoansReturned(1)
	s.logger.Info().Int64("loan_id", id).Msg("Loan returned")
	if loan, err := s.loans.GetLoan(ctx, id); err == nil {
		s.publishEvent(events.EventLoanReturned, loan, false)
	}
	return nil
}

// ReturnMany confirms several returns and reports how many were recorded.
func (s *LoanService) ReturnMany(ctx context.Context, ids []int64, signature string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no loan selected", ErrValidation)
	}
	returnedAt := s.Now().Format(overdue.TimeLayout)
	n, err := s.loans.ReturnLoans(ctx, ids, returnedAt, strings.TrimSpace(signature))
	if err != nil {
		return 0, err
	}
	metrics.AddLoansReturned(n)
	s.logger.Info().Int("count", n).Msg("Bulk return")
	for _, id := range ids {
		if loan, err := s.loans.GetLoan(ctx, id); err == nil && loan.Returned && loan.ReturnedAt != nil && *loan.ReturnedAt == returnedAt {
			s.publishEvent(events.EventLoanReturned, loan, false)
		}
	}
	return n, nil
}

func (s *LoanService) Delete(ctx context.Context, id int64) error {
	loan, err := s.loans.GetLoan(ctx, id)
	if err != nil {
		return err
	}
	if err := s.loans.DeleteLoan(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("loan_id", id).Msg("Loan deleted")
	s.publishEvent(events.EventLoanDeleted, loan, true)
	return nil
}

func (s *LoanService) Get(ctx context.Context, id int64) (*models.LoanView, error) {
	loan, err := s.loans.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy.Policy(ctx)
	if err != nil {
		return nil, err
	}
	view := s.view(*loan, policy, s.Now())
	return &view, nil
}

// List returns decorated loans. One policy snapshot and one clock reading
// serve the whole list.
func (s *LoanService) List(ctx context.Context, f models.LoanFilter) ([]models.LoanView, error) {
	loans, err := s.loans.ListLoans(ctx, f)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy.Policy(ctx)
	if err != nil {
		return nil, err
	}
	return s.Views(loans, policy, s.Now()), nil
}

// Views decorates loans against one policy and one instant.
func (s *LoanService) Views(loans []models.Loan, policy overdue.Policy, now time.Time) []models.LoanView {
	views := make([]models.LoanView, len(loans))
	for i := range loans {
		views[i] = s.view(loans[i], policy, now)
	}
	return views
}

func (s *LoanService) view(l models.Loan, policy overdue.Policy, now time.Time) models.LoanView {
	v := models.LoanView{
		Loan:          l,
		DurationLabel: overdue.FormatDuration(l.DurationType, l.DurationHours, l.DurationDays, policy.Cutoff),
	}
	start, err := overdue.ParseStart(l.StartedAt, now.Location())
	if err != nil {
		return v
	}
	due := overdue.ResolveDueAt(start, overdue.SpecFromFields(l.DurationHours, l.DurationDays), policy)
	v.DueAt = due.Format(overdue.TimeLayout)
	if l.Returned {
		return v
	}
	st := overdue.ComputeAt(start, l.DurationHours, l.DurationDays, now, policy)
	v.Overdue = st.Overdue
	v.OverdueHours = st.Hours
	v.OverdueLabel = st.Label()
	return v
}

// Dashboard gathers the landing page: active loans oldest first, counts and
// the latest returns.
func (s *LoanService) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	active, err := s.List(ctx, models.LoanFilter{Status: models.LoanFilterActive, OldestFirst: true})
	if err != nil {
		return nil, err
	}
	recent, err := s.loans.ListLoans(ctx, models.LoanFilter{Status: models.LoanFilterReturned, Limit: models.RecentReturnsLimit})
	if err != nil {
		return nil, err
	}
	activeCount, returnedCount, err := s.loans.CountLoans(ctx)
	if err != nil {
		return nil, err
	}
	byCategory, err := s.people.CountPeopleByCategory(ctx)
	if err != nil {
		return nil, err
	}

	d := &models.Dashboard{
		ActiveLoans:   active,
		RecentReturns: recent,
		ActiveCount:   activeCount,
		ReturnedCount: returnedCount,
	}
	for _, n := range byCategory {
		d.PeopleCount += n
	}
	for _, v := range active {
		if v.Overdue {
			d.AlertCount++
		}
	}
	return d, nil
}

// PersonHistory lists every loan of a person.
func (s *LoanService) PersonHistory(ctx context.Context, personID int64) (*models.LoanHistory, error) {
	if _, err := s.people.GetPerson(ctx, personID); err != nil {
		return nil, err
	}
	return s.history(ctx, models.LoanFilter{PersonID: personID})
}

// ItemHistory lists every loan that included an inventory item.
func (s *LoanService) ItemHistory(ctx context.Context, itemID int64) (*models.LoanHistory, error) {
	return s.history(ctx, models.LoanFilter{ItemID: itemID})
}

func (s *LoanService) history(ctx context.Context, f models.LoanFilter) (*models.LoanHistory, error) {
	loans, err := s.loans.ListLoans(ctx, f)
	if err != nil {
		return nil, err
	}
	h := &models.LoanHistory{Loans: loans, Total: len(loans)}
	for _, l := range loans {
		if l.Returned {
			h.Returned++
		} else {
			h.Active++
		}
	}
	return h, nil
}

func (s *LoanService) publishEvent(eventType string, loan *models.Loan, admin bool) {
	if s.eventBus == nil {
		return
	}

	payload := events.LoanEventPayload{
		LoanID:      loan.ID,
		PersonID:    loan.PersonID,
		Description: loan.Description,
		StartedAt:   loan.StartedAt,
		Admin:       admin,
	}
	if loan.PersonLastName != "" {
		payload.PersonName = loan.BorrowerName()
	}
	if loan.ReturnedAt != nil {
		payload.ReturnedAt = *loan.ReturnedAt
	}
	for _, it := range loan.Items {
		if it.ItemID != nil {
			payload.ItemIDs = append(payload.ItemIDs, *it.ItemID)
		}
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("loan_id", loan.ID).Msg("publish event error")
	}
}
