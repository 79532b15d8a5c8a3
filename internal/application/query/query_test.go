package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/internal/infrastructure/persistence/memory"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

// fakeSource serves records per category. A category missing from rows
// answers NotFound; a category in errs fails with that error; a category in
// block waits for ctx to end.
type fakeSource struct {
	mu      sync.Mutex
	rows    map[grade.Category]*grade.Record
	errs    map[grade.Category]error
	block   map[grade.Category]bool
	filters map[grade.Category]grade.Filter
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		rows:    make(map[grade.Category]*grade.Record),
		errs:    make(map[grade.Category]error),
		block:   make(map[grade.Category]bool),
		filters: make(map[grade.Category]grade.Filter),
	}
}

func (f *fakeSource) FindOne(ctx context.Context, c grade.Category, filter grade.Filter) (*grade.Record, error) {
	f.mu.Lock()
	f.filters[c] = filter
	rec, err, block := f.rows[c], f.errs[c], f.block[c]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, shared.NewDomainError("fake", "FindOne", shared.ErrNotFound, "no rows")
	}
	return rec, nil
}

func num(v float64) grade.Value {
	return grade.Value{Type: grade.PropertyNumber, Number: &v}
}

func formula(v float64) grade.Value {
	return grade.Value{Type: grade.PropertyFormula, Number: &v}
}

func record(props map[string]grade.Value) *grade.Record {
	return &grade.Record{ID: "row", Properties: props}
}

// fullSource returns a source where every category has a row:
// midterms 8, homework 7, weekly 9, practical 6, problems 10 -> 7.9.
func fullSource() *fakeSource {
	f := newFakeSource()
	f.rows[grade.CategoryRoster] = record(map[string]grade.Value{
		grade.PropEmail:      {Type: grade.PropertyEmail, Text: "alumna@example.com"},
		grade.PropFinalGrade: {Type: grade.PropertyRichText, Text: "9 (nueve)"},
	})
	f.rows[grade.CategoryMidterms] = record(map[string]grade.Value{
		grade.PropAverage: formula(8), "Parcial 1": num(8), grade.PropExtra4: num(0.5),
	})
	f.rows[grade.CategoryHomework] = record(map[string]grade.Value{grade.PropAverage: formula(7)})
	f.rows[grade.CategoryWeekly] = record(map[string]grade.Value{grade.PropAverage: formula(9), "Semanal 1": num(9)})
	f.rows[grade.CategoryPractical] = record(map[string]grade.Value{grade.PropAverage: num(6)})
	f.rows[grade.CategoryProblems] = record(map[string]grade.Value{grade.PropAverage: formula(10)})
	f.rows[grade.CategoryFinal] = record(map[string]grade.Value{})
	return f
}

func TestGetReport_Full(t *testing.T) {
	src := fullSource()
	h := NewGetReportHandler(src, time.Second, nil)

	report, err := h.Handle(context.Background(), GetReportQuery{AccountNumber: " 31234567 "})
	require.NoError(t, err)

	require.NotNil(t, report.WeightedAverage)
	assert.InDelta(t, 7.9, *report.WeightedAverage, 1e-9)
	assert.False(t, report.IsFirstRoundOnly())
	assert.Equal(t, grade.AccountID("31234567"), report.Account)
	require.NotNil(t, report.Extra.Midterm4)
	assert.Equal(t, 0.5, *report.Extra.Midterm4)

	assert.Equal(t, grade.NumberEquals(grade.PropAccount, 31234567), src.filters[grade.CategoryRoster])
	for _, c := range grade.GradedCategories {
		assert.Equal(t, grade.TextEquals(grade.PropAccount, "31234567"), src.filters[c], string(c))
	}
}

func TestGetReport_InvalidAccount(t *testing.T) {
	h := NewGetReportHandler(fullSource(), time.Second, nil)

	_, err := h.Handle(context.Background(), GetReportQuery{AccountNumber: "12ab"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), GetReportQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestGetReport_NotInRoster(t *testing.T) {
	src := fullSource()
	delete(src.rows, grade.CategoryRoster)

	_, err := NewGetReportHandler(src, time.Second, nil).Handle(context.Background(), GetReportQuery{AccountNumber: "31234567"})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
	assert.ErrorIs(t, err, grade.ErrNotInRoster)
}

func TestGetReport_MissingCategoryIsNotFound(t *testing.T) {
	for _, c := range grade.GradedCategories {
		t.Run(string(c), func(t *testing.T) {
			src := fullSource()
			delete(src.rows, c)

			report, err := NewGetReportHandler(src, time.Second, nil).Handle(context.Background(), GetReportQuery{AccountNumber: "31234567"})
			require.Error(t, err)
			assert.Nil(t, report)
			assert.True(t, shared.IsNotFound(err))
		})
	}
}

func TestGetReport_FirstRoundWinsOverMissingCategories(t *testing.T) {
	src := newFakeSource()
	src.rows[grade.CategoryRoster] = record(nil)
	src.rows[grade.CategoryFinal] = record(map[string]grade.Value{grade.PropFirstRound: num(8.5)})
	src.errs[grade.CategoryHomework] = shared.NewDomainError("fake", "FindOne", shared.ErrUpstreamUnavailable, "down")
	src.block[grade.CategoryWeekly] = true

	report, err := NewGetReportHandler(src, 5*time.Second, nil).Handle(context.Background(), GetReportQuery{AccountNumber: "31234567"})
	require.NoError(t, err)
	require.True(t, report.IsFirstRoundOnly())
	assert.Equal(t, 8.5, *report.FirstRoundFinal)
	assert.Nil(t, report.WeightedAverage)
}

func TestGetReport_UpstreamErrorPropagates(t *testing.T) {
	src := fullSource()
	src.errs[grade.CategoryProblems] = shared.NewDomainError("fake", "FindOne", shared.ErrUpstreamUnavailable, "down")

	_, err := NewGetReportHandler(src, time.Second, nil).Handle(context.Background(), GetReportQuery{AccountNumber: "31234567"})
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
}

func TestGetReport_TimeoutIsRetryable(t *testing.T) {
	src := fullSource()
	src.block[grade.CategoryHomework] = true

	start := time.Now()
	_, err := NewGetReportHandler(src, 30*time.Millisecond, nil).Handle(context.Background(), GetReportQuery{AccountNumber: "31234567"})
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGetReport_CallerCancellation(t *testing.T) {
	src := fullSource()
	src.block[grade.CategoryRoster] = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGetReportHandler(src, time.Second, nil).Handle(ctx, GetReportQuery{AccountNumber: "31234567"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, shared.IsRetryable(err))
}

func TestGetFinalGrade(t *testing.T) {
	src := fullSource()
	h := NewGetFinalGradeHandler(src, time.Second)

	res, err := h.Handle(context.Background(), GetFinalGradeQuery{AccountNumber: "31234567"})
	require.NoError(t, err)
	assert.Equal(t, "9 (nueve)", res.Final)

	src.rows[grade.CategoryRoster] = record(map[string]grade.Value{})
	res, err = h.Handle(context.Background(), GetFinalGradeQuery{AccountNumber: "31234567"})
	require.NoError(t, err)
	assert.Equal(t, "", res.Final)

	delete(src.rows, grade.CategoryRoster)
	_, err = h.Handle(context.Background(), GetFinalGradeQuery{AccountNumber: "31234567"})
	assert.True(t, shared.IsNotFound(err))
}

func TestVerifyEnrollment(t *testing.T) {
	src := fullSource()
	h := NewVerifyEnrollmentHandler(src, time.Second)

	res, err := h.Handle(context.Background(), VerifyEnrollmentQuery{AccountNumber: "31234567"})
	require.NoError(t, err)
	assert.Equal(t, "alumna@example.com", res.Email)

	src.rows[grade.CategoryRoster] = record(map[string]grade.Value{
		grade.PropEmail: {Type: grade.PropertyRichText, Text: "not-an-email-property"},
	})
	_, err = h.Handle(context.Background(), VerifyEnrollmentQuery{AccountNumber: "31234567"})
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)

	delete(src.rows, grade.CategoryRoster)
	_, err = h.Handle(context.Background(), VerifyEnrollmentQuery{AccountNumber: "31234567"})
	assert.True(t, shared.IsNotFound(err))
}

func TestGetUsage(t *testing.T) {
	store := memory.NewUsageStore()
	clock := timeutil.FixedClock(time.Date(2025, 5, 28, 12, 0, 0, 0, timeutil.Zone()))
	h := NewGetUsageHandler(store, clock)
	ctx := context.Background()

	status, err := h.Handle(ctx, GetUsageQuery{ChatID: 42})
	require.NoError(t, err)
	assert.Equal(t, usage.DailyCap, status.Remaining)
	assert.Equal(t, 0, status.Count)

	require.NoError(t, store.CompareAndUpdate(ctx, 42, func(*usage.Record) (*usage.Record, error) {
		return &usage.Record{Count: 1, LastDate: "2025-05-28"}, nil
	}))
	status, err = h.Handle(ctx, GetUsageQuery{ChatID: 42})
	require.NoError(t, err)
	assert.Equal(t, 1, status.Remaining)
	assert.Equal(t, timeutil.Date("2025-05-28"), status.LastDate)

	_, err = h.Handle(ctx, GetUsageQuery{})
	assert.True(t, shared.IsValidation(err))
}
