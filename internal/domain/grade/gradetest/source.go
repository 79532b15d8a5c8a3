// Package gradetest provides an in-memory grade.Source for tests of the
// layers above the aggregator.
package gradetest

import (
	"context"
	"sync"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
	"github.com/gradesbot/gradesbot/internal/domain/shared"
)

// Source serves fixed rows per category. Categories without a row answer
// NotFound.
type Source struct {
	mu    sync.Mutex
	rows  map[grade.Category]*grade.Record
	errs  map[grade.Category]error
	calls map[grade.Category]int
}

// NewSource returns an empty source.
func NewSource() *Source {
	return &Source{
		rows:  make(map[grade.Category]*grade.Record),
		errs:  make(map[grade.Category]error),
		calls: make(map[grade.Category]int),
	}
}

// Set stores the row returned for category.
func (s *Source) Set(c grade.Category, props map[string]grade.Value) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[c] = &grade.Record{ID: string(c) + "-row", Properties: props}
	return s
}

// Fail makes every lookup of category return err.
func (s *Source) Fail(c grade.Category, err error) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[c] = err
	return s
}

// Calls returns how many lookups hit category.
func (s *Source) Calls(c grade.Category) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[c]
}

// FindOne implements grade.Source.
func (s *Source) FindOne(ctx context.Context, c grade.Category, _ grade.Filter) (*grade.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[c]++

	if err := s.errs[c]; err != nil {
		return nil, err
	}
	rec, ok := s.rows[c]
	if !ok {
		return nil, shared.NewDomainError("gradetest", "FindOne", shared.ErrNotFound, "no rows")
	}
	return rec, nil
}

// Number builds a numeric property.
func Number(v float64) grade.Value {
	return grade.Value{Type: grade.PropertyNumber, Number: &v}
}

// Formula builds a numeric formula property.
func Formula(v float64) grade.Value {
	return grade.Value{Type: grade.PropertyFormula, Number: &v}
}

// Text builds a rich text property.
func Text(v string) grade.Value {
	return grade.Value{Type: grade.PropertyRichText, Text: v}
}

// Enrolled returns a source holding only a roster row with the given email
// and final grade.
func Enrolled(email, final string) *Source {
	return NewSource().Set(grade.CategoryRoster, map[string]grade.Value{
		grade.PropEmail:      {Type: grade.PropertyEmail, Text: email},
		grade.PropFinalGrade: Text(final),
	})
}

// Complete returns a source where every category has a row and the weighted
// average is 7.9 (8, 7, 9, 6, 10).
func Complete() *Source {
	return Enrolled("alumna@example.com", "9 (nueve)").
		Set(grade.CategoryMidterms, map[string]grade.Value{grade.PropAverage: Formula(8), "Parcial 1": Number(8)}).
		Set(grade.CategoryHomework, map[string]grade.Value{grade.PropAverage: Formula(7)}).
		Set(grade.CategoryWeekly, map[string]grade.Value{grade.PropAverage: Formula(9)}).
		Set(grade.CategoryPractical, map[string]grade.Value{grade.PropAverage: Number(6)}).
		Set(grade.CategoryProblems, map[string]grade.Value{grade.PropAverage: Formula(10)}).
		Set(grade.CategoryFinal, map[string]grade.Value{})
}
