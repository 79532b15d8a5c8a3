package grade

import (
	"context"
	"strconv"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORIES
// ══════════════════════════════════════════════════════════════════════════════

// Category identifies one table in the record store.
type Category string

const (
	CategoryRoster    Category = "roster"
	CategoryWeekly    Category = "weekly"
	CategoryHomework  Category = "homework"
	CategoryMidterms  Category = "midterms"
	CategoryProblems  Category = "problems"
	CategoryPractical Category = "practical"
	CategoryFinal     Category = "final"
)

// GradedCategories are the six tables fetched for a report, in display order.
var GradedCategories = []Category{
	CategoryWeekly,
	CategoryHomework,
	CategoryMidterms,
	CategoryProblems,
	CategoryPractical,
	CategoryFinal,
}

// Property names used by the record store.
const (
	PropAccount    = "Cuenta"
	PropAverage    = "Promedio"
	PropEmail      = "Correo"
	PropFinalGrade = "Calificacion"
	PropFirstRound = "Primera vuelta"
	PropExtra4     = "Parcial 4"
	PropExtra5     = "Parcial 5"
)

// itemLayout describes the fixed list of item scores a category carries.
type itemLayout struct {
	prefix string
	count  int
}

var layouts = map[Category]itemLayout{
	CategoryWeekly:   {prefix: "Semanal", count: 10},
	CategoryHomework: {prefix: "Tarea", count: 4},
	CategoryMidterms: {prefix: "Parcial", count: 3},
	CategoryProblems: {prefix: "Set", count: 4},
}

// ItemLabels returns the ordered item labels of a category, e.g. "Tarea 1".."Tarea 4".
func ItemLabels(c Category) []string {
	layout, ok := layouts[c]
	if !ok {
		return nil
	}
	labels := make([]string, layout.count)
	for i := range labels {
		labels[i] = layout.prefix + " " + strconv.Itoa(i+1)
	}
	return labels
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// PropertyType is the store-level type of a property.
type PropertyType string

const (
	PropertyNumber   PropertyType = "number"
	PropertyFormula  PropertyType = "formula"
	PropertyRichText PropertyType = "rich_text"
	PropertyTitle    PropertyType = "title"
	PropertyEmail    PropertyType = "email"
	PropertyOther    PropertyType = "other"
)

// Value is one property of a record. Number is nil when the cell is empty.
type Value struct {
	Type   PropertyType
	Number *float64
	Text   string
}

// Record is one row of a category table.
type Record struct {
	ID         string
	Properties map[string]Value
}

// Number returns a numeric property, or nil when it is absent or empty.
func (r *Record) Number(name string) *float64 {
	if r == nil {
		return nil
	}
	v, ok := r.Properties[name]
	if !ok || v.Number == nil {
		return nil
	}
	n := *v.Number
	return &n
}

// Text returns a text property, or "" when it is absent.
func (r *Record) Text(name string) string {
	if r == nil {
		return ""
	}
	return r.Properties[name].Text
}

// Property returns the raw property and whether it exists.
func (r *Record) Property(name string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.Properties[name]
	return v, ok
}

// ══════════════════════════════════════════════════════════════════════════════
// FILTERS
// ══════════════════════════════════════════════════════════════════════════════

// MatchKind selects how a filter compares the account identifier.
type MatchKind int

const (
	// MatchNumber compares numerically. The roster table stores accounts as numbers.
	MatchNumber MatchKind = iota
	// MatchText compares as text. Category tables store accounts as rich text.
	MatchText
)

// Filter is an equality predicate on a single property.
type Filter struct {
	Property string
	Match    MatchKind
	Number   int64
	Text     string
}

// NumberEquals builds a numeric equality filter.
func NumberEquals(property string, value int64) Filter {
	return Filter{Property: property, Match: MatchNumber, Number: value}
}

// TextEquals builds a text equality filter.
func TextEquals(property string, value string) Filter {
	return Filter{Property: property, Match: MatchText, Text: value}
}

// Source reads rows from the record store.
type Source interface {
	// FindOne returns the first row of category matching filter.
	// Returns an error of kind shared.ErrNotFound when no row matches and
	// shared.ErrUpstreamUnavailable on transient failures.
	FindOne(ctx context.Context, category Category, filter Filter) (*Record, error)
}
