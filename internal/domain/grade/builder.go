package grade

import (
	"github.com/gradesbot/gradesbot/internal/domain/shared"
)

// RosterEntry is a student's row in the roster table.
type RosterEntry struct {
	Account    AccountID
	Email      string
	FinalGrade string

	emailType PropertyType
}

// RosterEntryFrom reads a roster row.
func RosterEntryFrom(account AccountID, rec *Record) RosterEntry {
	entry := RosterEntry{Account: account}
	if v, ok := rec.Property(PropEmail); ok {
		entry.Email = v.Text
		entry.emailType = v.Type
	}
	entry.FinalGrade = rec.Text(PropFinalGrade)
	return entry
}

// VerifiedEmail returns the roster email, failing when the property is not an
// email property or is empty.
func (e RosterEntry) VerifiedEmail() (string, error) {
	if e.emailType != PropertyEmail || e.Email == "" {
		return "", ErrMalformedEmail
	}
	return e.Email, nil
}

// ErrMalformedEmail is returned when the roster email property has the wrong shape.
var ErrMalformedEmail = shared.NewDomainError("grade", "VerifiedEmail", shared.ErrInvalidFormat, `the "Correo" property is not a valid email`)

// ScoresFrom reads the average and ordered items of a category row.
func ScoresFrom(category Category, rec *Record) CategoryScores {
	labels := ItemLabels(category)
	scores := CategoryScores{
		Category: category,
		Average:  rec.Number(PropAverage),
		Items:    make([]Item, len(labels)),
	}
	for i, label := range labels {
		scores.Items[i] = Item{Label: label, Score: rec.Number(label)}
	}
	return scores
}

// FirstRoundScore returns the first-round final exam score of a final-table row.
func FirstRoundScore(rec *Record) *float64 {
	return rec.Number(PropFirstRound)
}

// BuildReport assembles a report from the six category rows. A present
// first-round final wins over everything else; otherwise every category row
// must be present.
func BuildReport(account AccountID, rows map[Category]*Record) (*Report, error) {
	if score := FirstRoundScore(rows[CategoryFinal]); score != nil {
		return FinalRoundReport(account, *score), nil
	}

	for _, c := range GradedCategories {
		if rows[c] == nil {
			return nil, MissingCategoryError(c)
		}
	}

	midterms := rows[CategoryMidterms]
	r := &Report{
		Account:   account,
		Weekly:    ScoresFrom(CategoryWeekly, rows[CategoryWeekly]),
		Homework:  ScoresFrom(CategoryHomework, rows[CategoryHomework]),
		Midterms:  ScoresFrom(CategoryMidterms, midterms),
		Problems:  ScoresFrom(CategoryProblems, rows[CategoryProblems]),
		Practical: rows[CategoryPractical].Number(PropAverage),
		Extra: ExtraCredit{
			Midterm4: midterms.Number(PropExtra4),
			Midterm5: midterms.Number(PropExtra5),
		},
	}
	r.WeightedAverage = weightedAverageOf(
		r.Midterms.Average,
		r.Homework.Average,
		r.Weekly.Average,
		r.Practical,
		r.Problems.Average,
	)
	return r, nil
}

// MissingCategoryError is the NotFound error for a category without a row.
func MissingCategoryError(c Category) error {
	return shared.NewDomainError("grade", "BuildReport", shared.ErrNotFound,
		"no records found for this account in category "+string(c))
}

// ErrNotInRoster is returned when the roster has no row for an account.
var ErrNotInRoster = shared.NewDomainError("grade", "FindRoster", shared.ErrNotFound, "account number not found in roster")
