package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesbot/gradesbot/internal/domain/shared"
)

func num(v float64) *float64 { return &v }

func numberRecord(props map[string]float64) *Record {
	rec := &Record{Properties: map[string]Value{}}
	for k, v := range props {
		rec.Properties[k] = Value{Type: PropertyNumber, Number: num(v)}
	}
	return rec
}

func fullRows(weekly float64) map[Category]*Record {
	return map[Category]*Record{
		CategoryWeekly:    numberRecord(map[string]float64{PropAverage: weekly, "Semanal 1": 9, "Semanal 10": 8}),
		CategoryHomework:  numberRecord(map[string]float64{PropAverage: 7, "Tarea 2": 7}),
		CategoryMidterms:  numberRecord(map[string]float64{PropAverage: 8, "Parcial 1": 8, PropExtra4: 0.5}),
		CategoryProblems:  numberRecord(map[string]float64{PropAverage: 10}),
		CategoryPractical: numberRecord(map[string]float64{PropAverage: 6}),
		CategoryFinal:     numberRecord(nil),
	}
}

func TestParseAccountID(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"321176898", true},
		{" 12345678 ", true},
		{"1234567890", true},
		{"1234567", false},
		{"12345678901", false},
		{"12a45678", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			id, err := ParseAccountID(tc.in)
			if tc.valid {
				require.NoError(t, err)
				n, err := id.Number()
				require.NoError(t, err)
				assert.Positive(t, n)
				return
			}
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestWeightedAverage(t *testing.T) {
	assert.InDelta(t, 7.9, WeightedAverage(8, 7, 9, 6, 10), 1e-9)
}

func TestIsRemedial_Boundary(t *testing.T) {
	assert.True(t, IsRemedial(num(5.9)))
	assert.False(t, IsRemedial(num(6.0)))
	assert.False(t, IsRemedial(nil))
}

func TestClassifyTier(t *testing.T) {
	assert.Equal(t, TierTop, ClassifyTier(9.0))
	assert.Equal(t, TierSecond, ClassifyTier(8.999))
	assert.Equal(t, TierSecond, ClassifyTier(8.0))
	assert.Equal(t, TierThird, ClassifyTier(7.999))
	assert.Equal(t, TierThird, ClassifyTier(7.0))
	assert.Equal(t, TierLowest, ClassifyTier(6.99))
	assert.Equal(t, TierLowest, ClassifyTier(0))
}

func TestItemLabels(t *testing.T) {
	assert.Equal(t, []string{"Tarea 1", "Tarea 2", "Tarea 3", "Tarea 4"}, ItemLabels(CategoryHomework))
	assert.Len(t, ItemLabels(CategoryWeekly), 10)
	assert.Equal(t, "Semanal 10", ItemLabels(CategoryWeekly)[9])
	assert.Nil(t, ItemLabels(CategoryPractical))
}

func TestBuildReport_Full(t *testing.T) {
	r, err := BuildReport("321176898", fullRows(9))
	require.NoError(t, err)

	assert.False(t, r.IsFirstRoundOnly())
	require.NotNil(t, r.WeightedAverage)
	assert.InDelta(t, 7.9, *r.WeightedAverage, 1e-9)

	require.Len(t, r.Weekly.Items, 10)
	assert.Equal(t, "Semanal 1", r.Weekly.Items[0].Label)
	assert.Equal(t, 9.0, *r.Weekly.Items[0].Score)
	assert.Nil(t, r.Weekly.Items[1].Score)
	assert.Len(t, r.Midterms.Items, 3)
	assert.Len(t, r.Problems.Items, 4)

	assert.Equal(t, 0.5, *r.Extra.Midterm4)
	assert.Nil(t, r.Extra.Midterm5)
}

func TestBuildReport_FirstRoundShortCircuit(t *testing.T) {
	rows := map[Category]*Record{
		CategoryFinal: numberRecord(map[string]float64{PropFirstRound: 7.5}),
	}
	r, err := BuildReport("321176898", rows)
	require.NoError(t, err)

	require.True(t, r.IsFirstRoundOnly())
	assert.Equal(t, 7.5, *r.FirstRoundFinal)
	assert.Nil(t, r.WeightedAverage)
	assert.Empty(t, r.Weekly.Items)
}

func TestBuildReport_MissingCategory(t *testing.T) {
	rows := fullRows(9)
	delete(rows, CategoryProblems)

	r, err := BuildReport("321176898", rows)
	assert.Nil(t, r)
	assert.True(t, shared.IsNotFound(err))
}

func TestBuildReport_MissingAverageIsNotZeroFilled(t *testing.T) {
	rows := fullRows(9)
	rows[CategoryPractical] = numberRecord(nil)

	r, err := BuildReport("321176898", rows)
	require.NoError(t, err)
	assert.Nil(t, r.Practical)
	assert.Nil(t, r.WeightedAverage)
}

func TestAssess(t *testing.T) {
	t.Run("remedial hides extra credit", func(t *testing.T) {
		r, err := BuildReport("321176898", fullRows(5.9))
		require.NoError(t, err)
		a := r.Assess()
		assert.True(t, a.Remedial)
		assert.Nil(t, a.FinalScore)
	})

	t.Run("extra credit is added before tiering", func(t *testing.T) {
		r, err := BuildReport("321176898", fullRows(6.0))
		require.NoError(t, err)
		a := r.Assess()
		assert.False(t, a.Remedial)
		assert.InDelta(t, 0.5, a.ExtraCredit, 1e-9)
		require.NotNil(t, a.FinalScore)
		// 0.3*8 + 0.3*7 + 0.2*6 + 0.1*6 + 0.1*10 = 7.3, plus 0.5
		assert.InDelta(t, 7.8, *a.FinalScore, 1e-9)
		assert.Equal(t, TierThird, *a.Tier)
	})

	t.Run("no weighted average means no tier", func(t *testing.T) {
		r := &Report{Weekly: CategoryScores{Average: num(8)}}
		a := r.Assess()
		assert.False(t, a.Remedial)
		assert.Nil(t, a.FinalScore)
		assert.Nil(t, a.Tier)
	})
}

func TestRosterEntry_VerifiedEmail(t *testing.T) {
	rec := &Record{Properties: map[string]Value{
		PropEmail:      {Type: PropertyEmail, Text: "alumna@ciencias.unam.mx"},
		PropFinalGrade: {Type: PropertyRichText, Text: "9"},
	}}
	entry := RosterEntryFrom("321176898", rec)

	email, err := entry.VerifiedEmail()
	require.NoError(t, err)
	assert.Equal(t, "alumna@ciencias.unam.mx", email)
	assert.Equal(t, "9", entry.FinalGrade)

	bad := RosterEntryFrom("321176898", &Record{Properties: map[string]Value{
		PropEmail: {Type: PropertyRichText, Text: "not-an-email-prop"},
	}})
	_, err = bad.VerifiedEmail()
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}
