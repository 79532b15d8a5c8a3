package grade

// Category weights of the course average.
const (
	WeightMidterms  = 0.30
	WeightHomework  = 0.30
	WeightWeekly    = 0.20
	WeightPractical = 0.10
	WeightProblems  = 0.10
)

// RemedialThreshold is the weekly average below which a student sits the final exam.
const RemedialThreshold = 6.0

// Item is one labelled score, e.g. "Semanal 3".
type Item struct {
	Label string   `json:"label"`
	Score *float64 `json:"score"`
}

// CategoryScores is the average and ordered item detail of one category.
type CategoryScores struct {
	Category Category `json:"category"`
	Average  *float64 `json:"average"`
	Items    []Item   `json:"items"`
}

// Detail returns the items keyed by label.
func (c CategoryScores) Detail() map[string]*float64 {
	m := make(map[string]*float64, len(c.Items))
	for _, it := range c.Items {
		m[it.Label] = it.Score
	}
	return m
}

// ExtraCredit holds the two bonus midterms.
type ExtraCredit struct {
	Midterm4 *float64 `json:"parcial_4"`
	Midterm5 *float64 `json:"parcial_5"`
}

// Total returns the sum of both bonuses, counting absent ones as zero.
func (e ExtraCredit) Total() float64 {
	return valueOrZero(e.Midterm4) + valueOrZero(e.Midterm5)
}

// Report is the score report of one student. It is built per request and
// never stored.
type Report struct {
	Account AccountID

	// FirstRoundFinal, when set, replaces everything else in the report.
	FirstRoundFinal *float64

	Weekly    CategoryScores
	Homework  CategoryScores
	Midterms  CategoryScores
	Problems  CategoryScores
	Practical *float64

	Extra ExtraCredit

	// WeightedAverage is nil when any category average is missing.
	WeightedAverage *float64
}

// IsFirstRoundOnly reports whether the report is the first-round final only.
func (r *Report) IsFirstRoundOnly() bool {
	return r.FirstRoundFinal != nil
}

// FinalRoundReport builds the short-circuit report.
func FinalRoundReport(account AccountID, score float64) *Report {
	return &Report{Account: account, FirstRoundFinal: &score}
}

// WeightedAverage combines the five category averages.
func WeightedAverage(midterms, homework, weekly, practical, problems float64) float64 {
	return WeightMidterms*midterms +
		WeightHomework*homework +
		WeightWeekly*weekly +
		WeightPractical*practical +
		WeightProblems*problems
}

// weightedAverageOf returns nil when any average is missing; a missing value
// is never treated as zero here.
func weightedAverageOf(midterms, homework, weekly, practical, problems *float64) *float64 {
	if midterms == nil || homework == nil || weekly == nil || practical == nil || problems == nil {
		return nil
	}
	avg := WeightedAverage(*midterms, *homework, *weekly, *practical, *problems)
	return &avg
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT
// ══════════════════════════════════════════════════════════════════════════════

// Tier is the qualitative band of a final score.
type Tier int

const (
	TierLowest Tier = iota
	TierThird
	TierSecond
	TierTop
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierTop:
		return "top"
	case TierSecond:
		return "second"
	case TierThird:
		return "third"
	default:
		return "lowest"
	}
}

// ClassifyTier maps a final score to its band. Lower bounds are inclusive and
// bands are checked from the top down.
func ClassifyTier(score float64) Tier {
	switch {
	case score >= 9.0:
		return TierTop
	case score >= 8.0:
		return TierSecond
	case score >= 7.0:
		return TierThird
	default:
		return TierLowest
	}
}

// IsRemedial reports whether a weekly average sends the student to the final exam.
// An absent weekly average does not.
func IsRemedial(weekly *float64) bool {
	return weekly != nil && *weekly < RemedialThreshold
}

// Assessment is how a report is interpreted for the student.
type Assessment struct {
	Remedial bool `json:"remedial"`

	// Fields below are only meaningful when Remedial is false.
	ExtraCredit float64  `json:"extra_credit"`
	FinalScore  *float64 `json:"final_score,omitempty"`
	Tier        *Tier    `json:"-"`
}

// Assess applies the remedial rule and, when it does not apply, adds the
// extra credit to the weighted average and classifies the result.
func (r *Report) Assess() Assessment {
	if IsRemedial(r.Weekly.Average) {
		return Assessment{Remedial: true}
	}
	a := Assessment{ExtraCredit: r.Extra.Total()}
	if r.WeightedAverage != nil {
		final := *r.WeightedAverage + a.ExtraCredit
		tier := ClassifyTier(final)
		a.FinalScore = &final
		a.Tier = &tier
	}
	return a
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
