package presenter

import (
	"github.com/gradesbot/gradesbot/internal/domain/grade"
)

// ScoreReportDTO is the structured report served by the gateway.
type ScoreReportDTO struct {
	Account string `json:"account"`

	Weekly         *float64            `json:"semanales"`
	WeeklyDetail   map[string]*float64 `json:"detalleSemanales,omitempty"`
	Homework       *float64            `json:"tareas"`
	HomeworkDetail map[string]*float64 `json:"detalleTareas,omitempty"`
	Midterms       *float64            `json:"parciales"`
	MidtermsDetail map[string]*float64 `json:"detalleParciales,omitempty"`
	Problems       *float64            `json:"problemas"`
	ProblemsDetail map[string]*float64 `json:"detalleProblemas,omitempty"`
	Practical      *float64            `json:"practica"`

	Extra      map[string]*float64 `json:"extra,omitempty"`
	Average    *float64            `json:"promedio"`
	FirstRound *float64            `json:"finalPrimera"`
	Remedial   bool                `json:"remedial"`
	FinalScore *float64            `json:"calificacionFinal,omitempty"`
	Tier       string              `json:"nivel,omitempty"`
}

// ToScoreReportDTO converts a report into its JSON form.
func ToScoreReportDTO(r *grade.Report) ScoreReportDTO {
	dto := ScoreReportDTO{
		Account:    r.Account.String(),
		FirstRound: r.FirstRoundFinal,
	}
	if r.IsFirstRoundOnly() {
		return dto
	}

	dto.Weekly, dto.WeeklyDetail = r.Weekly.Average, r.Weekly.Detail()
	dto.Homework, dto.HomeworkDetail = r.Homework.Average, r.Homework.Detail()
	dto.Midterms, dto.MidtermsDetail = r.Midterms.Average, r.Midterms.Detail()
	dto.Problems, dto.ProblemsDetail = r.Problems.Average, r.Problems.Detail()
	dto.Practical = r.Practical
	dto.Extra = map[string]*float64{
		grade.PropExtra4: r.Extra.Midterm4,
		grade.PropExtra5: r.Extra.Midterm5,
	}
	dto.Average = r.WeightedAverage

	a := r.Assess()
	dto.Remedial = a.Remedial
	dto.FinalScore = a.FinalScore
	if a.Tier != nil {
		dto.Tier = a.Tier.String()
	}
	return dto
}
