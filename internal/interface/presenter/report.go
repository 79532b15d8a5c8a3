// Package presenter turns reports into the text shown to students, shared by
// the Telegram bot and the HTTP gateway.
package presenter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gradesbot/gradesbot/internal/application/query"
	"github.com/gradesbot/gradesbot/internal/domain/grade"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT PRESENTER
// ══════════════════════════════════════════════════════════════════════════════

// RemedialDates are the final exam dates shown to remedial students.
type RemedialDates struct {
	FirstRound  string
	SecondRound string
}

// DefaultRemedialDates returns the dates of the current term.
func DefaultRemedialDates() RemedialDates {
	return RemedialDates{FirstRound: "29-05-2025", SecondRound: "03-06-2025"}
}

// ReportPresenter formats reports.
type ReportPresenter struct {
	dates RemedialDates
}

// NewReportPresenter creates a presenter.
func NewReportPresenter(dates RemedialDates) *ReportPresenter {
	return &ReportPresenter{dates: dates}
}

// tierEmoji maps a tier to its badge.
var tierEmoji = map[grade.Tier]string{
	grade.TierTop:    "⭐",
	grade.TierSecond: "👍",
	grade.TierThird:  "😬",
	grade.TierLowest: "🤥",
}

// TierEmoji returns the badge of a tier.
func TierEmoji(t grade.Tier) string {
	return tierEmoji[t]
}

// FormatReport renders the full report message.
func (p *ReportPresenter) FormatReport(r *grade.Report) string {
	if r.IsFirstRoundOnly() {
		return "Calificación examen final primera vuelta: " + formatPlain(*r.FirstRoundFinal)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "El o la alumna con número de cuenta %s tiene las siguientes calificaciones:\n", r.Account)

	p.writeCategory(&sb, "Promedio exámenes semanales", r.Weekly)
	p.writeCategory(&sb, "Promedio tareas", r.Homework)
	p.writeCategory(&sb, "Promedio exámenes parciales", r.Midterms)
	p.writeCategory(&sb, "Promedio resolución de problemas", r.Problems)

	if r.Practical == nil {
		sb.WriteString("\nCalificación práctica: Aún no disponible")
	} else {
		sb.WriteString("\nCalificación práctica: " + formatScore(r.Practical))
	}

	assessment := r.Assess()
	if assessment.Remedial {
		sb.WriteString("\n\nComo tu promedio de semanales es menor que 6, estás en final.\n")
		sb.WriteString("\n📅 Fechas de los exámanes finales:\n")
		fmt.Fprintf(&sb, "\n\tPrimera vuelta: %s\n", p.dates.FirstRound)
		fmt.Fprintf(&sb, "\n\tSegunda vuelta: %s\n", p.dates.SecondRound)
		return sb.String()
	}

	sb.WriteString("\n\n👀 Calificación extra por concluir el temario:")
	fmt.Fprintf(&sb, "\n\tParcial 4 (extra): +%.2f", valueOrZero(r.Extra.Midterm4))
	fmt.Fprintf(&sb, "\n\tParcial 5 (extra): +%.2f", valueOrZero(r.Extra.Midterm5))

	if r.WeightedAverage == nil || assessment.FinalScore == nil {
		sb.WriteString("\n\nPromedio: Aún no disponible\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "\n\nPromedio: %.2f\n", *r.WeightedAverage)
	fmt.Fprintf(&sb, "\n\n%s Calificación final: %.2f\n", TierEmoji(*assessment.Tier), *assessment.FinalScore)
	return sb.String()
}

func (p *ReportPresenter) writeCategory(sb *strings.Builder, title string, scores grade.CategoryScores) {
	fmt.Fprintf(sb, "\n%s: %s\n", title, formatScore(scores.Average))
	for _, it := range scores.Items {
		fmt.Fprintf(sb, "\t\t%s: %s\n", it.Label, formatScore(it.Score))
	}
}

// FinalGradePending is shown while the roster has no final course grade.
const FinalGradePending = "⚠️ Tu calificación final aún no está disponible."

// FormatFinalGrade renders the final course grade message.
func (p *ReportPresenter) FormatFinalGrade(res *query.FinalGradeResult) string {
	if strings.TrimSpace(res.Final) == "" {
		return FinalGradePending
	}
	return "Tu calificación final del curso es " + res.Final +
		"\n\nSi tienes dudas o comentarios respecto a esta, comunícate en breve."
}

// formatScore shows two decimals, or 0 for an absent score.
func formatScore(v *float64) string {
	if v == nil {
		return "0"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// formatPlain prints a number without trailing zeros.
func formatPlain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
