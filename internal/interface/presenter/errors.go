package presenter

import (
	"errors"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
	"github.com/gradesbot/gradesbot/internal/domain/shared"
)

// ErrorMessage returns the student-facing text for an error.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, grade.ErrAccountMissing):
		return "Falta número de cuenta"
	case errors.Is(err, grade.ErrAccountFormat):
		return "El número de cuenta debe tener entre 8 y 10 dígitos."
	case errors.Is(err, grade.ErrNotInRoster):
		return "No se encontró el número de cuenta"
	case errors.Is(err, grade.ErrMalformedEmail):
		return `La propiedad "Correo" no tiene formato válido.`
	case shared.IsValidation(err):
		return "Solicitud inválida: " + shared.Message(err)
	case shared.IsNotFound(err):
		return "No se encontraron registros para este número de cuenta"
	case shared.IsRateLimited(err):
		return "Límite diario alcanzado"
	case shared.IsRetryable(err):
		return "Error consultando Notion"
	default:
		return "Error interno"
	}
}
