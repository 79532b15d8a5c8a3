package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gradesbot/gradesbot/internal/application/command"
	"github.com/gradesbot/gradesbot/internal/application/query"
	"github.com/gradesbot/gradesbot/internal/domain/grade"
	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/internal/interface/presenter"
	"github.com/gradesbot/gradesbot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE BODIES
// ══════════════════════════════════════════════════════════════════════════════

type accountRequest struct {
	AccountNumber string `json:"accountNumber"`

	// ChatID, when set, charges the query to that chat's daily quota.
	ChatID *int64 `json:"chatId,omitempty"`
}

type messageResponse struct {
	Message   string `json:"message"`
	Remaining *int   `json:"remaining,omitempty"`
}

type finalResponse struct {
	Final string `json:"final"`
}

type enrollmentResponse struct {
	Email string `json:"email"`
}

var errMalformedBody = shared.NewDomainError("gateway", "decode", shared.ErrValidation, "cuerpo JSON inválido")

func decodeAccountRequest(r *http.Request) (accountRequest, error) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, errMalformedBody
	}
	return req, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth serves the aggregated health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

// handleConsultar serves POST /consultar with the formatted report text.
func (s *Server) handleConsultar(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAccountRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := grade.ParseAccountID(req.AccountNumber); err != nil {
		writeError(w, r, err)
		return
	}

	var remaining *int
	if req.ChatID != nil {
		decision, err := s.deps.CheckUsage.Handle(r.Context(), command.CheckUsageCommand{ChatID: usage.ChatID(*req.ChatID)})
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			writeError(w, r, usage.ErrCapReached)
			return
		}
		remaining = &decision.Remaining
	}

	report, err := s.deps.Reports.Handle(r.Context(), query.GetReportQuery{AccountNumber: req.AccountNumber})
	if err != nil {
		writeError(w, r, err)
		return
	}

	fields := []logger.Field{logger.Account(report.Account.String())}
	if req.ChatID != nil {
		fields = append(fields, logger.ChatID(*req.ChatID))
	}
	logger.FromContext(r.Context()).Info("report served", fields...)
	writeJSON(w, http.StatusOK, messageResponse{
		Message:   s.deps.Presenter.FormatReport(report),
		Remaining: remaining,
	})
}

// handleFinal serves POST /final with the final course grade text.
func (s *Server) handleFinal(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAccountRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Finals.Handle(r.Context(), query.GetFinalGradeQuery{AccountNumber: req.AccountNumber})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: s.deps.Presenter.FormatFinalGrade(res)})
}

// ══════════════════════════════════════════════════════════════════════════════
// DATA ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetReport serves GET /calificaciones with the structured report.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Reports.Handle(r.Context(), query.GetReportQuery{
		AccountNumber: r.URL.Query().Get("accountNumber"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presenter.ToScoreReportDTO(report))
}

// handleGetFinalGrade serves GET /calificacionfinal.
func (s *Server) handleGetFinalGrade(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Finals.Handle(r.Context(), query.GetFinalGradeQuery{
		AccountNumber: r.URL.Query().Get("accountNumber"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, finalResponse{Final: res.Final})
}

// handleVerifyEnrollment serves GET /valida_en_lista.
func (s *Server) handleVerifyEnrollment(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Enrollment.Handle(r.Context(), query.VerifyEnrollmentQuery{
		AccountNumber: r.URL.Query().Get("accountNumber"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollmentResponse{Email: res.Email})
}

// handleGetUsage serves GET /usage/{chatID} without consuming quota.
func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		writeError(w, r, usage.ErrInvalidChatID)
		return
	}

	status, err := s.deps.Usage.Handle(r.Context(), query.GetUsageQuery{ChatID: usage.ChatID(id)})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
