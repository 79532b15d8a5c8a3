package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesbot/gradesbot/internal/application/command"
	"github.com/gradesbot/gradesbot/internal/application/query"
	"github.com/gradesbot/gradesbot/internal/domain/grade"
	"github.com/gradesbot/gradesbot/internal/domain/grade/gradetest"
	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/internal/infrastructure/persistence/memory"
	"github.com/gradesbot/gradesbot/internal/interface/http/handlers"
	"github.com/gradesbot/gradesbot/internal/interface/presenter"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

func newTestServer(t *testing.T, src grade.Source, cfg Config, health handlers.HealthChecker) http.Handler {
	t.Helper()
	store := memory.NewUsageStore()
	clock := timeutil.FixedClock(time.Date(2025, 5, 28, 9, 0, 0, 0, timeutil.Zone()))

	srv, err := NewServer(cfg, Dependencies{
		Reports:    query.NewGetReportHandler(src, time.Second, nil),
		Finals:     query.NewGetFinalGradeHandler(src, time.Second),
		Enrollment: query.NewVerifyEnrollmentHandler(src, time.Second),
		Usage:      query.NewGetUsageHandler(store, clock),
		CheckUsage: command.NewCheckUsageHandler(store, clock, nil),
		Presenter:  presenter.NewReportPresenter(presenter.DefaultRemedialDates()),
		Health:     health,
	})
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestConsultar(t *testing.T) {
	h := newTestServer(t, gradetest.Complete(), DefaultConfig(), nil)

	rec, body := do(t, h, http.MethodPost, "/consultar", `{"accountNumber":"321176898"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	msg := body["message"].(string)
	assert.True(t, strings.HasPrefix(msg, "El o la alumna con número de cuenta 321176898"))
	assert.Contains(t, msg, "Promedio: 7.90")
	assert.NotContains(t, body, "remaining")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestConsultar_ChargesChatQuota(t *testing.T) {
	h := newTestServer(t, gradetest.Complete(), DefaultConfig(), nil)
	payload := `{"accountNumber":"321176898","chatId":9}`

	for _, left := range []float64{1, 0} {
		rec, body := do(t, h, http.MethodPost, "/consultar", payload)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, left, body["remaining"])
	}

	rec, body := do(t, h, http.MethodPost, "/consultar", payload)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Límite diario alcanzado", body["error"])
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec, body = do(t, h, http.MethodGet, "/usage/9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["request_count"])
	assert.Equal(t, float64(0), body["remaining"])
	assert.Equal(t, "2025-05-28", body["last_request_date"])
}

func TestConsultar_BadInputDoesNotChargeQuota(t *testing.T) {
	h := newTestServer(t, gradetest.Complete(), DefaultConfig(), nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing account", `{"chatId":9}`, "Falta número de cuenta"},
		{"bad format", `{"accountNumber":"12ab","chatId":9}`, "El número de cuenta debe tener entre 8 y 10 dígitos."},
		{"malformed json", `{"accountNumber":`, "Solicitud inválida: cuerpo JSON inválido"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodPost, "/consultar", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, body["error"])
		})
	}

	_, body := do(t, h, http.MethodGet, "/usage/9", "")
	assert.Equal(t, float64(0), body["request_count"])
	assert.Equal(t, float64(2), body["remaining"])
}

func TestErrorStatuses(t *testing.T) {
	upstream := shared.NewDomainError("notion", "FindOne", shared.ErrUpstreamUnavailable, "502")

	tests := []struct {
		name   string
		src    grade.Source
		target string
		status int
		want   string
	}{
		{"not enrolled", gradetest.NewSource(), "/calificaciones?accountNumber=321176898", http.StatusNotFound, "No se encontró el número de cuenta"},
		{"missing category", gradetest.Enrolled("a@example.com", ""), "/calificaciones?accountNumber=321176898", http.StatusNotFound, "No se encontraron registros para este número de cuenta"},
		{"upstream down", gradetest.Complete().Fail(grade.CategoryRoster, upstream), "/calificacionfinal?accountNumber=321176898", http.StatusServiceUnavailable, "Error consultando Notion"},
		{"malformed email", gradetest.Enrolled("", ""), "/valida_en_lista?accountNumber=321176898", http.StatusInternalServerError, `La propiedad "Correo" no tiene formato válido.`},
		{"missing query param", gradetest.Complete(), "/valida_en_lista", http.StatusBadRequest, "Falta número de cuenta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, newTestServer(t, tt.src, DefaultConfig(), nil), http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestGetReport(t *testing.T) {
	h := newTestServer(t, gradetest.Complete(), DefaultConfig(), nil)

	rec, body := do(t, h, http.MethodGet, "/calificaciones?accountNumber=321176898", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "321176898", body["account"])
	assert.InDelta(t, 7.9, body["promedio"].(float64), 1e-9)
	assert.InDelta(t, 9.0, body["semanales"].(float64), 1e-9)
	assert.Equal(t, false, body["remedial"])
	assert.Nil(t, body["finalPrimera"])
}

func TestFinalGradeAndEnrollment(t *testing.T) {
	h := newTestServer(t, gradetest.Complete(), DefaultConfig(), nil)

	_, body := do(t, h, http.MethodGet, "/calificacionfinal?accountNumber=321176898", "")
	assert.Equal(t, "9 (nueve)", body["final"])

	_, body = do(t, h, http.MethodGet, "/valida_en_lista?accountNumber=321176898", "")
	assert.Equal(t, "alumna@example.com", body["email"])

	rec, body := do(t, h, http.MethodPost, "/final", `{"accountNumber":"321176898"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(body["message"].(string), "Tu calificación final del curso es 9 (nueve)"))
}

func TestFinal_PendingGrade(t *testing.T) {
	h := newTestServer(t, gradetest.Enrolled("a@example.com", ""), DefaultConfig(), nil)

	rec, body := do(t, h, http.MethodPost, "/final", `{"accountNumber":"321176898"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, presenter.FinalGradePending, body["message"])

	_, body = do(t, h, http.MethodGet, "/calificacionfinal?accountNumber=321176898", "")
	assert.Equal(t, "", body["final"])
}

func TestGetUsage_InvalidChatID(t *testing.T) {
	h := newTestServer(t, gradetest.Complete(), DefaultConfig(), nil)

	for _, target := range []string{"/usage/abc", "/usage/0"} {
		rec, _ := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	hash, err := handlers.HashAPIKey("s3cret")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.APIKeyHash = hash
	h := newTestServer(t, gradetest.Complete(), cfg, nil)

	rec, _ := do(t, h, http.MethodGet, "/valida_en_lista?accountNumber=321176898", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/valida_en_lista?accountNumber=321176898", nil)
	req.Header.Set("X-API-Key", "wrong")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/valida_en_lista?accountNumber=321176898", nil)
	req.Header.Set("X-API-Key", "s3cret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	rec, _ = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")
}

func TestHealth(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("usage_store", func(context.Context) error { return nil })
	h := newTestServer(t, gradetest.Complete(), DefaultConfig(), checker)

	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["healthy"])

	checker.AddCheck("notion", func(context.Context) error { return errors.New("breaker open") })
	rec, body = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Some checks failed: notion", body["message"])
}

func TestCORSAndUnknownRoutes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://calificaciones.example.com"}
	h := newTestServer(t, gradetest.Complete(), cfg, nil)

	req := httptest.NewRequest(http.MethodOptions, "/consultar", nil)
	req.Header.Set("Origin", "https://calificaciones.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://calificaciones.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec2, body := do(t, h, http.MethodGet, "/leaderboard", "")
	assert.Equal(t, http.StatusNotFound, rec2.Code)
	assert.Equal(t, "Recurso no encontrado", body["error"])
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(DefaultConfig(), Dependencies{})
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(grade.ErrAccountFormat))
	assert.Equal(t, http.StatusNotFound, statusFor(grade.ErrNotInRoster))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
