package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/pkg/retry"
)

const samplePage = `{
  "object": "list",
  "results": [{
    "object": "page",
    "id": "page-1",
    "properties": {
      "Cuenta": {"id": "a", "type": "rich_text", "rich_text": [{"type": "text", "plain_text": "31234567"}]},
      "Promedio": {"id": "b", "type": "formula", "formula": {"type": "number", "number": 8.25}},
      "Tarea 1": {"id": "c", "type": "number", "number": 9},
      "Tarea 2": {"id": "d", "type": "number", "number": null},
      "Correo": {"id": "e", "type": "email", "email": "alumna@example.com"},
      "Estado": {"id": "f", "type": "checkbox", "checkbox": true}
    }
  }],
  "has_more": false,
  "next_cursor": null
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig("secret-token")
	cfg.BaseURL = srv.URL
	cfg.Timeout = 2 * time.Second
	cfg.Throttle = ThrottleConfig{RequestsPerSecond: 1000, BurstSize: 100}
	cfg.Retrier = retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(2*time.Millisecond),
	)
	cfg.Databases = map[grade.Category]string{
		grade.CategoryRoster:   "db-roster",
		grade.CategoryHomework: "db-homework",
	}
	return NewClient(cfg)
}

func TestFindOne_RequestAndMapping(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/databases/db-homework/query", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultVersion, r.Header.Get("Notion-Version"))

		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		_, _ = w.Write([]byte(samplePage))
	})

	rec, err := client.FindOne(context.Background(), grade.CategoryHomework, grade.TextEquals("Cuenta", "31234567"))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"filter": map[string]any{
			"property":  "Cuenta",
			"rich_text": map[string]any{"equals": "31234567"},
		},
		"page_size": float64(1),
	}, body)

	assert.Equal(t, "page-1", rec.ID)
	assert.Equal(t, "31234567", rec.Text("Cuenta"))
	require.NotNil(t, rec.Number("Promedio"))
	assert.InDelta(t, 8.25, *rec.Number("Promedio"), 1e-9)
	require.NotNil(t, rec.Number("Tarea 1"))
	assert.Equal(t, 9.0, *rec.Number("Tarea 1"))
	assert.Nil(t, rec.Number("Tarea 2"))

	email, ok := rec.Property("Correo")
	require.True(t, ok)
	assert.Equal(t, grade.PropertyEmail, email.Type)
	assert.Equal(t, "alumna@example.com", email.Text)

	other, ok := rec.Property("Estado")
	require.True(t, ok)
	assert.Equal(t, grade.PropertyOther, other.Type)
}

func TestFindOne_NumericFilter(t *testing.T) {
	var filter map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Filter map[string]any `json:"filter"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		filter = body.Filter
		_, _ = w.Write([]byte(samplePage))
	})

	_, err := client.FindOne(context.Background(), grade.CategoryRoster, grade.NumberEquals("Cuenta", 31234567))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"equals": float64(31234567)}, filter["number"])
	assert.NotContains(t, filter, "rich_text")
}

func TestFindOne_EmptyResultsIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"list","results":[],"has_more":false}`))
	})

	_, err := client.FindOne(context.Background(), grade.CategoryHomework, grade.TextEquals("Cuenta", "1"))
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestFindOne_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"object":"error","status":502,"code":"internal_server_error","message":"boom"}`))
			return
		}
		_, _ = w.Write([]byte(samplePage))
	})

	rec, err := client.FindOne(context.Background(), grade.CategoryHomework, grade.TextEquals("Cuenta", "1"))
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFindOne_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(samplePage))
	})

	_, err := client.FindOne(context.Background(), grade.CategoryHomework, grade.TextEquals("Cuenta", "1"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFindOne_PersistentOutageIsRetryable(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.FindOne(context.Background(), grade.CategoryHomework, grade.TextEquals("Cuenta", "1"))
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFindOne_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"bad filter"}`))
	})

	_, err := client.FindOne(context.Background(), grade.CategoryHomework, grade.TextEquals("Cuenta", "1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInternal)
	assert.False(t, shared.IsRetryable(err))
	assert.Contains(t, err.Error(), "validation_error")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFindOne_TimeoutIsRetryable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FindOne(ctx, grade.CategoryHomework, grade.TextEquals("Cuenta", "1"))
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
}

func TestFindOne_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": "nope"`))
	})

	_, err := client.FindOne(context.Background(), grade.CategoryHomework, grade.TextEquals("Cuenta", "1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestFindOne_UnconfiguredCategory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.FindOne(context.Background(), grade.CategoryWeekly, grade.TextEquals("Cuenta", "1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInternal)
}

func TestThrottle_BurstThenWait(t *testing.T) {
	now := time.Date(2025, 5, 28, 12, 0, 0, 0, time.UTC)
	th := NewThrottle(ThrottleConfig{RequestsPerSecond: 2, BurstSize: 2})

	_, ok := th.tryAcquire(now)
	assert.True(t, ok)
	_, ok = th.tryAcquire(now)
	assert.True(t, ok)

	wait, ok := th.tryAcquire(now)
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	_, ok = th.tryAcquire(now.Add(500 * time.Millisecond))
	assert.True(t, ok)
}

func TestThrottle_Pause(t *testing.T) {
	now := time.Date(2025, 5, 28, 12, 0, 0, 0, time.UTC)
	th := NewThrottle(ThrottleConfig{RequestsPerSecond: 10, BurstSize: 5})
	th.now = func() time.Time { return now }

	th.Pause(3 * time.Second)
	wait, ok := th.tryAcquire(now)
	assert.False(t, ok)
	assert.Equal(t, 3*time.Second, wait)

	th.Pause(time.Second)
	wait, _ = th.tryAcquire(now)
	assert.Equal(t, 3*time.Second, wait, "a shorter pause does not shorten the window")

	_, ok = th.tryAcquire(now.Add(3 * time.Second))
	assert.True(t, ok)
}

func TestThrottle_WaitHonoursContext(t *testing.T) {
	th := NewThrottle(ThrottleConfig{RequestsPerSecond: 1, BurstSize: 1})
	th.Pause(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, th.Wait(ctx), context.DeadlineExceeded)
}
