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

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fusiond/internal/perception"
	"github.com/fyrsmithlabs/fusiond/internal/state"
)

// fakeService is a ContextService double that records the last update
// and serves a canned snapshot.
type fakeService struct {
	detail     []string
	err        error
	lastDevice string
	lastData   any
	snapshot   state.WorldState
	panics     bool
}

func (f *fakeService) Update(_ context.Context, device string, data any) ([]string, error) {
	if f.panics {
		panic("boom")
	}
	f.lastDevice = device
	f.lastData = data
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

func (f *fakeService) Snapshot() state.WorldState {
	return f.snapshot
}

func newTestServer(t *testing.T, svc ContextService) *Server {
	t.Helper()
	srv, err := NewServer(svc, zap.NewNop(), nil)
	require.NoError(t, err)
	return srv
}

func TestNewServer(t *testing.T) {
	t.Run("requires service", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		require.Error(t, err)
	})

	t.Run("requires logger", func(t *testing.T) {
		_, err := NewServer(&fakeService{}, nil, nil)
		require.Error(t, err)
	})

	t.Run("defaults config when nil", func(t *testing.T) {
		srv, err := NewServer(&fakeService{}, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", srv.config.Host)
		assert.Equal(t, 8000, srv.config.Port)
	})
}

func TestHandleUpdateContext(t *testing.T) {
	t.Run("returns fused context on success", func(t *testing.T) {
		svc := &fakeService{detail: []string{"Active App: Editor — main.go", "Other Apps: Terminal"}}
		srv := newTestServer(t, svc)

		body := `{"device": "screen", "data": {"active_app": {"name": "Editor"}}}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/context", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()

		srv.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp UpdateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "Active App: Editor — main.go\nOther Apps: Terminal", resp.FusedContext)

		assert.Equal(t, "screen", svc.lastDevice)
		data, ok := svc.lastData.(map[string]any)
		require.True(t, ok)
		assert.Contains(t, data, "active_app")
	})

	t.Run("rejects missing device", func(t *testing.T) {
		svc := &fakeService{err: perception.ErrMissingDevice}
		srv := newTestServer(t, svc)

		body := `{"data": {"text": "hello"}}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/context", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()

		srv.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "device field is required")
	})

	t.Run("rejects non-object data", func(t *testing.T) {
		svc := &fakeService{err: perception.ErrInvalidPayload}
		srv := newTestServer(t, svc)

		body := `{"device": "voice", "data": "just a string"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/context", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()

		srv.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "JSON object")
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		srv := newTestServer(t, &fakeService{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/context", strings.NewReader(`{not json`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()

		srv.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps unexpected errors to 500", func(t *testing.T) {
		svc := &fakeService{err: errors.New("store exploded")}
		srv := newTestServer(t, svc)

		body := `{"device": "camera", "data": {}}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/context", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()

		srv.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "store exploded")
	})
}

func TestHandleGetContext(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{
		snapshot: state.WorldState{
			Devices: map[string]state.Observation{
				"voice": {Kind: "voice", Payload: state.Payload{"text": "hello"}, ReceivedAt: now},
			},
			FusedDetail:     []string{`Voice Context: "hello"`},
			FusedSummary:    `heard: "hello"`,
			Recommendations: []string{"1. Take a break."},
			EventsProcessed: 7,
			LastUpdated:     now,
		},
	}
	srv := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/context", nil)
	rec := httptest.NewRecorder()

	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got state.WorldState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, svc.snapshot.FusedSummary, got.FusedSummary)
	assert.Equal(t, svc.snapshot.FusedDetail, got.FusedDetail)
	assert.Equal(t, svc.snapshot.Recommendations, got.Recommendations)
	assert.Equal(t, uint64(7), got.EventsProcessed)
	require.Contains(t, got.Devices, "voice")
	assert.Equal(t, "hello", got.Devices["voice"].Payload["text"])
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleDashboard(t *testing.T) {
	t.Run("renders world state", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		svc := &fakeService{
			snapshot: state.WorldState{
				Devices: map[string]state.Observation{
					"screen": {Kind: "screen", ReceivedAt: now},
					"camera": {Kind: "camera", ReceivedAt: now},
				},
				FusedDetail:     []string{"Active App: Editor — main.go"},
				FusedSummary:    "Focused on Editor",
				Recommendations: []string{"1. Stay on task."},
				EventsProcessed: 3,
				LastUpdated:     now,
			},
		}
		srv := newTestServer(t, svc)

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		rec := httptest.NewRecorder()

		srv.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")

		html := rec.Body.String()
		assert.Contains(t, html, "Focused on Editor")
		assert.Contains(t, html, "Active App: Editor")
		assert.Contains(t, html, "1. Stay on task.")
		assert.Contains(t, html, "screen")
		assert.Contains(t, html, "camera")
	})

	t.Run("escapes payload-derived text", func(t *testing.T) {
		svc := &fakeService{
			snapshot: state.WorldState{
				FusedSummary: `heard: "<script>alert(1)</script>"`,
			},
		}
		srv := newTestServer(t, svc)

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		rec := httptest.NewRecorder()

		srv.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
	})

	t.Run("handles empty state", func(t *testing.T) {
		srv := newTestServer(t, &fakeService{})

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		rec := httptest.NewRecorder()

		srv.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "no producers reporting")
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("recovers from handler panic", func(t *testing.T) {
		srv := newTestServer(t, &fakeService{panics: true})

		body := `{"device": "screen", "data": {}}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/context", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()

		srv.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("assigns request id", func(t *testing.T) {
		srv := newTestServer(t, &fakeService{})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		srv.echo.ServeHTTP(rec, req)

		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})
}

func TestServerLifecycle(t *testing.T) {
	srv, err := NewServer(&fakeService{}, zap.NewNop(), &Config{Host: "127.0.0.1", Port: 0})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- srv.Start()
	}()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}
