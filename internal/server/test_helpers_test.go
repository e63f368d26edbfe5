package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/database"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var fixedTestTime = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

type testHarness struct {
	handler http.Handler
	service *slides.Service
	events  *EventDispatcher
}

func newTestHarness(t *testing.T, configure ...func(*Dependencies)) testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "slides.db"), zap.NewNop(), false)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	clock := func() time.Time { return fixedTestTime }
	service, err := slides.NewService(slides.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to construct slides service: %v", err)
	}

	events := NewEventDispatcher()
	deps := Dependencies{
		SlidesService: service,
		Events:        events,
		Logger:        zap.NewNop(),
		Environment:   "production",
		Clock:         clock,
	}
	for _, apply := range configure {
		apply(&deps)
	}

	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	return testHarness{handler: handler, service: service, events: events}
}

func (h testHarness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, http.NoBody)
	} else {
		request = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, request)
	return recorder
}

func (h testHarness) createSlide(t *testing.T, body string) slidePayload {
	t.Helper()
	recorder := h.do(t, http.MethodPost, "/slides", body)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating slide, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var created slidePayload
	decodeBody(t, recorder, &created)
	return created
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
