package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestNewHTTPHandlerRequiresSlidesService(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		t.Fatal("expected error without slides service")
	}
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	harness := newTestHarness(t)

	recorder := harness.do(t, http.MethodPost, "/slides", `{"content":"# Hello"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if !strings.Contains(recorder.Body.String(), `"metadata":{}`) {
		t.Fatalf("expected metadata to default to an empty object, got %s", recorder.Body.String())
	}
	var created slidePayload
	decodeBody(t, recorder, &created)
	if created.ID <= 0 || created.Layout != "default" || created.Order != 0 {
		t.Fatalf("unexpected created slide %#v", created)
	}
	if !created.CreatedAt.Equal(fixedTestTime) {
		t.Fatalf("expected server timestamp, got %v", created.CreatedAt)
	}

	recorder = harness.do(t, http.MethodGet, fmt.Sprintf("/slides/%d", created.ID), "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var fetched slidePayload
	decodeBody(t, recorder, &fetched)
	if !reflect.DeepEqual(created, fetched) {
		t.Fatalf("round trip mismatch:\ncreated %#v\nfetched %#v", created, fetched)
	}
}

func TestCreateMetadataRoundTrip(t *testing.T) {
	harness := newTestHarness(t)

	created := harness.createSlide(t, `{"content":"body","metadata":{"a":1,"nested":{"b":[true,"x"]}}}`)

	recorder := harness.do(t, http.MethodGet, fmt.Sprintf("/slides/%d", created.ID), "")
	var fetched slidePayload
	decodeBody(t, recorder, &fetched)
	expected := slides.Metadata{"a": float64(1), "nested": map[string]any{"b": []any{true, "x"}}}
	if !reflect.DeepEqual(fetched.Metadata, expected) {
		t.Fatalf("metadata mismatch: got %#v want %#v", fetched.Metadata, expected)
	}
}

func TestCreateRejectsInvalidBodies(t *testing.T) {
	testCases := []struct {
		name          string
		body          string
		expectedError string
		expectedText  string
	}{
		{name: "missing content", body: `{"order":1}`, expectedError: "validation_failed", expectedText: "content is required"},
		{name: "null content", body: `{"content":null}`, expectedError: "validation_failed", expectedText: "content must be a string"},
		{name: "numeric content", body: `{"content":5}`, expectedError: "validation_failed", expectedText: "content must be a string"},
		{name: "array metadata", body: `{"content":"x","metadata":[1]}`, expectedError: "validation_failed", expectedText: "metadata must be a JSON object"},
		{name: "fractional order", body: `{"content":"x","order":1.5}`, expectedError: "validation_failed", expectedText: "order must be an integer"},
		{name: "unknown layout", body: `{"content":"x","layout":"carousel"}`, expectedError: "validation_failed", expectedText: "layout must be one of"},
		{name: "malformed json", body: `{"content":`, expectedError: "invalid_request"},
		{name: "non object", body: `["content"]`, expectedError: "invalid_request"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			harness := newTestHarness(t)
			recorder := harness.do(t, http.MethodPost, "/slides", testCase.body)
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", recorder.Code, recorder.Body.String())
			}
			var body errorBody
			decodeBody(t, recorder, &body)
			if body.Error != testCase.expectedError {
				t.Fatalf("expected error %q, got %q", testCase.expectedError, body.Error)
			}
			if !strings.Contains(body.Message, testCase.expectedText) {
				t.Fatalf("expected message to contain %q, got %q", testCase.expectedText, body.Message)
			}

			recorder = harness.do(t, http.MethodGet, "/slides", "")
			if strings.TrimSpace(recorder.Body.String()) != "[]" {
				t.Fatalf("expected nothing stored, got %s", recorder.Body.String())
			}
		})
	}
}

func TestUpdateChangesOnlySuppliedFields(t *testing.T) {
	harness := newTestHarness(t)
	created := harness.createSlide(t, `{"order":2,"content":"before","layout":"code","metadata":{"language":"go"}}`)

	recorder := harness.do(t, http.MethodPut, fmt.Sprintf("/slides/%d", created.ID), `{"content":"after"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var updated slidePayload
	decodeBody(t, recorder, &updated)
	if updated.Content != "after" || updated.Order != 2 || updated.Layout != "code" {
		t.Fatalf("unexpected update result %#v", updated)
	}
	if updated.Metadata["language"] != "go" {
		t.Fatalf("expected metadata retained, got %#v", updated.Metadata)
	}
}

func TestUpdateWithEmptyBodyReturnsCurrentSlide(t *testing.T) {
	harness := newTestHarness(t)
	created := harness.createSlide(t, `{"content":"same"}`)

	recorder := harness.do(t, http.MethodPut, fmt.Sprintf("/slides/%d", created.ID), `{}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var current slidePayload
	decodeBody(t, recorder, &current)
	if current.Content != "same" {
		t.Fatalf("unexpected content %q", current.Content)
	}
}

func TestUpdateRejectsNullContent(t *testing.T) {
	harness := newTestHarness(t)
	created := harness.createSlide(t, `{"content":"keep"}`)

	recorder := harness.do(t, http.MethodPut, fmt.Sprintf("/slides/%d", created.ID), `{"content":null}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestMissingSlidesReturnNotFound(t *testing.T) {
	harness := newTestHarness(t)

	requests := []struct {
		method string
		path   string
		body   string
	}{
		{method: http.MethodGet, path: "/slides/999"},
		{method: http.MethodDelete, path: "/slides/999"},
		{method: http.MethodPut, path: "/slides/999", body: `{"content":"x"}`},
		{method: http.MethodGet, path: "/slides/abc"},
		{method: http.MethodDelete, path: "/slides/-1"},
		{method: http.MethodGet, path: "/slides/999/render"},
	}
	for _, request := range requests {
		recorder := harness.do(t, request.method, request.path, request.body)
		if recorder.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", request.method, request.path, recorder.Code)
		}
		var body errorBody
		decodeBody(t, recorder, &body)
		if body.Error == "" {
			t.Fatalf("%s %s: expected error field in body", request.method, request.path)
		}
	}
}

func TestDeleteReturnsNoContentAndHasNoFloor(t *testing.T) {
	harness := newTestHarness(t)
	created := harness.createSlide(t, `{"content":"only"}`)

	recorder := harness.do(t, http.MethodDelete, fmt.Sprintf("/slides/%d", created.ID), "")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	if recorder.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", recorder.Body.String())
	}

	recorder = harness.do(t, http.MethodGet, "/slides", "")
	if strings.TrimSpace(recorder.Body.String()) != "[]" {
		t.Fatalf("expected empty collection, got %s", recorder.Body.String())
	}
}

func TestListSortsByOrder(t *testing.T) {
	harness := newTestHarness(t)
	for _, order := range []int{3, 1, 2, 1} {
		harness.createSlide(t, fmt.Sprintf(`{"order":%d,"content":"slide %d"}`, order, order))
	}

	recorder := harness.do(t, http.MethodGet, "/slides", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var listed []slidePayload
	decodeBody(t, recorder, &listed)
	if len(listed) != 4 {
		t.Fatalf("expected 4 slides, got %d", len(listed))
	}
	for index := 1; index < len(listed); index++ {
		if listed[index-1].Order > listed[index].Order {
			t.Fatalf("slides out of order: %#v", listed)
		}
	}
}

func TestStorageFaultHidesDetailsOutsideDevelopment(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, expose := range []bool{false, true} {
		handler, err := NewHTTPHandler(Dependencies{
			SlidesService:      &slides.Service{},
			Logger:             zap.NewNop(),
			ExposeErrorDetails: expose,
		})
		if err != nil {
			t.Fatalf("failed to construct handler: %v", err)
		}
		harness := testHarness{handler: handler}

		recorder := harness.do(t, http.MethodGet, "/slides", "")
		if recorder.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", recorder.Code)
		}
		var body errorBody
		decodeBody(t, recorder, &body)
		if body.Error != "internal_error" || body.Code != "slides.list.missing_database" {
			t.Fatalf("unexpected error body %#v", body)
		}
		if expose && !strings.Contains(body.Message, "database handle is required") {
			t.Fatalf("expected detailed message in development, got %q", body.Message)
		}
		if !expose && body.Message != genericErrorMessage {
			t.Fatalf("expected generic message, got %q", body.Message)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	harness := newTestHarness(t)

	recorder := harness.do(t, http.MethodGet, "/health", "")
	generated := recorder.Header().Get(requestIDHeader)
	if len(generated) != 36 {
		t.Fatalf("expected generated uuid request id, got %q", generated)
	}

	request := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	request.Header.Set(requestIDHeader, "caller-id")
	response := httptest.NewRecorder()
	harness.handler.ServeHTTP(response, request)
	if response.Header().Get(requestIDHeader) != "caller-id" {
		t.Fatalf("expected caller request id to be echoed, got %q", response.Header().Get(requestIDHeader))
	}
}

func TestHealthAndRoot(t *testing.T) {
	harness := newTestHarness(t)
	harness.createSlide(t, `{"content":"one"}`)

	recorder := harness.do(t, http.MethodGet, "/health", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var health healthPayload
	decodeBody(t, recorder, &health)
	if health.Status != "healthy" || health.Slides == nil || *health.Slides != 1 {
		t.Fatalf("unexpected health body %s", recorder.Body.String())
	}
	if !health.Timestamp.Equal(fixedTestTime) || health.Goroutines == 0 {
		t.Fatalf("unexpected health body %s", recorder.Body.String())
	}

	recorder = harness.do(t, http.MethodGet, "/", "")
	if recorder.Code != http.StatusOK || !strings.Contains(recorder.Body.String(), `"slides":"/slides"`) {
		t.Fatalf("unexpected root response %d %s", recorder.Code, recorder.Body.String())
	}
}

func TestUnknownRouteReturnsJSONNotFound(t *testing.T) {
	harness := newTestHarness(t)

	recorder := harness.do(t, http.MethodGet, "/nope", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	var body errorBody
	decodeBody(t, recorder, &body)
	if body.Error != "not_found" {
		t.Fatalf("unexpected body %#v", body)
	}
}
