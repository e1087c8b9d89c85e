package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/smsbramka/sms-gateway/pkg/response"
	validatorpkg "github.com/smsbramka/sms-gateway/pkg/validator"
)

// TestCreateMessage_BadJSON verifies that invalid JSON returns 400 Bad Request.
func TestCreateMessage_BadJSON(t *testing.T) {
	e := echo.New()
	// Validator is not needed here because Bind will fail before Validate is called.
	handler := NewMessageHandler(nil)

	// Malformed JSON (missing closing quote / brace)
	reqBody := `{"content": "Hello", "phoneNumber":`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(reqBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.CreateMessage(c)
	if err != nil {
		t.Fatalf("CreateMessage returned error: %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	var resp response.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response body: %v", err)
	}

	if resp.Success {
		t.Fatalf("expected Success=false, got true")
	}
	if resp.Error == "" {
		t.Fatalf("expected Error to be non-empty")
	}
}

// TestCreateMessage_TooLongContent verifies that validation failure (content > max)
// returns 422 Unprocessable Entity via the validation error handler.
func TestCreateMessage_TooLongContent(t *testing.T) {
	e := echo.New()
	// Use the real custom validator so we exercise the normal flow.
	e.Validator = validatorpkg.New()

	// service is nil on purpose; we want validation to fail before service is called.
	handler := NewMessageHandler(nil)

	// Content longer than the 1000-char max in the struct tag.
	longContent := strings.Repeat("a", 1001)
	reqBody := `{"content": "` + longContent + `", "phoneNumber": "+905551234567"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(reqBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.CreateMessage(c)
	if err != nil {
		t.Fatalf("CreateMessage returned error: %v", err)
	}

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, rec.Code)
	}

	var resp validatorpkg.ValidationErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response body: %v", err)
	}

	if resp.Success {
		t.Fatalf("expected Success=false, got true")
	}
	if resp.Error != "Validation failed" {
		t.Fatalf("expected Error=%q, got %q", "Validation failed", resp.Error)
	}
	if len(resp.Details) == 0 {
		t.Fatalf("expected Details to contain at least one field error")
	}
	if _, ok := resp.Details["content"]; !ok {
		t.Fatalf("expected Details to contain 'content' key")
	}
}

// TestGetMessage_BadID verifies that a non-numeric path id returns 400.
func TestGetMessage_BadID(t *testing.T) {
	e := echo.New()
	handler := NewMessageHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("abc")

	if err := handler.GetMessage(c); err != nil {
		t.Fatalf("GetMessage returned error: %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

// TestCreateBatch_EmptyRecipients verifies that an empty recipients list fails
// struct validation with 422.
func TestCreateBatch_EmptyRecipients(t *testing.T) {
	e := echo.New()
	e.Validator = validatorpkg.New()

	handler := NewBatchHandler(nil)

	reqBody := `{"recipients": [], "content": "hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", strings.NewReader(reqBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.CreateBatch(c); err != nil {
		t.Fatalf("CreateBatch returned error: %v", err)
	}

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, rec.Code)
	}

	var resp validatorpkg.ValidationErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response body: %v", err)
	}
	if _, ok := resp.Details["recipients"]; !ok {
		t.Fatalf("expected Details to contain 'recipients' key")
	}
}

// TestCreateBatch_InvalidChunkSize verifies that a zero per-batch chunk size
// override fails struct validation with 422.
func TestCreateBatch_InvalidChunkSize(t *testing.T) {
	e := echo.New()
	e.Validator = validatorpkg.New()

	handler := NewBatchHandler(nil)

	reqBody := `{"recipients": ["+905551234567"], "content": "hello", "chunkSize": 0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", strings.NewReader(reqBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.CreateBatch(c); err != nil {
		t.Fatalf("CreateBatch returned error: %v", err)
	}

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, rec.Code)
	}
}
