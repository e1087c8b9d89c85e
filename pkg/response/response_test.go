package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestPaginated_ComputesTotalPagesCorrectly(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	c := e.NewContext(req, rec)

	// totalCount=45, pageSize=20 -> totalPages = 3
	data := []int{1, 2, 3}
	page := 2
	pageSize := 20
	var totalCount int64 = 45

	if err := Paginated(c, data, page, pageSize, totalCount); err != nil {
		t.Fatalf("Paginated returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body PaginatedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if !body.Success {
		t.Errorf("expected Success=true, got false")
	}
	if body.Page != page {
		t.Errorf("expected Page=%d, got %d", page, body.Page)
	}
	if body.PageSize != pageSize {
		t.Errorf("expected PageSize=%d, got %d", pageSize, body.PageSize)
	}
	if body.TotalCount != totalCount {
		t.Errorf("expected TotalCount=%d, got %d", totalCount, body.TotalCount)
	}
	if body.TotalPages != 3 {
		t.Errorf("expected TotalPages=3, got %d", body.TotalPages)
	}
}

func TestAccepted_SetsStatusAndEnvelope(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	c := e.NewContext(req, rec)

	if err := Accepted(c, "queued", map[string]any{"batchId": "b-1"}); err != nil {
		t.Fatalf("Accepted returned error: %v", err)
	}

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}

	var body SuccessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if !body.Success {
		t.Errorf("expected Success=true, got false")
	}
	if body.Message != "queued" {
		t.Errorf("expected message %q, got %q", "queued", body.Message)
	}
}

func TestConflict_SetsStatus(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/test", nil)
	c := e.NewContext(req, rec)

	if err := Conflict(c, echo.ErrMethodNotAllowed); err != nil {
		t.Fatalf("Conflict returned error: %v", err)
	}

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}
