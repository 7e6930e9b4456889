package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/settlepay/internal/http/response"

	"github.com/gin-gonic/gin"
)

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) (int, string) {
	t.Helper()
	var resp struct {
		StatusCode int    `json:"status_code"`
		Msg        string `json:"msg"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode, resp.Msg
}

func newContext(acceptLanguage string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if acceptLanguage != "" {
		c.Request.Header.Set("Accept-Language", acceptLanguage)
	}
	return c, w
}

func TestRespondWithMappedError(t *testing.T) {
	errBusy := errors.New("busy")
	rules := []MappedError{{Target: errBusy, Code: response.CodeConflict, Key: "error.sweep_in_progress"}}

	c, w := newContext("en-US")
	RespondWithMappedError(c, fmt.Errorf("wrapped: %w", errBusy), rules, response.CodeInternal, "error.internal")
	code, msg := decodeStatus(t, w)
	if code != response.CodeConflict || msg != "sweep already in progress" {
		t.Fatalf("unexpected mapped response: %d %s", code, msg)
	}

	c, w = newContext("en-US")
	RespondWithMappedError(c, errors.New("other"), rules, response.CodeInternal, "error.internal")
	code, msg = decodeStatus(t, w)
	if code != response.CodeInternal || msg != "internal server error" {
		t.Fatalf("unexpected fallback response: %d %s", code, msg)
	}
}

func TestGetOperator(t *testing.T) {
	c, w := newContext("")
	if _, ok := GetOperator(c); ok {
		t.Fatalf("missing operator should fail")
	}
	if code, _ := decodeStatus(t, w); code != response.CodeUnauthorized {
		t.Fatalf("want 401 got %d", code)
	}

	c, _ = newContext("")
	c.Set(OperatorContextKey, "ops-alice")
	operator, ok := GetOperator(c)
	if !ok || operator != "ops-alice" {
		t.Fatalf("unexpected operator: %q %v", operator, ok)
	}
}

func TestNormalizePagination(t *testing.T) {
	page, size := NormalizePagination(0, 0)
	if page != 1 || size != 20 {
		t.Fatalf("defaults want 1/20 got %d/%d", page, size)
	}
	if _, size = NormalizePagination(1, 500); size != 100 {
		t.Fatalf("page size should cap at 100, got %d", size)
	}
}
