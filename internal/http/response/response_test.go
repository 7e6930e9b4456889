package response

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestBuildPagination(t *testing.T) {
	cases := []struct {
		page, size int
		total      int64
		wantPages  int64
	}{
		{1, 20, 0, 0},
		{1, 20, 20, 1},
		{2, 20, 21, 2},
		{1, 0, 5, 0},
	}
	for _, tc := range cases {
		got := BuildPagination(tc.page, tc.size, tc.total)
		if got.TotalPage != tc.wantPages || got.Total != tc.total || got.Page != tc.page {
			t.Fatalf("unexpected pagination for %+v: %+v", tc, got)
		}
	}
}

func TestErrorAttachesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")

	Error(c, CodeConflict, "busy")

	var resp struct {
		StatusCode int               `json:"status_code"`
		Msg        string            `json:"msg"`
		Data       map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.StatusCode != CodeConflict || resp.Msg != "busy" || resp.Data["request_id"] != "req-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
