package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestResolveLocale(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query  string
		header string
		want   string
	}{
		{header: "", want: LocaleZhCN},
		{header: "en-US,en;q=0.9", want: LocaleEnUS},
		{header: "en-GB", want: LocaleEnUS},
		{header: "zh-TW,zh;q=0.8", want: LocaleZhCN},
		{header: "fr-FR", want: LocaleZhCN},
		{query: "en", header: "zh-CN", want: LocaleEnUS},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		target := "/x"
		if tc.query != "" {
			target += "?lang=" + tc.query
		}
		c.Request = httptest.NewRequest(http.MethodGet, target, nil)
		if tc.header != "" {
			c.Request.Header.Set("Accept-Language", tc.header)
		}
		if got := ResolveLocale(c); got != tc.want {
			t.Fatalf("query=%q header=%q want %s got %s", tc.query, tc.header, tc.want, got)
		}
	}
}

func TestTranslateFallbacks(t *testing.T) {
	if got := T(LocaleEnUS, "error.sweep_in_progress"); got != "sweep already in progress" {
		t.Fatalf("unexpected en message: %s", got)
	}
	if got := T("ja-JP", "error.sweep_in_progress"); got != "归集正在进行中" {
		t.Fatalf("unknown locale should fall back to default, got %s", got)
	}
	if got := T(LocaleEnUS, "error.unknown_key"); got != "error.unknown_key" {
		t.Fatalf("missing key should echo key, got %s", got)
	}
	if got := Sprintf(LocaleEnUS, "error.rate_limited", 5); got != "too many requests, retry in 5 seconds" {
		t.Fatalf("unexpected formatted message: %s", got)
	}
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	for key := range catalogs[LocaleZhCN] {
		if _, ok := catalogs[LocaleEnUS][key]; !ok {
			t.Fatalf("en-US catalog missing %s", key)
		}
	}
	for key := range catalogs[LocaleEnUS] {
		if _, ok := catalogs[LocaleZhCN][key]; !ok {
			t.Fatalf("zh-CN catalog missing %s", key)
		}
	}
}
