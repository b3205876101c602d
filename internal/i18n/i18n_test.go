package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/text/language"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateKorean(t *testing.T) {
	ctx := initLang(t, "ko")

	got := T(ctx, "ReportTitle")
	if got != "AI 역량진단 보고서" {
		t.Errorf("T(ReportTitle) = %q, want 'AI 역량진단 보고서'", got)
	}
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "Grade")
	if got != "Grade" {
		t.Errorf("T(Grade) = %q, want 'Grade'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ScaleNote", map[string]any{"Min": 20, "Max": 100})
	if got != "Score range 20–100" {
		t.Errorf("Td(ScaleNote) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestTOrFallsBack(t *testing.T) {
	ctx := initLang(t, "en")

	if got := TOr(ctx, "Rec_unknown_area", "Rec_default"); got != T(ctx, "Rec_default") {
		t.Errorf("TOr fallback = %q", got)
	}
	if got := TOr(ctx, "Rec_data", "Rec_default"); got == T(ctx, "Rec_default") {
		t.Errorf("TOr should prefer the specific message, got %q", got)
	}
}

func TestLocalesHaveSameKeys(t *testing.T) {
	read := func(name string) map[string]any {
		data, err := localeFS.ReadFile("locales/" + name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var m map[string]any
		if err := jsonUnmarshal(data, &m); err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		return m
	}
	ko, en := read("ko.json"), read("en.json")
	for k := range ko {
		if _, ok := en[k]; !ok {
			t.Errorf("en.json missing %q", k)
		}
	}
	for k := range en {
		if _, ok := ko[k]; !ok {
			t.Errorf("ko.json missing %q", k)
		}
	}
}

func TestNegotiate(t *testing.T) {
	initLang(t, "ko")
	matcher := language.NewMatcher(Supported())

	tests := []struct {
		name     string
		explicit string
		accept   string
		want     string
	}{
		{"nothing", "", "", "ko"},
		{"explicit english", "en", "", "en"},
		{"accept english", "", "en-US,en;q=0.9", "en"},
		{"explicit wins", "ko", "en-US", "ko"},
		{"unsupported", "", "fr-FR", "ko"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Negotiate(matcher, "ko", tt.explicit, tt.accept)
			if got != tt.want {
				t.Errorf("Negotiate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "ko")

	var got string
	h := Middleware("ko")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Grade")
	}))

	req := httptest.NewRequest(http.MethodGet, "/?lang=en", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Grade" {
		t.Errorf("english request got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "등급" {
		t.Errorf("default request got %q", got)
	}
}
