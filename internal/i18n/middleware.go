package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Middleware picks the best supported language from the lang query
// parameter or Accept-Language header, falling back to fallback.
func Middleware(fallback string) func(http.Handler) http.Handler {
	matcher := language.NewMatcher(Supported())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := Negotiate(matcher, fallback, r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
			ctx := WithLocalizer(r.Context(), NewLocalizer(lang, fallback))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Negotiate returns the base language tag that best matches the explicit
// choice or the Accept-Language header.
func Negotiate(matcher language.Matcher, fallback string, explicit, acceptLanguage string) string {
	var prefs []language.Tag
	if explicit != "" {
		if tag, err := language.Parse(explicit); err == nil {
			prefs = append(prefs, tag)
		}
	}
	if accepted, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil {
		prefs = append(prefs, accepted...)
	}
	if len(prefs) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(prefs...)
	if conf == language.No {
		return fallback
	}
	supported := Supported()
	if idx < 0 || idx >= len(supported) {
		return fallback
	}
	base, _ := supported[idx].Base()
	return base.String()
}
