package i18n

import "testing"

func TestGetCatalogFallback(t *testing.T) {
	base := GetCatalog("en-US")
	if base == nil {
		t.Fatal("expected base catalog")
	}
	fallback := GetCatalog("missing-locale")
	if fallback != base {
		t.Fatal("expected fallback to en-US catalog")
	}
	if GetCatalog("") != base {
		t.Fatal("expected empty locale to resolve to en-US")
	}
}

func TestGetCatalogLanguageMatch(t *testing.T) {
	for input, want := range map[string]string{
		"pt-PT":                      "pt-BR",
		"pt":                         "pt-BR",
		"en-GB":                      "en-US",
		"ja-JP":                      "en-US",
		"fr-CA,pt-BR;q=0.8,en;q=0.5": "pt-BR",
	} {
		if got := GetCatalog(input).Locale(); got != want {
			t.Errorf("GetCatalog(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestBuiltInCatalogCoversCodes(t *testing.T) {
	codes := []Code{
		CodeUnknown, CodeInvalidArgument, CodeForbidden, CodeInvalidState, CodeConflict,
		CodeDuplicateConnection, CodeRateLimited, CodeInvalidCode, CodeCodeExpired,
		CodeEmptyContent, CodeAlreadyRequested, CodeNotFound,
	}
	for _, locale := range []string{"en-US", "pt-BR"} {
		cat := GetCatalog(locale)
		for _, code := range codes {
			if cat.Format(code, nil) == code {
				t.Errorf("%s: missing message for %s", locale, code)
			}
		}
	}
}

func TestFormatFallbacks(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "hello {{.Name}}",
	})

	if cat.Format("unknown", nil) != "unknown" {
		t.Fatal("expected code fallback when template missing")
	}
	if cat.Format("code", nil) != "hello <no value>" {
		t.Fatal("expected template to render missing metadata")
	}
}

func TestFormatTemplateErrorFallback(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "{{ if .Name }}",
	})
	if cat.Format("code", map[string]string{"Name": "X"}) != "{{ if .Name }}" {
		t.Fatal("expected template fallback on parse error")
	}
}
