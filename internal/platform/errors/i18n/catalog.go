// Package i18n holds the user-facing copy for error codes.
package i18n

import (
	"bytes"
	"strings"
	"text/template"

	"golang.org/x/text/language"
)

// BaseLocale is used when the caller's locale matches nothing.
const BaseLocale = "en-US"

// Code mirrors errors.Code; the errors package imports this one.
type Code = string

// Catalog is the message set for one locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	// Index order matches supported; the first entry is the fallback.
	builtIn = []*Catalog{
		NewCatalog(BaseLocale, enUSMessages),
		NewCatalog("pt-BR", ptBRMessages),
	}
	matcher = language.NewMatcher([]language.Tag{
		language.AmericanEnglish,
		language.BrazilianPortuguese,
	})
)

// GetCatalog picks the closest catalog for a BCP 47 locale or an
// Accept-Language value. Unparseable or unmatched input gets en-US.
func GetCatalog(locale string) *Catalog {
	tags, _, err := language.ParseAcceptLanguage(strings.TrimSpace(locale))
	if err != nil || len(tags) == 0 {
		return builtIn[0]
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No || index < 0 || index >= len(builtIn) {
		return builtIn[0]
	}
	return builtIn[index]
}

// NewCatalog copies messages into a catalog for locale.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	owned := make(map[Code]string, len(messages))
	for code, text := range messages {
		owned[code] = text
	}
	return &Catalog{locale: locale, messages: owned}
}

// Locale is the BCP 47 tag of the catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the template for code with metadata as its data. Unknown
// codes render as the code itself, and a broken template renders verbatim.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	text, ok := c.messages[code]
	if !ok {
		return code
	}
	if !strings.Contains(text, "{{") {
		return text
	}
	tmpl, err := template.New(code).Parse(text)
	if err != nil {
		return text
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, metadata); err != nil {
		return text
	}
	return out.String()
}
