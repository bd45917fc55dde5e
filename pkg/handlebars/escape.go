package handlebars

import "strings"

// Escaper transforms interpolated output of escaped tags.
type Escaper interface {
	Escape(s string) string
}

// EscaperFunc adapts a function to Escaper.
type EscaperFunc func(string) string

func (f EscaperFunc) Escape(s string) string { return f(s) }

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"`", "&#x60;",
	"=", "&#x3D;",
)

// EscapeHTML escapes the characters that are significant in HTML text and
// attribute values.
var EscapeHTML Escaper = EscaperFunc(htmlReplacer.Replace)

// EscapeNone writes values unchanged.
var EscapeNone Escaper = EscaperFunc(func(s string) string { return s })

// EscaperByName maps the configuration names of the escaping strategies.
func EscaperByName(name string) (Escaper, bool) {
	switch strings.ToLower(name) {
	case "", "html":
		return EscapeHTML, true
	case "none", "raw":
		return EscapeNone, true
	}
	return nil, false
}
