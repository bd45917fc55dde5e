package handlebars

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Position locates a construct in a template source. Line and Column are 1-based.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	name := p.Filename
	if name == "" {
		name = "inline"
	}
	return fmt.Sprintf("%s:%d:%d", name, p.Line, p.Column)
}

// SyntaxError is raised by the tokenizer and the parser. Parsing stops at the
// first one.
type SyntaxError struct {
	Position
	// Found is the offending token text.
	Found string
	// Expected names the construct the parser wanted instead.
	Expected string
	// Evidence is a short excerpt of the source with a caret under Column.
	Evidence string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: found: '%s', expected: '%s'\n%s", e.Position, e.Found, e.Expected, e.Evidence)
}

// CompileError reports a structurally valid template the compiler refuses:
// unknown helpers or decorators, malformed paths, bad partial names.
type CompileError struct {
	Position
	Reason     string
	Suggestion string
	Evidence   string
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Position, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean '%s'?)", e.Suggestion)
	}
	return msg + "\n" + e.Evidence
}

// MissingPartialError is raised when a partial can't be found in the inline
// partials table nor through the loader, and the tag has no fallback body.
type MissingPartialError struct {
	Position
	Name       string
	Suggestion string
	Evidence   string
}

func (e *MissingPartialError) Error() string {
	msg := fmt.Sprintf("%s: The partial '%s' could not be found", e.Position, e.Name)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean '%s'?)", e.Suggestion)
	}
	return msg + "\n" + e.Evidence
}

// RecursionError is raised when a partial is entered while already on the
// partial invocation stack.
type RecursionError struct {
	Position
	Name string
	// Stack lists the invocation stack, innermost first.
	Stack    []string
	Evidence string
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("%s: an infinite loop was detected, partial '%s' was previously loaded\n%s\n%s",
		e.Position, e.Name, strings.Join(e.Stack, "\n"), e.Evidence)
}

// RenderError wraps a failure raised by a helper, resolver, formatter or
// writer with the position of the node that triggered it.
type RenderError struct {
	Position
	Evidence string
	Cause    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: %v\n%s", e.Position, e.Cause, e.Evidence)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// isTemplateError reports whether err already is one of the structured
// error types of this package.
func isTemplateError(err error) bool {
	var (
		syn *SyntaxError
		cmp *CompileError
		mis *MissingPartialError
		rec *RecursionError
		ren *RenderError
	)
	return errors.As(err, &syn) || errors.As(err, &cmp) || errors.As(err, &mis) ||
		errors.As(err, &rec) || errors.As(err, &ren)
}

// wrapRenderError attaches pos to err unless err is already structured.
func wrapRenderError(err error, pos Position, src string) error {
	if err == nil || isTemplateError(err) {
		return err
	}
	return &RenderError{Position: pos, Evidence: evidence(src, pos.Line, pos.Column), Cause: err}
}

// evidence renders the previous line, the offending line, a caret under col
// and the next line.
func evidence(src string, line, col int) string {
	if src == "" || line < 1 {
		return ""
	}
	lines := strings.Split(src, "\n")
	if line > len(lines) {
		line = len(lines)
	}
	var b strings.Builder
	if line >= 2 {
		b.WriteString(lines[line-2])
		b.WriteByte('\n')
	}
	b.WriteString(lines[line-1])
	b.WriteByte('\n')
	if col > 1 {
		b.WriteString(strings.Repeat(" ", col-1))
	}
	b.WriteByte('^')
	if line < len(lines) {
		b.WriteByte('\n')
		b.WriteString(lines[line])
	}
	return b.String()
}

// suggest returns the closest candidate to name, or "" when nothing is close.
func suggest(name string, candidates []string) string {
	if name == "" || len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
