package handlebars

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Path is a compiled reference such as `../a.b.[0]` or `@index`. Paths are
// immutable and shared by every render of a template.
type Path struct {
	// Text is the source form.
	Text string
	// Up counts leading ../ segments.
	Up int
	// This marks paths anchored to the current context: this, ., ./x, this.x.
	This bool
	// Data marks @-prefixed paths, read from the data channel.
	Data     bool
	Segments []Segment
}

// Segment is one named or bracketed step of a path.
type Segment struct {
	Name string
	// Bracketed segments were written as [literal].
	Bracketed bool
	// Index is set for bracketed integer keys.
	Index   int
	Indexed bool
}

// Simple reports whether the path is a single bare name, the only form that
// can refer to a helper.
func (p *Path) Simple() bool {
	return p.Up == 0 && !p.This && !p.Data && len(p.Segments) == 1
}

// Head returns the first segment name, or "" for this-paths.
func (p *Path) Head() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[0].Name
}

func (p *Path) String() string { return p.Text }

var segmentPattern = regexp.MustCompile(`(\[[^\[\]]+\])|([^./]+)`)

// CompilePath parses a textual reference.
func CompilePath(text string) (*Path, error) {
	p := &Path{Text: text}
	rest := text
	if strings.HasPrefix(rest, "@") {
		p.Data = true
		rest = rest[1:]
	}
	for {
		switch {
		case strings.HasPrefix(rest, "../"):
			p.Up++
			rest = rest[3:]
			continue
		case rest == "..":
			p.Up++
			rest = ""
		}
		break
	}
	switch {
	case rest == "" && p.Up > 0:
		return p, nil
	case rest == "" && !p.Data:
		return nil, fmt.Errorf("empty path")
	case rest == "this" || rest == "." || rest == "./":
		p.This = true
		return p, nil
	case strings.HasPrefix(rest, "./"):
		p.This = true
		rest = rest[2:]
	case strings.HasPrefix(rest, "this.") || strings.HasPrefix(rest, "this/"):
		p.This = true
		rest = rest[5:]
	}
	matches := segmentPattern.FindAllStringIndex(rest, -1)
	covered := 0
	for _, m := range matches {
		gap := rest[covered:m[0]]
		if strings.Trim(gap, "./") != "" {
			return nil, fmt.Errorf("invalid path segment %q", gap)
		}
		if strings.Contains(gap, "..") {
			return nil, fmt.Errorf("invalid path %q: '..' is only allowed as a prefix", text)
		}
		covered = m[1]
		raw := rest[m[0]:m[1]]
		seg := Segment{Name: raw}
		if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
			seg.Name = raw[1 : len(raw)-1]
			seg.Bracketed = true
			if n, err := strconv.Atoi(seg.Name); err == nil && n >= 0 {
				seg.Index, seg.Indexed = n, true
			}
		} else if len(p.Segments) > 0 && isDigits(raw) {
			return nil, fmt.Errorf("invalid path %q: numeric segment %q must be written as [%s]", text, raw, raw)
		}
		p.Segments = append(p.Segments, seg)
	}
	if tail := rest[covered:]; strings.Trim(tail, "./") != "" || strings.Contains(tail, "..") {
		return nil, fmt.Errorf("invalid path %q", text)
	}
	if len(p.Segments) == 0 && !p.This && p.Up == 0 {
		return nil, fmt.Errorf("invalid path %q", text)
	}
	return p, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// qualify rewrites a path whose head is name so that it starts at this:
// `user.name` becomes `this.name`.
func (p *Path) qualify(name string) *Path {
	if p.Up > 0 || p.This || p.Data || p.Head() != name || p.Segments[0].Bracketed {
		return p
	}
	q := &Path{Text: p.Text, This: true, Segments: p.Segments[1:]}
	return q
}
