// Package format implements placeholder substitution for definition
// bodies. Template strings carry tokens of the form {key} or
// {key|default}; doubled braces are literal escapes. A string that
// consists of exactly one token resolves to the bound value itself, which
// is how lists and mappings survive substitution.
package format

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/loom/internal/defs"
)

type segmentKind int

const (
	segLiteral segmentKind = iota
	segToken
)

type segment struct {
	kind       segmentKind
	text       string // literal text, or raw token source
	key        string
	def        string
	hasDefault bool
}

// Format substitutes every token in s using params. When the whole string
// is a single token with no default, the bound value is returned as-is
// (any type); otherwise the result is a string. A missing key without a
// default is an error unless allowEmpty substitutes the empty string.
func Format(s string, params *defs.Map, allowEmpty bool) (any, error) {
	segments, err := parse(s)
	if err != nil {
		return nil, err
	}

	// whole-string single token: hand back the bound value untouched
	if len(segments) == 1 && segments[0].kind == segToken && !segments[0].hasDefault {
		seg := segments[0]
		if v, ok := params.Get(seg.key); ok {
			return v, nil
		}
		if allowEmpty {
			return "", nil
		}
		return nil, missingKey(seg.key, s, params)
	}

	var b strings.Builder
	for _, seg := range segments {
		switch seg.kind {
		case segLiteral:
			b.WriteString(seg.text)
		case segToken:
			v, ok := params.Get(seg.key)
			switch {
			case ok:
				b.WriteString(stringify(v))
			case seg.hasDefault:
				// the default text is inserted verbatim, never re-scanned
				b.WriteString(seg.def)
			case allowEmpty:
				// leave the empty string in place of the token
			default:
				return nil, missingKey(seg.key, s, params)
			}
		}
	}
	return b.String(), nil
}

// Deep applies Format to every string scalar and every mapping key in an
// arbitrarily nested structure, preserving container types and mapping
// insertion order. Any failure aborts the whole walk.
func Deep(obj any, params *defs.Map, allowEmpty bool) (any, error) {
	switch t := obj.(type) {
	case string:
		return Format(t, params, allowEmpty)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			v, err := Deep(item, params, allowEmpty)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *defs.Map:
		out := defs.NewMap()
		for _, k := range t.Keys() {
			fk, err := Format(k, params, allowEmpty)
			if err != nil {
				return nil, err
			}
			raw, _ := t.Get(k)
			v, err := Deep(raw, params, allowEmpty)
			if err != nil {
				return nil, err
			}
			out.Set(stringify(fk), v)
		}
		return out, nil
	default:
		// non-string scalars pass through unchanged
		return obj, nil
	}
}

// EscapeBraces doubles every brace so later formatting passes leave the
// text untouched.
func EscapeBraces(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}

func stringify(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func missingKey(key, s string, params *defs.Map) *defs.Error {
	return &defs.Error{
		Key: key,
		Msg: fmt.Sprintf("%s parameter missing to format %s\nGiven:\n%s",
			key, s, dumpParams(params)),
	}
}

func dumpParams(params *defs.Map) string {
	if params.Len() == 0 {
		return "{}"
	}
	out, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	return string(out)
}

func isWordChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}

// parse splits a template string into literal and token segments.
// Doubled braces collapse into literal braces; an unpaired brace that does
// not open a well-formed token is an error.
func parse(s string) ([]segment, error) {
	var segments []segment
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{kind: segLiteral, text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(s); {
		switch s[i] {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				literal.WriteByte('{')
				i += 2
				continue
			}
			seg, next, err := parseToken(s, i)
			if err != nil {
				return nil, err
			}
			flush()
			segments = append(segments, seg)
			i = next
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				literal.WriteByte('}')
				i += 2
				continue
			}
			return nil, defs.Errorf("single '}' encountered in format string %q", s)
		default:
			literal.WriteByte(s[i])
			i++
		}
	}
	flush()
	return segments, nil
}

// parseToken reads one {key} or {key|default} token starting at the '{'
// at position i, returning the token and the index just past it.
func parseToken(s string, i int) (segment, int, error) {
	j := i + 1
	// accepted and ignored, a leftover spelling for object substitution
	if strings.HasPrefix(s[j:], "obj:") {
		j += len("obj:")
	}

	start := j
	for j < len(s) && isWordChar(s[j]) {
		j++
	}
	if j == start {
		return segment{}, 0, defs.Errorf("single '{' encountered in format string %q", s)
	}
	seg := segment{kind: segToken, key: s[start:j]}

	if j < len(s) && s[j] == '|' {
		j++
		defStart := j
		for j < len(s) && s[j] != '}' {
			j++
		}
		seg.hasDefault = true
		seg.def = s[defStart:j]
	}

	if j >= len(s) || s[j] != '}' {
		return segment{}, 0, defs.Errorf("single '{' encountered in format string %q", s)
	}
	seg.text = s[i : j+1]
	return seg, j + 1, nil
}
