// Package tmpl implements the two-stage template engine from spec.md §4.7:
// pass one expands "@key@" against host-wide globals, pass two expands
// "?key?" against per-user prompt responses. Each pass is an independent
// state machine with a single delimiter.
package tmpl

import (
	"strconv"
	"strings"

	"github.com/trunkctl/trunk/internal/model"
	"github.com/trunkctl/trunk/internal/trunkerr"
)

// expand runs one delimiter-scoped pass over s. lookup resolves a non-empty
// key to its replacement text, or reports ok=false if no such key exists.
// An empty key (the doubled delimiter) always resolves to a single literal
// delimiter rune. An unterminated trailing delimiter is passed through
// verbatim, key and all.
func expand(s string, delim byte, lookup func(key string) (string, bool)) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c != delim {
			out.WriteByte(c)
			i++
			continue
		}
		// c == delim: scan for the closing delimiter.
		j := strings.IndexByte(s[i+1:], delim)
		if j < 0 {
			// Unterminated: pass the rest through verbatim.
			out.WriteString(s[i:])
			break
		}
		key := s[i+1 : i+1+j]
		if key == "" {
			out.WriteByte(delim)
		} else {
			val, ok := lookup(key)
			if !ok {
				return "", trunkerr.New(trunkerr.KindValidation, "no response matches prompt `%s`", key)
			}
			out.WriteString(val)
		}
		i = i + 1 + j + 1
	}
	return out.String(), nil
}

// ExpandGlobals runs pass 1 of the template engine against the package's
// globals map.
func ExpandGlobals(s string, globals model.Globals) (string, error) {
	return expand(s, '@', func(key string) (string, bool) {
		v, ok := globals[key]
		return v, ok
	})
}

// ExpandPrompts runs pass 2 of the template engine against the user's
// prompt responses, rendered to their string form.
func ExpandPrompts(s string, responses map[string]model.TypedValue) (string, error) {
	return expand(s, '?', func(key string) (string, bool) {
		v, ok := responses[key]
		if !ok {
			return "", false
		}
		return renderValue(v), true
	})
}

func renderValue(v model.TypedValue) string {
	switch v.Kind {
	case model.ValueInt:
		return strconv.FormatUint(v.Int, 10)
	case model.ValueSInt:
		return strconv.FormatInt(v.SInt, 10)
	case model.ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// Expand runs both passes in order (globals, then prompts) and is the
// primary entry point used by the compiler for every templated field.
func Expand(s string, globals model.Globals, responses map[string]model.TypedValue) (string, error) {
	afterGlobals, err := ExpandGlobals(s, globals)
	if err != nil {
		return "", err
	}
	return ExpandPrompts(afterGlobals, responses)
}

// Coerce parses the fully-expanded string into its declared output type.
// Supported kinds mirror model.InputType: u64 ("int"), i64 ("sint"), bool,
// and string (identity).
func Coerce[T string | uint64 | int64 | bool](s string) (T, error) {
	var zero T
	switch any(zero).(type) {
	case string:
		return any(s).(T), nil
	case uint64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return zero, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to coerce %q to uint64", s)
		}
		return any(n).(T), nil
	case int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return zero, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to coerce %q to int64", s)
		}
		return any(n).(T), nil
	case bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return zero, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to coerce %q to bool", s)
		}
		return any(b).(T), nil
	default:
		return zero, trunkerr.New(trunkerr.KindValidation, "unsupported coercion target")
	}
}

// Templated is a single algebraic value over a raw templated string plus its
// target scalar type, per design note 1: one generic wrapper instead of a
// proliferation of dependently-typed per-field wrappers.
type Templated[T string | uint64 | int64 | bool] struct {
	Raw string
}

// NewTemplated wraps a raw templated string.
func NewTemplated[T string | uint64 | int64 | bool](raw string) Templated[T] {
	return Templated[T]{Raw: raw}
}

// Compile runs both expansion passes and coerces the result to T.
func (t Templated[T]) Compile(globals model.Globals, responses map[string]model.TypedValue) (T, error) {
	var zero T
	expanded, err := Expand(t.Raw, globals, responses)
	if err != nil {
		return zero, err
	}
	return Coerce[T](expanded)
}
