package db

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Params maps placeholder names, without the leading colon, to values.
type Params map[string]any

// ErrMissingParam is returned when a template names a placeholder absent from Params.
var ErrMissingParam = errors.New("missing query parameter")

// emptySet replaces an expanding placeholder bound to an empty sequence.
// "x IN emptySet" is false and "x NOT IN emptySet" is true in both dialects.
const emptySet = "(SELECT NULL WHERE 1 = 0)"

// Bind rewrites the :name placeholders of query into the positional form of
// the dialect and returns the matching argument list.
//
// A value that is a slice or array (other than []byte, or a driver.Valuer) is
// an expanding bind: ":ids" becomes "($1, $2, $3)" sized to the value, so the
// template is written as "WHERE id IN :ids". Scalars map to one placeholder.
// Text inside quotes or comments, "::" casts and a colon directly after a
// word character are left alone. Every
// occurrence gets its own positional slot, so a name may be repeated.
func Bind(d Dialect, query string, params Params) (string, []any, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.Grow(len(query) + 16)

	placeholder := func(v any) {
		args = append(args, v)
		if d == DialectPostgres {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(len(args)))
		} else {
			b.WriteByte('?')
		}
	}

	n := len(query)
	for i := 0; i < n; {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			end := closingQuote(query, i)
			b.WriteString(query[i:end])
			i = end
		case c == '-' && i+1 < n && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = n - i
			}
			b.WriteString(query[i : i+end])
			i += end
		case c == '/' && i+1 < n && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = n
			} else {
				end = i + 2 + end + 2
			}
			b.WriteString(query[i:end])
			i = end
		case c == ':' && i+1 < n && query[i+1] == ':':
			b.WriteString("::")
			i += 2
		case c == ':' && i > 0 && isIdentPart(query[i-1]):
			// slices like arr[lo:hi] and times like 12:30
			b.WriteByte(c)
			i++
		case c == ':' && i+1 < n && isIdentStart(query[i+1]):
			j := i + 1
			for j < n && isIdentPart(query[j]) {
				j++
			}
			name := query[i+1 : j]
			value, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("%w: %q", ErrMissingParam, name)
			}
			if seq, ok := expand(value); ok {
				if len(seq) == 0 {
					b.WriteString(emptySet)
				} else {
					b.WriteByte('(')
					for k, v := range seq {
						if k > 0 {
							b.WriteString(", ")
						}
						placeholder(v)
					}
					b.WriteByte(')')
				}
			} else {
				placeholder(value)
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String(), args, nil
}

// Expanding reports, sorted, which params would be bound as expanding sequences.
func Expanding(params Params) []string {
	var names []string
	for name, v := range params {
		if _, ok := expand(v); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// expand returns the elements of v when v is a sequence.
func expand(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, ok := v.(driver.Valuer); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
	default:
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// closingQuote returns the index just past the quoted section starting at i.
// Doubled quote characters are escapes.
func closingQuote(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
