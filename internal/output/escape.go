package output

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EscapeCopyValue escapes a single value for PostgreSQL COPY text format.
// NULL is represented as \N.
func EscapeCopyValue(val any) string {
	if val == nil {
		return `\N`
	}

	switch v := val.(type) {
	case bool:
		if v {
			return "t"
		}
		return "f"
	case []byte:
		// bytea: output as hex-encoded with \x prefix
		return `\\x` + hex.EncodeToString(v)
	case time.Time:
		return escapeString(v.Format("2006-01-02 15:04:05.999999-07"))
	case string:
		return escapeString(v)
	case []any:
		return escapeString(arrayLiteral(v))
	case []string:
		elems := make([]any, len(v))
		for i, s := range v {
			elems[i] = s
		}
		return escapeString(arrayLiteral(elems))
	case []int64:
		elems := make([]any, len(v))
		for i, n := range v {
			elems[i] = n
		}
		return escapeString(arrayLiteral(elems))
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return escapeString(fmt.Sprintf("%v", v))
		}
		return escapeString(string(b))
	case fmt.Stringer:
		return escapeString(v.String())
	default:
		return escapeString(fmt.Sprintf("%v", v))
	}
}

// jsonValue encodes a json column value so it is copied as a document
// rather than as an array or map literal.
func jsonValue(v any) any {
	switch v.(type) {
	case nil, string:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	return string(b)
}

// arrayLiteral renders a one-dimensional PostgreSQL array literal. Elements
// are double quoted unless they are numbers or booleans.
func arrayLiteral(elems []any) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(',')
		}
		switch v := e.(type) {
		case nil:
			b.WriteString("NULL")
		case bool:
			if v {
				b.WriteString("t")
			} else {
				b.WriteString("f")
			}
		case int, int32, int64, float32, float64:
			fmt.Fprintf(&b, "%v", v)
		case time.Time:
			b.WriteString(quoteElement(v.Format("2006-01-02 15:04:05.999999-07")))
		default:
			b.WriteString(quoteElement(fmt.Sprintf("%v", v)))
		}
	}
	b.WriteByte('}')
	return b.String()
}

func quoteElement(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// escapeString applies COPY text format escaping.
func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
