package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// varToken marks a parameter position while a clause is being assembled.
// Tokens are replaced by positional parameters once the final parameter
// offset is known. PostgreSQL allows NUL in neither identifiers nor string
// literals, so the token never collides with escaped text.
const varToken = "\x00"

// EscapeField quotes an identifier.
func EscapeField(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 2)
	b.WriteByte('"')
	for _, r := range name {
		if r == '"' {
			b.WriteString(`""`)
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// EscapeFields quotes each identifier.
func EscapeFields(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = EscapeField(n)
	}
	return out
}

// FieldRef returns the qualified reference "table"."column".
func FieldRef(table, column string) string {
	if table == "" {
		return EscapeField(column)
	}
	return EscapeField(table) + "." + EscapeField(column)
}

// EscapeLiteral renders a value as a SQL literal. It is only used for DDL
// default values; query values are always bound as parameters.
func EscapeLiteral(val any) string {
	if val == nil {
		return "NULL"
	}

	switch v := val.(type) {
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return quoteString(v.UTC().Format("2006-01-02 15:04:05.999999"))
	case string:
		return quoteString(v)
	case fmt.Stringer:
		return quoteString(v.String())
	default:
		return quoteString(fmt.Sprintf("%v", v))
	}
}

func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		if r == '\'' {
			b.WriteString("''")
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

// bindPlaceholders replaces every token, left to right, with $n starting at
// offset+1.
func bindPlaceholders(sql string, offset int) string {
	if !strings.Contains(sql, varToken) {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql))
	n := offset
	for {
		i := strings.Index(sql, varToken)
		if i < 0 {
			b.WriteString(sql)
			break
		}
		n++
		b.WriteString(sql[:i])
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
		sql = sql[i+len(varToken):]
	}
	return b.String()
}
