package adapter

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// TypeName identifies a logical column type.
type TypeName string

const (
	Serial   TypeName = "serial"
	Int      TypeName = "int"
	Currency TypeName = "currency"
	Float    TypeName = "float"
	String   TypeName = "string"
	Text     TypeName = "text"
	Datetime TypeName = "datetime"
	Boolean  TypeName = "boolean"
	JSON     TypeName = "json"
)

// Properties are the declared properties of a column.
type Properties struct {
	Length        int
	Nullable      bool
	Unique        bool
	PrimaryKey    bool
	AutoIncrement bool
	Array         bool
	Default       any
}

// DefaultProperties are applied to every column before type and
// declaration overrides.
var DefaultProperties = Properties{Nullable: true}

// Type describes how a logical type is stored and how values are bound.
type Type struct {
	Name   TypeName
	DBName string
	// Properties overrides DefaultProperties for this type.
	Properties Properties
	sanitize   func(any) (any, error)
}

// Sanitize converts v into a value safe to bind as a parameter for this
// type. nil is passed through.
func (t Type) Sanitize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return t.sanitize(v)
}

// SanitizeList sanitizes every element of a slice or array value and returns
// a typed slice the driver can bind as a PostgreSQL array.
func (t Type) SanitizeList(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		one, err := t.Sanitize(v)
		if err != nil {
			return nil, err
		}
		rv = reflect.ValueOf([]any{one})
	}

	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s, err := t.Sanitize(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		// NULL never matches inside an array comparison
		if s == nil {
			return nil, fmt.Errorf("element %d: null in list", i)
		}
		out[i] = s
	}

	switch t.Name {
	case Serial, Int, Currency:
		return typedSlice[int64](out)
	case Float:
		return typedSlice[float64](out)
	case String, Text, JSON:
		return typedSlice[string](out)
	case Boolean:
		return typedSlice[bool](out)
	case Datetime:
		return typedSlice[time.Time](out)
	}
	return out, nil
}

func typedSlice[T any](vals []any) (any, error) {
	out := make([]T, len(vals))
	for i, v := range vals {
		tv, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("element %d: unexpected %T", i, v)
		}
		out[i] = tv
	}
	return out, nil
}

var types = map[TypeName]Type{
	Serial: {
		Name:       Serial,
		DBName:     "BIGSERIAL",
		Properties: Properties{PrimaryKey: true, Nullable: false, AutoIncrement: true},
		sanitize:   sanitizeInt,
	},
	Int:      {Name: Int, DBName: "BIGINT", Properties: DefaultProperties, sanitize: sanitizeInt},
	Currency: {Name: Currency, DBName: "BIGINT", Properties: DefaultProperties, sanitize: sanitizeInt},
	Float:    {Name: Float, DBName: "FLOAT", Properties: DefaultProperties, sanitize: sanitizeFloat},
	String:   {Name: String, DBName: "VARCHAR", Properties: DefaultProperties, sanitize: sanitizeString},
	Text:     {Name: Text, DBName: "TEXT", Properties: DefaultProperties, sanitize: sanitizeString},
	Datetime: {Name: Datetime, DBName: "TIMESTAMP", Properties: DefaultProperties, sanitize: sanitizeTime},
	Boolean:  {Name: Boolean, DBName: "BOOLEAN", Properties: DefaultProperties, sanitize: sanitizeBool},
	JSON:     {Name: JSON, DBName: "JSONB", Properties: DefaultProperties, sanitize: sanitizeJSON},
}

// LookupType returns the registered type.
func LookupType(name TypeName) (Type, bool) {
	t, ok := types[name]
	return t, ok
}

// TypeNames lists the registered logical types.
func TypeNames() []TypeName {
	return []TypeName{Serial, Int, Currency, Float, String, Text, Datetime, Boolean, JSON}
}

// Sanitize converts v for a column of the named type. Unknown types pass the
// value through unchanged.
func Sanitize(name TypeName, v any) (any, error) {
	t, ok := types[name]
	if !ok {
		return v, nil
	}
	return t.Sanitize(v)
}

func sanitizeInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return clampUint(uint64(n)), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return clampUint(n), nil
	case float32:
		return clampFloat(float64(n)), nil
	case float64:
		return clampFloat(n), nil
	case bool:
		if n {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to integer", n)
		}
		return clampFloat(f), nil
	}
	return nil, fmt.Errorf("cannot convert %T to integer", v)
}

func clampUint(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(n)
}

func clampFloat(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func sanitizeFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to float", n)
		}
		return f, nil
	}
	return nil, fmt.Errorf("cannot convert %T to float", v)
}

func sanitizeString(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return fmt.Sprintf("%v", v), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func sanitizeTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return *t, nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return nil, fmt.Errorf("cannot parse %q as datetime", t)
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	}
	return nil, fmt.Errorf("cannot convert %T to datetime", v)
}

var falseStrings = map[string]bool{
	"f": true, "false": true, "n": true, "no": true, "off": true, "0": true, "": true,
}

func sanitizeBool(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return !falseStrings[strings.ToLower(strings.TrimSpace(b))], nil
	case int:
		return b != 0, nil
	case int64:
		return b != 0, nil
	case float64:
		return b != 0, nil
	}
	return nil, fmt.Errorf("cannot convert %T to boolean", v)
}

func sanitizeJSON(v any) (any, error) {
	if s, ok := v.(string); ok && json.Valid([]byte(s)) {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding json value: %w", err)
	}
	return string(b), nil
}
