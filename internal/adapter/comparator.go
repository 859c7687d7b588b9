package adapter

// Comparator is the closed set of comparison operators accepted in filters.
type Comparator int

const (
	Is Comparator = iota
	Not
	Lt
	Lte
	Gt
	Gte
	Contains
	IContains
	StartsWith
	IStartsWith
	EndsWith
	IEndsWith
	Like
	ILike
	IsNull
	NotNull
	In
	NotIn
)

var comparatorNames = [...]string{
	Is:          "is",
	Not:         "not",
	Lt:          "lt",
	Lte:         "lte",
	Gt:          "gt",
	Gte:         "gte",
	Contains:    "contains",
	IContains:   "icontains",
	StartsWith:  "startswith",
	IStartsWith: "istartswith",
	EndsWith:    "endswith",
	IEndsWith:   "iendswith",
	Like:        "like",
	ILike:       "ilike",
	IsNull:      "is_null",
	NotNull:     "not_null",
	In:          "in",
	NotIn:       "not_in",
}

var comparatorsByName = func() map[string]Comparator {
	m := make(map[string]Comparator, len(comparatorNames))
	for c, name := range comparatorNames {
		m[name] = Comparator(c)
	}
	return m
}()

// ParseComparator looks up a comparator by its filter-key suffix.
func ParseComparator(name string) (Comparator, bool) {
	c, ok := comparatorsByName[name]
	return c, ok
}

func (c Comparator) String() string {
	if c < 0 || int(c) >= len(comparatorNames) {
		return "unknown"
	}
	return comparatorNames[c]
}

// IgnoresValue reports whether the comparator binds no parameter.
func (c Comparator) IgnoresValue() bool {
	return c == IsNull || c == NotNull
}

// Render returns the predicate for field, with placeholder standing in for
// the bound value.
func (c Comparator) Render(field, placeholder string) string {
	switch c {
	case Is:
		return field + " = " + placeholder
	case Not:
		return field + " <> " + placeholder
	case Lt:
		return field + " < " + placeholder
	case Lte:
		return field + " <= " + placeholder
	case Gt:
		return field + " > " + placeholder
	case Gte:
		return field + " >= " + placeholder
	case Contains:
		return field + " LIKE '%' || " + placeholder + " || '%'"
	case IContains:
		return field + " ILIKE '%' || " + placeholder + " || '%'"
	case StartsWith:
		return field + " LIKE " + placeholder + " || '%'"
	case IStartsWith:
		return field + " ILIKE " + placeholder + " || '%'"
	case EndsWith:
		return field + " LIKE '%' || " + placeholder
	case IEndsWith:
		return field + " ILIKE '%' || " + placeholder
	case Like:
		return field + " LIKE " + placeholder
	case ILike:
		return field + " ILIKE " + placeholder
	case IsNull:
		return field + " IS NULL"
	case NotNull:
		return field + " IS NOT NULL"
	case In:
		return "ARRAY[" + field + "] <@ " + placeholder
	case NotIn:
		return "NOT (ARRAY[" + field + "] <@ " + placeholder + ")"
	default:
		panic("adapter: unknown comparator")
	}
}

// IsArray reports whether the comparator expects a list value.
func (c Comparator) IsArray() bool {
	return c == In || c == NotIn
}

// Normalize rewrites equality against nil into the null checks.
func (c Comparator) Normalize(value any) Comparator {
	if value != nil {
		return c
	}
	switch c {
	case Is:
		return IsNull
	case Not:
		return NotNull
	}
	return c
}
