package adapter

import "strings"

// Transform builds a SQL expression from one or more escaped column
// references, in the order the columns were declared.
type Transform func(refs ...string) string

// Identity returns the first reference unchanged.
func Identity(refs ...string) string {
	if len(refs) == 0 {
		return ""
	}
	return refs[0]
}

// Aggregate is the closed set of aggregate functions available to
// groupBy/aggregate stages.
type Aggregate int

const (
	AggregateNone Aggregate = iota
	Count
	Sum
	Avg
	Min
	Max
	Distinct
	CountTrue
)

var aggregateNames = [...]string{
	AggregateNone: "none",
	Count:         "count",
	Sum:           "sum",
	Avg:           "avg",
	Min:           "min",
	Max:           "max",
	Distinct:      "distinct",
	CountTrue:     "count_true",
}

// ParseAggregate looks up an aggregate by name.
func ParseAggregate(name string) (Aggregate, bool) {
	name = strings.ToLower(name)
	for a, n := range aggregateNames {
		if n == name {
			return Aggregate(a), true
		}
	}
	return AggregateNone, false
}

func (a Aggregate) String() string {
	if a < 0 || int(a) >= len(aggregateNames) {
		return "unknown"
	}
	return aggregateNames[a]
}

// Transform returns the single-column expression builder for the aggregate.
func (a Aggregate) Transform() Transform {
	return func(refs ...string) string {
		ref := Identity(refs...)
		switch a {
		case Count:
			return "COUNT(" + ref + ")"
		case Sum:
			return "SUM(" + ref + ")"
		case Avg:
			return "AVG(" + ref + ")"
		case Min:
			return "MIN(" + ref + ")"
		case Max:
			return "MAX(" + ref + ")"
		case Distinct:
			return "COUNT(DISTINCT(" + ref + "))"
		case CountTrue:
			return "COUNT(CASE WHEN " + ref + " THEN 1 ELSE NULL END)"
		default:
			return ref
		}
	}
}
