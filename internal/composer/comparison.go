package composer

import (
	"sort"
	"strings"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/graph"
	"github.com/hurou927/pg-composer/internal/qerrors"
)

const (
	// joinAlias prefixes the aliases of joined tables in the outer query.
	joinAlias = "j"
	// whereAlias prefixes the aliases inside EXISTS sub-clauses.
	whereAlias = "w"
	// cascadeAlias prefixes the aliases of cascading deletes.
	cascadeAlias = "c"
)

func (c *Composer) parseComparisons(groups []Comparisons, safe bool) (adapter.MultiFilter, error) {
	cols, grouped := c.plan().inputColumns(c.table, rankWhere)
	if !grouped {
		cols = nil
	}
	return parseGroups(c.engine, c.node(), groups, safe, cols)
}

// parseGroups resolves comparison groups against the type of node. A non-nil
// aliases restricts comparisons to those output columns of a grouped query;
// relationships cannot be crossed there and values are bound unconverted.
func parseGroups(e *Engine, node *graph.Node, groups []Comparisons, safe bool, aliases []string) (adapter.MultiFilter, error) {
	parsed := make([][]adapter.Comparison, 0, len(groups))

	for _, g := range groups {
		keys := make([]string, 0, len(g))
		for k := range g {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var group []adapter.Comparison
		for _, k := range keys {
			cmp, ok, err := parseComparison(e, node, k, g[k], safe, aliases)
			if err != nil {
				return nil, err
			}
			if ok {
				group = append(group, cmp)
			}
		}
		parsed = append(parsed, group)
	}

	return adapter.NewMultiFilter(parsed...), nil
}

// splitKey splits "rel__path__column__comparator" into its relationship
// path, column and comparator. A trailing segment that is not a comparator
// name is the column, compared with Is.
func splitKey(key string) (path, column string, comparator adapter.Comparator) {
	segments := strings.Split(key, graph.Delimiter)
	comparator = adapter.Is
	if len(segments) > 1 {
		if cmp, ok := adapter.ParseComparator(segments[len(segments)-1]); ok {
			comparator = cmp
			segments = segments[:len(segments)-1]
		}
	}
	column = segments[len(segments)-1]
	path = strings.Join(segments[:len(segments)-1], graph.Delimiter)
	return path, column, comparator
}

func parseComparison(e *Engine, node *graph.Node, key string, value any, safe bool, aliases []string) (adapter.Comparison, bool, error) {
	const op = "composer.Where"
	path, column, comparator := splitKey(key)
	comparator = comparator.Normalize(value)

	if aliases != nil {
		if path != "" {
			if safe {
				return adapter.Comparison{}, false, nil
			}
			return adapter.Comparison{}, false, qerrors.Configurationf(op, "cannot filter grouped query through %q", path)
		}
		for _, a := range aliases {
			if a == column {
				if comparator.IgnoresValue() {
					value = nil
				}
				return adapter.Comparison{Column: column, Comparator: comparator, Value: value}, true, nil
			}
		}
		return unknownColumn(e, op, node.Table().TableName(), column)
	}

	target := node
	var joins []adapter.JoinSpec
	if path != "" {
		p := node.FindExplicit(path)
		if p == nil {
			if safe {
				return adapter.Comparison{}, false, nil
			}
			return adapter.Comparison{}, false, qerrors.RelationshipNotFound(op, node.Table().TableName(), path)
		}
		target = p.Target()
		joins = p.Joins(whereAlias, "")
	}

	t := target.Table()
	if safe && t.IsHidden(column) {
		return adapter.Comparison{}, false, nil
	}
	col, ok := t.Column(column)
	if !ok {
		return unknownColumn(e, op, t.TableName(), column)
	}

	if comparator.IgnoresValue() {
		value = nil
	} else if typ, ok := adapter.LookupType(col.Type); ok {
		var err error
		if comparator.IsArray() {
			value, err = typ.SanitizeList(value)
		} else {
			value, err = typ.Sanitize(value)
		}
		if err != nil {
			if e.strict {
				return adapter.Comparison{}, false, qerrors.Validationf(op, "%s.%s: %v", t.TableName(), column, err)
			}
			return adapter.Comparison{}, false, nil
		}
	}

	return adapter.Comparison{
		Table:      t.TableName(),
		Column:     column,
		Comparator: comparator,
		Value:      value,
		Joined:     path != "",
		Joins:      joins,
	}, true, nil
}

func unknownColumn(e *Engine, op, table, column string) (adapter.Comparison, bool, error) {
	if e.strict {
		return adapter.Comparison{}, false, qerrors.Validationf(op, "unknown column %q on %q", column, table)
	}
	return adapter.Comparison{}, false, nil
}
