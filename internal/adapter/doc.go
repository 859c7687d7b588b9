// Package adapter generates PostgreSQL statements from an abstract query
// plan. It has no knowledge of composer chains: callers describe a select as
// a SelectSpec, filters as a MultiFilter and joins as JoinSpec chains, and
// receive SQL text together with the parameters it binds.
//
// Placeholders are positional ($1, $2, ...). Every generator takes the
// number of parameters already bound by enclosing statements so that nested
// statements continue the numbering.
package adapter
