package composer

import (
	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/schema"
)

// command is one step of a chain. This is a sealed interface - only types
// in this package implement it.
type command interface {
	command()
}

type whereCommand struct {
	filter adapter.MultiFilter
}

type orderByCommand struct {
	order adapter.OrderBy
}

type limitCommand struct {
	limit adapter.Limit
}

type joinCommand struct {
	name  string
	joins []adapter.JoinSpec
	// types holds the target record type of each join hop.
	types []*schema.Table
}

type groupByCommand struct {
	expr adapter.Expression
}

type aggregateCommand struct {
	column adapter.Column
}

func (whereCommand) command()     {}
func (orderByCommand) command()   {}
func (limitCommand) command()     {}
func (joinCommand) command()      {}
func (groupByCommand) command()   {}
func (aggregateCommand) command() {}

// clause ranks follow the clause order of a single SELECT. A command may
// only extend a stage whose clauses all rank at or below it.
const (
	rankWhere = iota
	rankGroup
	rankOrder
	rankLimit
)
