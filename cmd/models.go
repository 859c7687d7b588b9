package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hurou927/pg-composer/internal/config"
	"github.com/hurou927/pg-composer/internal/db"
	"github.com/hurou927/pg-composer/internal/graph"
	"github.com/hurou927/pg-composer/internal/schema"
)

const (
	sourceConfig   = "config"
	sourceDatabase = "database"
)

// models is the set of record types a command works on.
type models struct {
	catalog *schema.Catalog
	graph   *graph.Graph
}

// fromConfig builds the record types declared in the config file.
func fromConfig(c *config.Config) (*models, error) {
	catalog, err := c.Catalog()
	if err != nil {
		return nil, fmt.Errorf("building models: %w", err)
	}
	g, err := c.Graph(catalog)
	if err != nil {
		return nil, fmt.Errorf("building relationships: %w", err)
	}
	return &models{catalog: catalog, graph: g}, nil
}

// fromDatabase introspects the configured schemas. Excluded tables are left
// out and every single-column foreign key becomes a relationship.
func fromDatabase(ctx context.Context, c *config.Config, q schema.Querier) (*models, error) {
	tables, err := schema.Introspect(ctx, q, c.Schemas)
	if err != nil {
		return nil, fmt.Errorf("introspecting schema: %w", err)
	}

	exclude := c.ExcludeSet()
	for key, t := range tables {
		if exclude[t.Name] || exclude[t.FullName()] {
			delete(tables, key)
		}
	}

	catalog := schema.FromTables(tables)
	g := graph.New()
	for _, t := range catalog.Tables() {
		g.Of(t)
	}
	graph.FromForeignKeys(g, catalog)
	return &models{catalog: catalog, graph: g}, nil
}

// connect opens a pool for the configured connection.
func connect(ctx context.Context) (*pgxpool.Pool, error) {
	if err := cfg.ValidateConnection(); err != nil {
		return nil, err
	}
	pool, err := db.NewPool(ctx, &cfg.Connection, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	log.Debug("connected", zap.String("host", cfg.Connection.Host), zap.String("database", cfg.Connection.Database))
	return pool, nil
}

// loadModels reads the record types from source. A database source needs
// pool; a config source ignores it.
func loadModels(ctx context.Context, source string, pool *pgxpool.Pool) (*models, error) {
	switch source {
	case sourceConfig:
		return fromConfig(cfg)
	case sourceDatabase:
		return fromDatabase(ctx, cfg, pool)
	default:
		return nil, fmt.Errorf("unknown source: %s (supported: config, database)", source)
	}
}

// parentFirst returns the tables in dependency order, parents first. Tables
// on a cycle follow in catalog order.
func (m *models) parentFirst() []*schema.Table {
	res := graph.TopoSortAll(m.graph)
	if res.HasCycle {
		log.Warn("relationship cycle, order is partial", zap.Error(graph.ValidateCycles(res)))
	}

	out := make([]*schema.Table, 0, m.catalog.Len())
	placed := make(map[*schema.Table]bool, m.catalog.Len())
	for _, n := range res.Order {
		out = append(out, n.Table())
		placed[n.Table()] = true
	}
	for _, t := range m.catalog.Tables() {
		if !placed[t] {
			out = append(out, t)
		}
	}
	return out
}
