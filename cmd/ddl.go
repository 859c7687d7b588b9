package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/composer"
	"github.com/hurou927/pg-composer/internal/db"
)

var (
	ddlDrop  bool
	ddlApply bool
)

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Generate CREATE or DROP statements for the configured models",
	Long:  `Renders CREATE TABLE statements for the models of the config file in dependency order, parents first, followed by an index on every relationship column. With --drop the tables are dropped children first. With --apply the statements run in one transaction instead of being printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		m, err := fromConfig(cfg)
		if err != nil {
			return err
		}
		stmts, err := ddlStatements(m, ddlDrop)
		if err != nil {
			return err
		}

		if !ddlApply {
			return writeStatements(os.Stdout, stmts)
		}

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		batch := make([]composer.Statement, len(stmts))
		for i, s := range stmts {
			batch[i] = composer.Statement{SQL: s}
		}
		if _, err := db.NewClient(pool).Transaction(ctx, batch); err != nil {
			return fmt.Errorf("applying ddl: %w", err)
		}
		log.Info("applied ddl", zap.Int("statements", len(stmts)), zap.Bool("drop", ddlDrop))
		return nil
	},
}

// ddlStatements renders the schema of m. Creation runs parents first so
// that children can reference them; dropping runs in reverse.
func ddlStatements(m *models, drop bool) ([]string, error) {
	tables := m.parentFirst()

	var stmts []string
	if drop {
		for i := len(tables) - 1; i >= 0; i-- {
			stmts = append(stmts, adapter.DropTableQuery(tables[i].TableName()))
		}
		return stmts, nil
	}

	for _, t := range tables {
		q, err := adapter.CreateTableQuery(t.TableName(), t.ColumnDefs())
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, q)
	}

	indexed := make(map[string]bool)
	for _, e := range m.graph.Edges() {
		child := m.graph.Child(e).Table()
		if !child.HasColumn(e.Via) {
			continue
		}
		name := adapter.IndexName(child.TableName(), e.Via)
		if indexed[name] {
			continue
		}
		indexed[name] = true
		stmts = append(stmts, adapter.CreateIndexQuery(child.TableName(), e.Via, ""))
	}
	return stmts, nil
}

func writeStatements(w io.Writer, stmts []string) error {
	for _, s := range stmts {
		if _, err := fmt.Fprintf(w, "%s;\n", s); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	ddlCmd.Flags().BoolVar(&ddlDrop, "drop", false, "generate DROP TABLE statements instead")
	ddlCmd.Flags().BoolVar(&ddlApply, "apply", false, "run the statements against the database")
	rootCmd.AddCommand(ddlCmd)
}
