package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurou927/pg-composer/internal/graph"
)

var (
	analyzeFormat string
	analyzeSource string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Render the relationship graph of the record types",
	Long:  `Loads the record types from the config file or by introspecting the database, builds the relationship graph and outputs it in the specified format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var pool *pgxpool.Pool
		if analyzeSource == sourceDatabase {
			var err error
			pool, err = connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
		}

		m, err := loadModels(ctx, analyzeSource, pool)
		if err != nil {
			return err
		}
		log.Info("analyzed record types",
			zap.Int("tables", m.catalog.Len()),
			zap.Int("relationships", len(m.graph.Edges())),
		)
		return writeGraph(os.Stdout, m.graph, analyzeFormat)
	},
}

func writeGraph(w io.Writer, g *graph.Graph, format string) error {
	switch format {
	case "mermaid":
		return graph.WriteMermaid(w, g)
	case "text":
		return graph.WriteText(w, g)
	default:
		return fmt.Errorf("unknown format: %s (supported: mermaid, text)", format)
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "mermaid", "output format: mermaid or text")
	analyzeCmd.Flags().StringVar(&analyzeSource, "source", sourceConfig, "where record types come from: config or database")
	rootCmd.AddCommand(analyzeCmd)
}
