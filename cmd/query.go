package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurou927/pg-composer/internal/composer"
	"github.com/hurou927/pg-composer/internal/db"
	"github.com/hurou927/pg-composer/internal/dql"
	"github.com/hurou927/pg-composer/internal/output"
)

var (
	queryMaxDepth int
	queryDryRun   bool
	queryFormat   string
	querySource   string
	queryLimit    int
	queryOffset   int
	outputPath    string
)

var queryCmd = &cobra.Command{
	Use:   "query <domain query>",
	Short: "Run a domain query and print the matching records",
	Long: `Parses a domain query such as

  posts(status: "open") { comments(approved: true) { author } }

resolves the root field to a record type, filters it by its properties and
joins every nested field. Properties of unknown or hidden columns are
ignored. The result is printed as JSON, or as pg_dump-compatible COPY blocks
holding every record reached, parents first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		maxDepth := cfg.Query.MaxDepth
		if cmd.Flags().Changed("max-depth") {
			maxDepth = queryMaxDepth
		}

		var pool *pgxpool.Pool
		if !queryDryRun || querySource == sourceDatabase {
			var err error
			pool, err = connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
		}

		m, err := loadModels(ctx, querySource, pool)
		if err != nil {
			return err
		}

		var client composer.Client
		if pool != nil {
			client = db.NewClient(pool)
		}
		engine := composer.New(client, m.graph,
			composer.WithLogger(log),
			composer.WithStrict(cfg.Query.Strict),
		)

		c, err := compose(engine, m, args[0], maxDepth)
		if err != nil {
			return err
		}
		if queryLimit > 0 {
			c = c.Limit(queryOffset, queryLimit)
		}

		if queryDryRun {
			st, err := c.SQL()
			if err != nil {
				return err
			}
			return writeDryRun(os.Stdout, st)
		}

		var w io.Writer = os.Stdout
		if outputPath != "" && outputPath != "-" {
			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		result, err := c.End(ctx)
		if err != nil {
			return err
		}
		log.Info("query complete",
			zap.String("table", c.Table().TableName()),
			zap.Int("records", result.Len()),
			zap.Int64("total", result.Total),
		)

		switch queryFormat {
		case "json":
			return output.WriteJSON(w, result)
		case "copy":
			return output.NewWriter(w).WriteDataset(output.NewDataset(result), m.parentFirst())
		default:
			return fmt.Errorf("unknown format: %s (supported: json, copy)", queryFormat)
		}
	},
}

// compose parses input and applies it to the record types of m.
func compose(engine *composer.Engine, m *models, input string, maxDepth int) (*composer.Composer, error) {
	fields, err := dql.Parse(input)
	if err != nil {
		return nil, err
	}
	q, err := dql.FormatTree(fields, maxDepth)
	if err != nil {
		return nil, err
	}
	return q.Apply(engine, m.catalog)
}

// writeDryRun prints the statement and its parameters without running it.
func writeDryRun(w io.Writer, st composer.Statement) error {
	if _, err := fmt.Fprintf(w, "%s;\n", st.SQL); err != nil {
		return err
	}
	if len(st.Params) == 0 {
		return nil
	}
	params, err := json.Marshal(st.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	_, err = fmt.Fprintf(w, "-- params: %s\n", params)
	return err
}

func init() {
	queryCmd.Flags().IntVar(&queryMaxDepth, "max-depth", 0, "ignore fields nested deeper than this (0 keeps every level, overrides config)")
	queryCmd.Flags().BoolVar(&queryDryRun, "dry-run", false, "print the SQL without executing it")
	queryCmd.Flags().StringVar(&queryFormat, "format", "json", "output format: json or copy")
	queryCmd.Flags().StringVar(&querySource, "source", sourceConfig, "where record types come from: config or database")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "return at most this many root records (0 for all)")
	queryCmd.Flags().IntVar(&queryOffset, "offset", 0, "skip this many root records; needs --limit")
	queryCmd.Flags().StringVar(&outputPath, "output", "", "output file path (default stdout)")
	rootCmd.AddCommand(queryCmd)
}
