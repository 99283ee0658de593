// Package warehouse provides the DuckDB analytics layer over the processed
// tables: SQL views, the weekly top-cards leaderboard, and parquet export.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/cardlake/cardlake/pkg/types"
)

// DefaultTopN is the weekly leaderboard size.
const DefaultTopN = 200

// Warehouse wraps a DuckDB database with views over the processed layer.
type Warehouse struct {
	db     *sql.DB
	topN   int
	logger *slog.Logger
}

// TopCard is one weekly leaderboard row.
type TopCard struct {
	Week      string
	CardName  string
	SetName   string
	PriceType string
	Market    float64
	Rank      int
}

// Open creates a Warehouse. An empty cfg.Path opens an in-memory database.
func Open(cfg *types.WarehouseConfig, logger *slog.Logger) (*Warehouse, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := ""
	topN := DefaultTopN
	s3Region := ""
	if cfg != nil {
		path = cfg.Path
		s3Region = cfg.S3Region
		if cfg.TopN > 0 {
			topN = cfg.TopN
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	w := &Warehouse{db: db, topN: topN, logger: logger}
	if s3Region != "" {
		if err := w.enableHTTPFS(s3Region); err != nil {
			db.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close closes the underlying database.
func (w *Warehouse) Close() error {
	return w.db.Close()
}

func (w *Warehouse) enableHTTPFS(region string) error {
	for _, stmt := range []string{
		"INSTALL httpfs",
		"LOAD httpfs",
		fmt.Sprintf("SET s3_region = '%s'", region),
	} {
		if _, err := w.db.Exec(stmt); err != nil {
			return fmt.Errorf("configuring httpfs: %w", err)
		}
	}
	return nil
}

// CreateViews defines views over the processed-layer JSONL tables under
// dataDir, plus the derived weekly leaderboard view.
func (w *Warehouse) CreateViews(ctx context.Context, dataDir string) error {
	tables := []string{
		types.TableCardMaster,
		types.TableVariantMaster,
		types.TablePriceHistory,
	}
	for _, table := range tables {
		path := filepath.Join(dataDir, "processed", table+".jsonl")
		stmt := fmt.Sprintf(
			"CREATE OR REPLACE VIEW %s AS SELECT * FROM read_json_auto('%s')",
			table, escapePath(path))
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating view %s: %w", table, err)
		}
	}
	return w.createLeaderboardView(ctx)
}

// createLeaderboardView ranks cards by market price within the most recent
// recorded week.
func (w *Warehouse) createLeaderboardView(ctx context.Context) error {
	stmt := fmt.Sprintf(`
CREATE OR REPLACE VIEW %s AS
WITH latest_week AS (
    SELECT max(price_week) AS week FROM %s
),
ranked AS (
    SELECT
        f.price_week,
        c.card_name,
        c.set_name,
        v.price_type,
        f.market,
        row_number() OVER (ORDER BY f.market DESC) AS rnk
    FROM %s f
    JOIN %s v ON v.card_price_variant_id = f.card_price_variant_id
    JOIN %s c ON c.card_key = v.card_key
    WHERE f.price_week = (SELECT week FROM latest_week)
)
SELECT price_week, card_name, set_name, price_type, market, rnk
FROM ranked
WHERE rnk <= %d
ORDER BY rnk`,
		types.TableWeeklyTopCards,
		types.TablePriceHistory,
		types.TablePriceHistory,
		types.TableVariantMaster,
		types.TableCardMaster,
		w.topN)

	if _, err := w.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating view %s: %w", types.TableWeeklyTopCards, err)
	}
	return nil
}

// WeeklyTop returns the current weekly leaderboard.
func (w *Warehouse) WeeklyTop(ctx context.Context) ([]TopCard, error) {
	rows, err := w.db.QueryContext(ctx,
		"SELECT price_week, card_name, set_name, price_type, market, rnk FROM "+types.TableWeeklyTopCards)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	var cards []TopCard
	for rows.Next() {
		var c TopCard
		if err := rows.Scan(&c.Week, &c.CardName, &c.SetName, &c.PriceType, &c.Market, &c.Rank); err != nil {
			return nil, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// ExportParquet writes one table or view to a parquet file.
func (w *Warehouse) ExportParquet(ctx context.Context, table, outPath string) error {
	if !validTable(table) {
		return fmt.Errorf("unknown table %q", table)
	}
	stmt := fmt.Sprintf("COPY (SELECT * FROM %s) TO '%s' (FORMAT PARQUET)",
		table, escapePath(outPath))
	if _, err := w.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("exporting %s to parquet: %w", table, err)
	}
	w.logger.Info("exported table to parquet", "table", table, "path", outPath)
	return nil
}

func validTable(table string) bool {
	switch table {
	case types.TableCardMaster, types.TableVariantMaster, types.TablePriceHistory, types.TableWeeklyTopCards:
		return true
	}
	return false
}

func escapePath(p string) string {
	return strings.ReplaceAll(p, "'", "''")
}
