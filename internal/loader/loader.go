// Package loader writes converted points into a PostGIS table.
package loader

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wegman-software/jgd-go/internal/config"
	"github.com/wegman-software/jgd-go/internal/logger"
	"github.com/wegman-software/jgd-go/internal/pipeline"
	"github.com/wegman-software/jgd-go/internal/wkb"
)

const tempTable = "jgd_load_tmp"

var tempColumns = []string{"id", "status", "src_lat", "src_lon", "datum", "geom_wkb"}

// Loader is a pipeline.Sink that COPYs results into
// <schema>.<table> with a geometry(Point, <srid>) column
type Loader struct {
	pool          *pgxpool.Pool
	table         pgx.Identifier
	srid          int
	createIndexes bool
	encoder       *wkb.Encoder
	rows          int64
}

// NewLoader connects to PostgreSQL and prepares the target table.
// srid is the EPSG code of the target datum.
func NewLoader(ctx context.Context, cfg *config.Config, srid int, dropExisting, createIndexes bool) (*Loader, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(max(cfg.Workers, 1))

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	l := &Loader{
		pool:          pool,
		table:         pgx.Identifier{cfg.DBSchema, cfg.DBTable},
		srid:          srid,
		createIndexes: createIndexes,
		encoder:       wkb.NewEncoder(srid),
	}
	if err := l.prepare(ctx, cfg.DBSchema, dropExisting); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

func (l *Loader) prepare(ctx context.Context, schema string, dropExisting bool) error {
	if _, err := l.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return fmt.Errorf("failed to create PostGIS extension: %w", err)
	}
	if schema != "" && schema != "public" {
		sql := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schema}.Sanitize())
		if _, err := l.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	if dropExisting {
		if _, err := l.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", l.table.Sanitize())); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	if _, err := l.pool.Exec(ctx, createTableSQL(l.table, l.srid)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Write copies one batch of results in a single transaction
func (l *Loader) Write(ctx context.Context, results []pipeline.Result) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, tempTableSQL); err != nil {
		return fmt.Errorf("failed to create temp table: %w", err)
	}

	rows := make([][]any, len(results))
	for i, r := range results {
		rows[i] = rowValues(r, l.encoder)
	}

	// EWKB goes through bytea since pgx has no codec for geometry
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, tempColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("COPY failed: %w", err)
	}
	if _, err := tx.Exec(ctx, insertSQL(l.table)); err != nil {
		return fmt.Errorf("failed to insert from temp table: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	l.rows += copied
	return nil
}

// Rows returns the number of rows loaded so far
func (l *Loader) Rows() int64 {
	return l.rows
}

// Close creates indexes when requested and closes the pool
func (l *Loader) Close() error {
	defer l.pool.Close()
	if !l.createIndexes {
		return nil
	}

	ctx := context.Background()
	log := logger.Named("loader")
	log.Info("Creating indexes", zap.String("table", l.table.Sanitize()))
	for _, sql := range indexSQL(l.table) {
		if _, err := l.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}
	return nil
}

func createTableSQL(table pgx.Identifier, srid int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT NOT NULL,
	status TEXT NOT NULL,
	src_lat DOUBLE PRECISION,
	src_lon DOUBLE PRECISION,
	datum TEXT NOT NULL,
	geom GEOMETRY(Point, %d)
)`, table.Sanitize(), srid)
}

var tempTableSQL = fmt.Sprintf(`CREATE TEMP TABLE IF NOT EXISTS %s (
	id TEXT,
	status TEXT,
	src_lat DOUBLE PRECISION,
	src_lon DOUBLE PRECISION,
	datum TEXT,
	geom_wkb BYTEA
) ON COMMIT DROP`, tempTable)

func insertSQL(table pgx.Identifier) string {
	return fmt.Sprintf(`INSERT INTO %s (id, status, src_lat, src_lon, datum, geom)
SELECT id, status, src_lat, src_lon, datum, ST_GeomFromEWKB(geom_wkb)
FROM %s`, table.Sanitize(), tempTable)
}

func indexSQL(table pgx.Identifier) []string {
	name := table[len(table)-1]
	return []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)",
			pgx.Identifier{name + "_geom_idx"}.Sanitize(), table.Sanitize()),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (id)",
			pgx.Identifier{name + "_id_idx"}.Sanitize(), table.Sanitize()),
		fmt.Sprintf("ANALYZE %s", table.Sanitize()),
	}
}

// rowValues returns the COPY values for a result. Failed rows get a
// NULL geometry, unparsed rows NULL source columns too.
func rowValues(r pipeline.Result, enc *wkb.Encoder) []any {
	var geom []byte
	if r.OK() {
		// copy, the encoder reuses its buffer
		geom = append([]byte(nil), enc.EncodePoint(r.Point)...)
	}
	var srcLat, srcLon any
	if r.HasSource() {
		srcLat, srcLon = r.Source.Lat, r.Source.Lon
	}
	return []any{r.ID, string(r.Status), srcLat, srcLon, r.To.String(), geom}
}
