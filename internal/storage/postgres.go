package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ConnString returns the pgx connection URL for c.
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// PostgresCatalog is a route catalog shared through PostgreSQL.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresCatalog, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 4
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresCatalog{pool: pool}, nil
}

// Close closes the connection pool.
func (c *PostgresCatalog) Close() error {
	c.pool.Close()
	return nil
}

// CreateSchema creates the catalog tables.
func (c *PostgresCatalog) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS routes (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		input       TEXT NOT NULL DEFAULT '',
		output      TEXT NOT NULL DEFAULT '',
		departure   TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL DEFAULT '',
		truncated   BOOLEAN NOT NULL DEFAULT FALSE,
		dropped     INTEGER NOT NULL DEFAULT 0,
		distance_nm DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_routes_created ON routes(created_at);

	CREATE TABLE IF NOT EXISTS route_waypoints (
		route_id    BIGINT NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
		sequence    INTEGER NOT NULL,
		kind        TEXT NOT NULL,
		role        TEXT NOT NULL DEFAULT '',
		ident       TEXT NOT NULL DEFAULT '',
		icao        TEXT NOT NULL DEFAULT '',
		longitude   DOUBLE PRECISION,
		latitude    DOUBLE PRECISION,
		altitude_ft INTEGER,
		PRIMARY KEY (route_id, sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_route_waypoints_ident ON route_waypoints(ident);
	`
	_, err := c.pool.Exec(ctx, schema)
	return err
}

var waypointColumns = []string{
	"route_id", "sequence", "kind", "role", "ident", "icao", "longitude", "latitude", "altitude_ft",
}

// SaveRoute stores r in one transaction, copying the waypoints in bulk.
func (c *PostgresCatalog) SaveRoute(ctx context.Context, r Route) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO routes (name, input, output, departure, destination, truncated, dropped, distance_nm, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, r.Name, r.Input, r.Output, r.Departure, r.Destination, r.Truncated, r.Dropped, r.DistanceNM, r.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert route: %w", err)
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"route_waypoints"}, waypointColumns,
		pgx.CopyFromSlice(len(r.Waypoints), func(i int) ([]any, error) {
			wp := r.Waypoints[i]
			lon, lat, alt := positionArgs(wp)
			return []any{id, wp.Sequence, wp.Kind, wp.Role, wp.Ident, wp.ICAO, lon, lat, alt}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copy waypoints: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ListRoutes returns up to limit routes, newest first. A limit of zero or
// less means 100.
func (c *PostgresCatalog) ListRoutes(ctx context.Context, limit int) ([]Route, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := c.pool.Query(ctx, `
		SELECT id, name, input, output, departure, destination, truncated, dropped, distance_nm, created_at
		FROM routes
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	routes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Route, error) {
		r, err := scanPostgresRoute(row)
		if err != nil {
			return Route{}, err
		}
		return *r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect routes: %w", err)
	}
	return routes, nil
}

// GetRoute returns the route with the given ID and its waypoints.
func (c *PostgresCatalog) GetRoute(ctx context.Context, id int64) (*Route, error) {
	r, err := scanPostgresRoute(c.pool.QueryRow(ctx, `
		SELECT id, name, input, output, departure, destination, truncated, dropped, distance_nm, created_at
		FROM routes
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}

	rows, err := c.pool.Query(ctx, `
		SELECT sequence, kind, role, ident, icao, longitude, latitude, altitude_ft
		FROM route_waypoints
		WHERE route_id = $1
		ORDER BY sequence
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query waypoints: %w", err)
	}
	r.Waypoints, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Waypoint, error) {
		var wp Waypoint
		var lon, lat *float64
		var alt *int32
		if err := row.Scan(&wp.Sequence, &wp.Kind, &wp.Role, &wp.Ident, &wp.ICAO, &lon, &lat, &alt); err != nil {
			return wp, err
		}
		if lon != nil && lat != nil {
			wp.Longitude, wp.Latitude = *lon, *lat
		}
		if alt != nil {
			wp.AltitudeFt = int(*alt)
		}
		return wp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect waypoints: %w", err)
	}
	return r, nil
}

func scanPostgresRoute(row pgx.Row) (*Route, error) {
	var r Route
	err := row.Scan(&r.ID, &r.Name, &r.Input, &r.Output, &r.Departure, &r.Destination,
		&r.Truncated, &r.Dropped, &r.DistanceNM, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
