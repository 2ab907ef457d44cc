package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCatalog is a route catalog in a local SQLite file.
type SQLiteCatalog struct {
	db *sql.DB
}

// OpenSQLite opens or creates the catalog database at path.
func OpenSQLite(path string) (*SQLiteCatalog, error) {
	if path == "" {
		return nil, errors.New("open sqlite catalog: empty path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS routes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		input       TEXT NOT NULL DEFAULT '',
		output      TEXT NOT NULL DEFAULT '',
		departure   TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL DEFAULT '',
		truncated   INTEGER NOT NULL DEFAULT 0,
		dropped     INTEGER NOT NULL DEFAULT 0,
		distance_nm REAL NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_routes_created ON routes(created_at);

	CREATE TABLE IF NOT EXISTS route_waypoints (
		route_id    INTEGER NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
		sequence    INTEGER NOT NULL,
		kind        TEXT NOT NULL,
		role        TEXT NOT NULL DEFAULT '',
		ident       TEXT NOT NULL DEFAULT '',
		icao        TEXT NOT NULL DEFAULT '',
		longitude   REAL,
		latitude    REAL,
		altitude_ft INTEGER,
		PRIMARY KEY (route_id, sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_route_waypoints_ident ON route_waypoints(ident);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveRoute stores r and its waypoints in one transaction.
func (c *SQLiteCatalog) SaveRoute(ctx context.Context, r Route) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO routes (name, input, output, departure, destination, truncated, dropped, distance_nm, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Name, r.Input, r.Output, r.Departure, r.Destination, r.Truncated, r.Dropped, r.DistanceNM,
		r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert route: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("route id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO route_waypoints (route_id, sequence, kind, role, ident, icao, longitude, latitude, altitude_ft)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare waypoint insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, wp := range r.Waypoints {
		lon, lat, alt := positionArgs(wp)
		if _, err := stmt.ExecContext(ctx, id, wp.Sequence, wp.Kind, wp.Role, wp.Ident, wp.ICAO, lon, lat, alt); err != nil {
			return 0, fmt.Errorf("insert waypoint %d: %w", wp.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ListRoutes returns up to limit routes, newest first. A limit of zero or
// less means 100.
func (c *SQLiteCatalog) ListRoutes(ctx context.Context, limit int) ([]Route, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, input, output, departure, destination, truncated, dropped, distance_nm, created_at
		FROM routes
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var routes []Route
	for rows.Next() {
		r, err := scanSQLiteRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, *r)
	}
	return routes, rows.Err()
}

// GetRoute returns the route with the given ID and its waypoints.
func (c *SQLiteCatalog) GetRoute(ctx context.Context, id int64) (*Route, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, name, input, output, departure, destination, truncated, dropped, distance_nm, created_at
		FROM routes
		WHERE id = ?
	`, id)
	r, err := scanSQLiteRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT sequence, kind, role, ident, icao, longitude, latitude, altitude_ft
		FROM route_waypoints
		WHERE route_id = ?
		ORDER BY sequence
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query waypoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var wp Waypoint
		var lon, lat sql.NullFloat64
		var alt sql.NullInt64
		if err := rows.Scan(&wp.Sequence, &wp.Kind, &wp.Role, &wp.Ident, &wp.ICAO, &lon, &lat, &alt); err != nil {
			return nil, fmt.Errorf("scan waypoint: %w", err)
		}
		wp.Longitude = lon.Float64
		wp.Latitude = lat.Float64
		wp.AltitudeFt = int(alt.Int64)
		r.Waypoints = append(r.Waypoints, wp)
	}
	return r, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRoute(row rowScanner) (*Route, error) {
	var r Route
	var created string
	err := row.Scan(&r.ID, &r.Name, &r.Input, &r.Output, &r.Departure, &r.Destination,
		&r.Truncated, &r.Dropped, &r.DistanceNM, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan route: %w", err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &r, nil
}

// positionArgs returns NULLs for runway waypoints, which have no position.
func positionArgs(wp Waypoint) (lon, lat, alt any) {
	if wp.Kind == KindRunway {
		return nil, nil, nil
	}
	return wp.Longitude, wp.Latitude, wp.AltitudeFt
}
