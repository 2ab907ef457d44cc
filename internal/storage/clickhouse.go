package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"kml2fgfp/internal/route"
)

// ClickHouseConfig holds ClickHouse connection settings. Analytics are
// disabled when Host is empty.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Enabled reports whether a ClickHouse host is configured.
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// ClickHouseDB records one row per conversion for analytics.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	port := cfg.Port
	if port == 0 {
		port = 9000
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 30,
		},
		DialTimeout:     5 * time.Second,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the conversions table.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	err := d.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS conversions (
		timestamp               DateTime64(3),
		name                    String,
		input                   String,
		departure               LowCardinality(String),
		destination             LowCardinality(String),
		waypoints               UInt32,
		dropped_airport         UInt32,
		dropped_not_fix         UInt32,
		dropped_bad_coordinates UInt32,
		dropped_incomplete      UInt32,
		truncated               UInt8,
		distance_nm             Float64
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (departure, destination, timestamp)`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Conversion is one analytics row.
type Conversion struct {
	Timestamp             time.Time
	Name                  string
	Input                 string
	Departure             string
	Destination           string
	Waypoints             uint32
	DroppedAirport        uint32
	DroppedNotFix         uint32
	DroppedBadCoordinates uint32
	DroppedIncomplete     uint32
	Truncated             bool
	DistanceNM            float64
}

// ConversionFromResult summarises res for InsertConversion.
func ConversionFromResult(name, input string, res *route.Result) Conversion {
	c := Conversion{
		Timestamp:             time.Now().UTC(),
		Name:                  name,
		Input:                 input,
		Waypoints:             uint32(res.Len()),
		DroppedAirport:        uint32(res.DroppedBy(route.DropAirport)),
		DroppedNotFix:         uint32(res.DroppedBy(route.DropNotFix)),
		DroppedBadCoordinates: uint32(res.DroppedBy(route.DropBadCoordinates)),
		DroppedIncomplete:     uint32(res.DroppedBy(route.DropIncomplete)),
		Truncated:             res.Truncated(),
		DistanceNM:            res.DistanceNM(),
	}
	if res.Departure != nil {
		c.Departure = res.Departure.Airport.ICAO
	}
	if res.Destination != nil {
		c.Destination = res.Destination.Airport.ICAO
	}
	return c
}

// InsertConversion stores a single conversion row.
func (d *ClickHouseDB) InsertConversion(ctx context.Context, c Conversion) error {
	var truncated uint8
	if c.Truncated {
		truncated = 1
	}
	err := d.conn.Exec(ctx, `
		INSERT INTO conversions (timestamp, name, input, departure, destination, waypoints,
			dropped_airport, dropped_not_fix, dropped_bad_coordinates, dropped_incomplete, truncated, distance_nm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Timestamp, c.Name, c.Input, c.Departure, c.Destination, c.Waypoints,
		c.DroppedAirport, c.DroppedNotFix, c.DroppedBadCoordinates, c.DroppedIncomplete, truncated, c.DistanceNM)
	if err != nil {
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

// ConversionStats aggregates all recorded conversions.
type ConversionStats struct {
	Conversions uint64
	Waypoints   uint64
	Dropped     map[route.DropReason]uint64
	Truncated   uint64
	DistanceNM  float64
	ByDeparture map[string]uint64
}

// ConversionStats returns totals over the conversions table and the ten
// busiest departure airports.
func (d *ClickHouseDB) ConversionStats(ctx context.Context) (*ConversionStats, error) {
	stats := &ConversionStats{
		Dropped:     make(map[route.DropReason]uint64),
		ByDeparture: make(map[string]uint64),
	}

	var airport, notFix, badCoords, incomplete uint64
	row := d.conn.QueryRow(ctx, `
		SELECT count(), sum(waypoints), sum(dropped_airport), sum(dropped_not_fix),
			sum(dropped_bad_coordinates), sum(dropped_incomplete), countIf(truncated = 1), sum(distance_nm)
		FROM conversions`)
	if err := row.Scan(&stats.Conversions, &stats.Waypoints, &airport, &notFix,
		&badCoords, &incomplete, &stats.Truncated, &stats.DistanceNM); err != nil {
		return nil, fmt.Errorf("scan totals: %w", err)
	}
	stats.Dropped[route.DropAirport] = airport
	stats.Dropped[route.DropNotFix] = notFix
	stats.Dropped[route.DropBadCoordinates] = badCoords
	stats.Dropped[route.DropIncomplete] = incomplete

	rows, err := d.conn.Query(ctx, `
		SELECT departure, count() FROM conversions
		WHERE departure != ''
		GROUP BY departure ORDER BY count() DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("query departures: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var icao string
		var count uint64
		if err := rows.Scan(&icao, &count); err != nil {
			return nil, fmt.Errorf("scan departure stats: %w", err)
		}
		stats.ByDeparture[icao] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departure stats: %w", err)
	}
	return stats, nil
}
