// Package storage keeps converted routes in a catalog database and records
// conversion analytics.
package storage

import (
	"context"
	"fmt"
	"time"

	"kml2fgfp/internal/route"
)

// Waypoint kinds as written to the flight plan.
const (
	KindBasic  = "basic"
	KindRunway = "runway"
)

// Route is a converted flight plan stored in a catalog.
type Route struct {
	ID          int64
	Name        string
	Input       string
	Output      string
	Departure   string // "ICAO" or "ICAO/RUNWAY", empty when not given.
	Destination string
	Truncated   bool
	Dropped     int
	DistanceNM  float64
	CreatedAt   time.Time
	Waypoints   []Waypoint
}

// Waypoint is one <wp> of a stored route. Runway waypoints carry the
// airport in ICAO and the runway in Ident.
type Waypoint struct {
	Sequence   int
	Kind       string
	Role       string // "departure" or "destination" for runway waypoints.
	Ident      string
	ICAO       string
	Longitude  float64
	Latitude   float64
	AltitudeFt int
}

// Idents lists the identifiers of the basic waypoints in order.
func (r *Route) Idents() []string {
	var out []string
	for _, wp := range r.Waypoints {
		if wp.Kind == KindBasic {
			out = append(out, wp.Ident)
		}
	}
	return out
}

// FromResult builds a catalog route from a finished conversion.
func FromResult(name, input, output string, res *route.Result) Route {
	r := Route{
		Name:       name,
		Input:      input,
		Output:     output,
		Truncated:  res.Truncated(),
		Dropped:    len(res.Dropped),
		DistanceNM: res.DistanceNM(),
		CreatedAt:  time.Now().UTC(),
	}
	if res.Departure != nil {
		r.Departure = res.Departure.Airport.String()
		r.Waypoints = append(r.Waypoints, airportWaypoint(*res.Departure))
	}
	for _, wp := range res.Waypoints {
		r.Waypoints = append(r.Waypoints, Waypoint{
			Sequence:   int(wp.Sequence),
			Kind:       KindBasic,
			Ident:      wp.Ident,
			Longitude:  wp.Longitude,
			Latitude:   wp.Latitude,
			AltitudeFt: int(wp.AltitudeFt),
		})
	}
	if res.Destination != nil {
		r.Destination = res.Destination.Airport.String()
		r.Waypoints = append(r.Waypoints, airportWaypoint(*res.Destination))
	}
	return r
}

func airportWaypoint(wp route.AirportWaypoint) Waypoint {
	return Waypoint{
		Sequence: int(wp.Sequence),
		Kind:     KindRunway,
		Role:     wp.Role.String(),
		Ident:    wp.Airport.Runway,
		ICAO:     wp.Airport.ICAO,
	}
}

// Catalog stores converted routes.
type Catalog interface {
	// SaveRoute stores r with its waypoints and returns the new route ID.
	SaveRoute(ctx context.Context, r Route) (int64, error)
	// ListRoutes returns the most recent routes first, without waypoints.
	ListRoutes(ctx context.Context, limit int) ([]Route, error)
	// GetRoute returns a route with its waypoints, or nil if there is none
	// with that ID.
	GetRoute(ctx context.Context, id int64) (*Route, error)
	Close() error
}

// Catalog drivers.
const (
	DriverNone     = ""
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// CatalogConfig selects and configures the route catalog.
type CatalogConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"` // SQLite database file.
	Postgres PostgresConfig `yaml:"postgres"`
}

// DefaultCatalogConfig returns a disabled catalog with local development
// settings for PostgreSQL.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Path: "kml2fgfp.db",
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "kml2fgfp",
			User:     "kml2fgfp",
			Password: "kml2fgfp",
		},
	}
}

// Open opens the catalog selected by cfg.Driver and creates its schema.
// It returns nil, nil when no driver is configured.
func Open(ctx context.Context, cfg CatalogConfig) (Catalog, error) {
	switch cfg.Driver {
	case DriverNone:
		return nil, nil
	case DriverSQLite:
		return OpenSQLite(cfg.Path)
	case DriverPostgres:
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := pg.CreateSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		return pg, nil
	}
	return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
}
