// Package main exports routes from the kml2fgfp catalog to CSV. Each row
// is name,departure,destination followed by the waypoint idents in order.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"

	"kml2fgfp/internal/config"
	"kml2fgfp/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "kml2fgfp YAML configuration (catalog section)")
	catalogPath := flag.String("catalog", "", "SQLite route catalog")
	limit := flag.Int("limit", 100, "Maximum number of routes to export, newest first")
	output := flag.String("output", "", "Output CSV file (default: stdout)")
	showStats := flag.Bool("stats", false, "Show statistics only, don't export")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	ctx := context.Background()

	cfg := storage.CatalogConfig{Driver: storage.DriverSQLite, Path: *catalogPath}
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = c.Catalog
	}

	cat, err := storage.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening catalog: %v\n", err)
		os.Exit(1)
	}
	if cat == nil {
		fmt.Fprintln(os.Stderr, "No catalog configured")
		os.Exit(1)
	}
	defer cat.Close()

	routes, err := loadRoutes(ctx, cat, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying routes: %v\n", err)
		os.Exit(1)
	}

	if *showStats {
		showRouteStats(os.Stdout, routes)
		return
	}

	if len(routes) == 0 {
		fmt.Fprintf(os.Stderr, "No routes found\n")
		os.Exit(0)
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = file.Close() }()
		w = file
	}

	if err := writeCSV(w, routes); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		os.Exit(1)
	}

	if *verbose && *output != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d routes to %s\n", len(routes), *output)
	}
}

// loadRoutes lists the newest routes and loads their waypoints. Routes
// are returned oldest first.
func loadRoutes(ctx context.Context, cat storage.Catalog, limit int) ([]storage.Route, error) {
	listed, err := cat.ListRoutes(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing routes: %w", err)
	}

	routes := make([]storage.Route, 0, len(listed))
	for i := len(listed) - 1; i >= 0; i-- {
		r, err := cat.GetRoute(ctx, listed[i].ID)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", listed[i].ID, err)
		}
		if r != nil {
			routes = append(routes, *r)
		}
	}
	return routes, nil
}

// writeCSV writes one row per route without a header. Rows have different
// lengths.
func writeCSV(w io.Writer, routes []storage.Route) error {
	cw := csv.NewWriter(w)
	for _, r := range routes {
		idents := r.Idents()
		row := make([]string, 0, 3+len(idents))
		row = append(row, r.Name, r.Departure, r.Destination)
		row = append(row, idents...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// showRouteStats prints a summary of the exported routes.
func showRouteStats(w io.Writer, routes []storage.Route) {
	var waypoints, dropped, truncated int
	var distance float64
	longest := -1
	for i, r := range routes {
		waypoints += len(r.Idents())
		dropped += r.Dropped
		distance += r.DistanceNM
		if r.Truncated {
			truncated++
		}
		if longest < 0 || r.DistanceNM > routes[longest].DistanceNM {
			longest = i
		}
	}

	fmt.Fprintln(w, "Route Statistics")
	fmt.Fprintln(w, "────────────────")
	fmt.Fprintf(w, "Total routes:        %d\n", len(routes))
	fmt.Fprintf(w, "Truncated routes:    %d\n", truncated)
	fmt.Fprintf(w, "Waypoints:           %d\n", waypoints)
	fmt.Fprintf(w, "Dropped placemarks:  %d\n", dropped)
	fmt.Fprintf(w, "Total distance:      %.1f nm\n", distance)
	if longest >= 0 {
		fmt.Fprintf(w, "Longest:             %s (%.1f nm)\n", routes[longest].Name, routes[longest].DistanceNM)
	}
}
