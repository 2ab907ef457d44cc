// Package main exports a stored route, or an existing .fgfp flight plan,
// as KML. The output uses the same #FixMark placemarks as a SimBrief
// export, so it can be reviewed in Google Earth and fed back to kml2fgfp.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/twpayne/go-kml"

	"kml2fgfp/internal/config"
	"kml2fgfp/internal/fgfp"
	"kml2fgfp/internal/route"
	"kml2fgfp/internal/storage"
)

var routeColor = color.RGBA{R: 0xff, G: 0x8c, A: 0xff}

// fix is one positioned waypoint of the exported route.
type fix struct {
	Ident      string
	Longitude  float64
	Latitude   float64
	AltitudeFt int
}

func main() {
	configPath := flag.String("config", "", "kml2fgfp YAML configuration (catalog section)")
	catalogPath := flag.String("catalog", "", "SQLite route catalog")
	id := flag.Int64("id", 0, "catalog route ID to export")
	planPath := flag.String("plan", "", "export this .fgfp flight plan instead of a catalog route")
	output := flag.String("output", "", "Output KML file (default: stdout)")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	var (
		name  string
		fixes []fix
		err   error
	)
	switch {
	case *planPath != "":
		name, fixes, err = loadPlan(*planPath)
	case *id > 0:
		name, fixes, err = loadRoute(context.Background(), *configPath, *catalogPath, *id)
	default:
		fmt.Fprintln(os.Stderr, "Either -plan or -id is required")
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading route: %v\n", err)
		os.Exit(1)
	}

	if len(fixes) == 0 {
		fmt.Fprintf(os.Stderr, "Route %q has no positioned waypoints\n", name)
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

	if err := routeKML(name, fixes).WriteIndent(w, "", "  "); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing KML: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Exported %d waypoints of %s\n", len(fixes), name)
	}
}

// routeKML builds a document with one #FixMark placemark per fix and a
// #RouteMark line through all of them. Altitudes are written in meters;
// go-kml leaves out an altitude of zero.
func routeKML(name string, fixes []fix) *kml.CompoundElement {
	fixStyle := kml.SharedStyle("FixMark",
		kml.IconStyle(
			kml.Scale(0.8),
			kml.Icon(kml.Href("http://maps.google.com/mapfiles/kml/shapes/triangle.png")),
		),
	)
	routeStyle := kml.SharedStyle("RouteMark",
		kml.LineStyle(kml.Color(routeColor), kml.Width(3)),
	)

	children := []kml.Element{
		kml.Name(name),
		fixStyle,
		routeStyle,
	}

	line := make([]kml.Coordinate, 0, len(fixes))
	for _, f := range fixes {
		c := kml.Coordinate{Lon: f.Longitude, Lat: f.Latitude, Alt: float64(f.AltitudeFt) / route.FeetPerMeter}
		line = append(line, c)
		children = append(children, kml.Placemark(
			kml.Name(f.Ident),
			kml.StyleURL(fixStyle.URL()),
			kml.Point(kml.AltitudeMode(kml.AltitudeModeAbsolute), kml.Coordinates(c)),
		))
	}
	children = append(children, kml.Placemark(
		kml.Name(name),
		kml.StyleURL(routeStyle.URL()),
		kml.LineString(kml.AltitudeMode(kml.AltitudeModeAbsolute), kml.Coordinates(line...)),
	))

	return kml.KML(kml.Document(children...))
}

func loadRoute(ctx context.Context, configPath, catalogPath string, id int64) (string, []fix, error) {
	cfg := storage.CatalogConfig{Driver: storage.DriverSQLite, Path: catalogPath}
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return "", nil, err
		}
		cfg = c.Catalog
	}

	cat, err := storage.Open(ctx, cfg)
	if err != nil {
		return "", nil, err
	}
	if cat == nil {
		return "", nil, fmt.Errorf("no catalog configured")
	}
	defer cat.Close()

	r, err := cat.GetRoute(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if r == nil {
		return "", nil, fmt.Errorf("route %d not found", id)
	}
	return r.Name, routeFixes(r), nil
}

func routeFixes(r *storage.Route) []fix {
	var fixes []fix
	for _, wp := range r.Waypoints {
		if wp.Kind != storage.KindBasic {
			continue
		}
		fixes = append(fixes, fix{Ident: wp.Ident, Longitude: wp.Longitude, Latitude: wp.Latitude, AltitudeFt: wp.AltitudeFt})
	}
	return fixes
}

func loadPlan(path string) (string, []fix, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	d, err := fgfp.ReadPlan(f)
	if err != nil {
		return "", nil, err
	}

	name := path
	if d.Plan.Departure != nil && d.Plan.Destination != nil {
		name = d.Plan.Departure.ICAO + "-" + d.Plan.Destination.ICAO
	}
	fixes := make([]fix, 0, len(d.Waypoints))
	for _, wp := range d.Waypoints {
		fixes = append(fixes, fix{Ident: wp.Ident, Longitude: wp.Longitude, Latitude: wp.Latitude, AltitudeFt: int(wp.AltitudeFt)})
	}
	return name, fixes, nil
}
