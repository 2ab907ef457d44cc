package route

import (
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"kml2fgfp/internal/kml"
	"kml2fgfp/internal/logging"
)

const metersPerNM = 1852.0

// Converter runs one KML to route conversion. A Converter holds no state
// between calls; every Convert starts from a fresh scanner.
type Converter struct {
	Departure   *Airport
	Destination *Airport
	Logger      *slog.Logger
}

// Result summarises a conversion.
type Result struct {
	Departure   *AirportWaypoint
	Waypoints   []Waypoint
	Destination *AirportWaypoint
	Dropped     []Drop
	ReadErr     error // Set when the document could not be read to the end.
}

// Truncated reports whether scanning stopped early on a read error.
func (r *Result) Truncated() bool {
	return r.ReadErr != nil
}

// Len returns the number of waypoints written, airports included.
func (r *Result) Len() int {
	n := len(r.Waypoints)
	if r.Departure != nil {
		n++
	}
	if r.Destination != nil {
		n++
	}
	return n
}

// DroppedBy counts the dropped placemarks with the given reason.
func (r *Result) DroppedBy(reason DropReason) int {
	n := 0
	for _, d := range r.Dropped {
		if d.Reason == reason {
			n++
		}
	}
	return n
}

// DistanceNM is the great-circle length of the scanned waypoints in
// nautical miles. Runway waypoints have no position and do not count.
func (r *Result) DistanceNM() float64 {
	var total float64
	for i := 1; i < len(r.Waypoints); i++ {
		a := orb.Point{r.Waypoints[i-1].Longitude, r.Waypoints[i-1].Latitude}
		b := orb.Point{r.Waypoints[i].Longitude, r.Waypoints[i].Latitude}
		total += geo.DistanceHaversine(a, b)
	}
	return total / metersPerNM
}

// Convert writes the route found in src to sink: the departure runway, the
// scanned waypoints, then the destination runway. A read error ends the
// scan but the route is still completed. Sink errors abort the conversion.
func (c *Converter) Convert(src kml.Source, sink Sink) (*Result, error) {
	log := c.Logger
	if log == nil {
		log = logging.Discard()
	}

	if err := sink.OpenRoute(); err != nil {
		return nil, fmt.Errorf("open route: %w", err)
	}

	res := &Result{}
	var first uint
	if wp := Synthesize(c.Departure, Departure, 0); wp != nil {
		if err := sink.WriteAirport(*wp); err != nil {
			return nil, fmt.Errorf("write departure: %w", err)
		}
		res.Departure = wp
		first = 1
	}

	sc := NewScanner(sink, first, log, c.Departure, c.Destination)
	for {
		ev, ok := src.Next()
		if !ok {
			break
		}
		if ev.Kind == kml.ReadError {
			res.ReadErr = ev.Err
			log.Error("stopped reading input", slog.String("err", kml.Summary(ev.Err)))
			break
		}
		if err := sc.Handle(ev); err != nil {
			return nil, fmt.Errorf("write waypoint: %w", err)
		}
	}
	res.Waypoints = sc.Accepted()
	res.Dropped = sc.Dropped()

	if wp := Synthesize(c.Destination, Destination, sc.Next()); wp != nil {
		if err := sink.WriteAirport(*wp); err != nil {
			return nil, fmt.Errorf("write destination: %w", err)
		}
		res.Destination = wp
	}

	if err := sink.CloseRoute(); err != nil {
		return nil, fmt.Errorf("close route: %w", err)
	}

	log.Debug("route converted",
		slog.Int("waypoints", res.Len()),
		slog.Int("dropped", len(res.Dropped)),
		slog.Bool("truncated", res.Truncated()))
	return res, nil
}
