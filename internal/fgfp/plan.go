package fgfp

import (
	"fmt"
	"io"
	"log/slog"

	"kml2fgfp/internal/kml"
	"kml2fgfp/internal/route"
)

// FormatVersion is the route manager file version written in <version>.
const FormatVersion = 2

// Plan holds the flight plan settings written around the route.
type Plan struct {
	FlightRules string // "V" or "I".
	FlightType  string // ICAO flight type, "X" for other.
	Departure   *route.Airport
	Destination *route.Airport
}

// DefaultPlan returns a VFR plan of type X with no airports.
func DefaultPlan() Plan {
	return Plan{FlightRules: "V", FlightType: "X"}
}

// Convert writes a complete flight plan to out: the PropertyList header,
// the departure and destination blocks, the route read from src and the
// closing tag. Read errors in src truncate the route but still produce a
// valid file; write errors are returned.
func (p Plan) Convert(out io.Writer, src kml.Source, log *slog.Logger) (*route.Result, error) {
	w := NewWriter(out)
	if err := p.writeHeader(w); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	conv := &route.Converter{Departure: p.Departure, Destination: p.Destination, Logger: log}
	res, err := conv.Convert(src, NewEmitter(w))
	if err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close PropertyList: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	return res, nil
}

func (p Plan) writeHeader(w *Writer) error {
	if err := w.Declaration(); err != nil {
		return err
	}
	if err := w.Open("PropertyList"); err != nil {
		return err
	}

	props := []struct{ name, typ, value string }{
		{"version", TypeInt, fmt.Sprint(FormatVersion)},
		{"flight-rules", TypeString, p.FlightRules},
		{"flight-type", TypeString, p.FlightType},
		{"estimated-duration-minutes", TypeInt, "0"},
	}
	for _, prop := range props {
		if err := w.Property(prop.name, prop.typ, prop.value); err != nil {
			return err
		}
	}

	if err := writeAirport(w, "departure", p.Departure); err != nil {
		return err
	}
	return writeAirport(w, "destination", p.Destination)
}

// writeAirport writes a <departure> or <destination> block once.
func writeAirport(w *Writer, name string, a *route.Airport) error {
	if a == nil {
		return nil
	}
	if err := w.Open(name); err != nil {
		return err
	}
	if err := w.Property("airport", TypeString, a.ICAO); err != nil {
		return err
	}
	if a.Runway != "" {
		if err := w.Property("runway", TypeString, a.Runway); err != nil {
			return err
		}
	}
	return w.Close()
}

// WritePlan writes d as a complete flight plan. Route waypoints are
// written in sequence order, so a document read with ReadPlan is written
// back unchanged.
func WritePlan(out io.Writer, d *Document) error {
	w := NewWriter(out)
	if err := d.Plan.writeHeader(w); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	e := NewEmitter(w)
	if err := e.OpenRoute(); err != nil {
		return fmt.Errorf("open route: %w", err)
	}

	airports, waypoints := d.Airports, d.Waypoints
	for len(airports) > 0 || len(waypoints) > 0 {
		var err error
		if len(waypoints) == 0 || (len(airports) > 0 && airports[0].Sequence <= waypoints[0].Sequence) {
			err = e.WriteAirport(airports[0])
			airports = airports[1:]
		} else {
			err = e.WriteWaypoint(waypoints[0])
			waypoints = waypoints[1:]
		}
		if err != nil {
			return fmt.Errorf("write waypoint: %w", err)
		}
	}

	if err := e.CloseRoute(); err != nil {
		return fmt.Errorf("close route: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close PropertyList: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
