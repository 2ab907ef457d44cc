package fgfp

import (
	"strconv"

	"kml2fgfp/internal/route"
)

// Emitter writes route waypoints as <wp> elements. It implements
// route.Sink.
type Emitter struct {
	w *Writer
}

// NewEmitter returns an Emitter writing to w.
func NewEmitter(w *Writer) *Emitter {
	return &Emitter{w: w}
}

func (e *Emitter) OpenRoute() error {
	return e.w.Open("route")
}

func (e *Emitter) CloseRoute() error {
	return e.w.Close()
}

// WriteWaypoint writes a basic waypoint: type, ident, lon, lat, altitude-ft.
func (e *Emitter) WriteWaypoint(wp route.Waypoint) error {
	if err := e.openWaypoint(wp.Sequence); err != nil {
		return err
	}
	props := []struct{ name, typ, value string }{
		{"type", TypeString, "basic"},
		{"ident", TypeString, wp.Ident},
		{"lon", TypeDouble, formatCoordinate(wp.Longitude)},
		{"lat", TypeDouble, formatCoordinate(wp.Latitude)},
		{"altitude-ft", TypeInt, strconv.FormatUint(uint64(wp.AltitudeFt), 10)},
	}
	for _, p := range props {
		if err := e.w.Property(p.name, p.typ, p.value); err != nil {
			return err
		}
	}
	return e.w.Close()
}

// WriteAirport writes a runway waypoint: type, departure or approach flag,
// the runway as ident when known, then the airport ICAO.
func (e *Emitter) WriteAirport(wp route.AirportWaypoint) error {
	if err := e.openWaypoint(wp.Sequence); err != nil {
		return err
	}
	if err := e.w.Property("type", TypeString, "runway"); err != nil {
		return err
	}
	flag := "departure"
	if wp.Role == route.Destination {
		flag = "approach"
	}
	if err := e.w.Property(flag, TypeBool, "true"); err != nil {
		return err
	}
	if wp.Airport.Runway != "" {
		if err := e.w.Property("ident", TypeString, wp.Airport.Runway); err != nil {
			return err
		}
	}
	if err := e.w.Property("icao", TypeString, wp.Airport.ICAO); err != nil {
		return err
	}
	return e.w.Close()
}

// openWaypoint starts a <wp>. The first waypoint carries no n attribute.
func (e *Emitter) openWaypoint(seq uint) error {
	if seq == 0 {
		return e.w.Open("wp")
	}
	return e.w.Open("wp", attr("n", strconv.FormatUint(uint64(seq), 10)))
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
