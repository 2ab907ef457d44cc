package fgfp

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"kml2fgfp/internal/route"
)

// Document is a flight plan read back from an .fgfp file.
type Document struct {
	Plan      Plan
	Airports  []route.AirportWaypoint
	Waypoints []route.Waypoint
}

// Len returns the number of <wp> elements in the route.
func (d *Document) Len() int {
	return len(d.Airports) + len(d.Waypoints)
}

// ReadPlan parses an .fgfp flight plan. Waypoint types other than basic
// and runway are skipped.
func ReadPlan(r io.Reader) (*Document, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parse flight plan: %w", err)
	}

	root := doc.SelectElement("PropertyList")
	if root == nil {
		return nil, errors.New("parse flight plan: missing PropertyList")
	}

	d := &Document{Plan: Plan{
		FlightRules: childText(root, "flight-rules"),
		FlightType:  childText(root, "flight-type"),
		Departure:   readAirport(root.SelectElement("departure")),
		Destination: readAirport(root.SelectElement("destination")),
	}}

	rt := root.SelectElement("route")
	if rt == nil {
		return d, nil
	}

	for i, el := range rt.SelectElements("wp") {
		seq, err := strconv.ParseUint(el.SelectAttrValue("n", "0"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("wp %d: bad sequence number: %w", i, err)
		}

		switch childText(el, "type") {
		case "runway":
			role := route.Departure
			if childText(el, "approach") == "true" {
				role = route.Destination
			}
			d.Airports = append(d.Airports, route.AirportWaypoint{
				Sequence: uint(seq),
				Role:     role,
				Airport:  route.Airport{ICAO: childText(el, "icao"), Runway: childText(el, "ident")},
			})

		case "basic":
			wp := route.Waypoint{Sequence: uint(seq), Ident: childText(el, "ident")}
			if wp.Longitude, err = parseFloat(el, "lon"); err != nil {
				return nil, fmt.Errorf("wp %d: %w", i, err)
			}
			if wp.Latitude, err = parseFloat(el, "lat"); err != nil {
				return nil, fmt.Errorf("wp %d: %w", i, err)
			}
			if alt := childText(el, "altitude-ft"); alt != "" {
				ft, err := strconv.ParseFloat(alt, 64)
				if err != nil {
					return nil, fmt.Errorf("wp %d: altitude-ft: %w", i, err)
				}
				if ft > 0 {
					wp.AltitudeFt = uint(ft)
				}
			}
			d.Waypoints = append(d.Waypoints, wp)
		}
	}
	return d, nil
}

func readAirport(el *etree.Element) *route.Airport {
	if el == nil {
		return nil
	}
	return &route.Airport{ICAO: childText(el, "airport"), Runway: childText(el, "runway")}
}

func childText(el *etree.Element, name string) string {
	child := el.SelectElement(name)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.Text())
}

func parseFloat(el *etree.Element, name string) (float64, error) {
	v, err := strconv.ParseFloat(childText(el, name), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
