// Package route extracts a FlightGear route from the placemarks of a KML
// document.
package route

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FeetPerMeter converts KML altitudes (meters) to flight-plan feet.
const FeetPerMeter = 3.280839895

// FixMark is the styleUrl that marks a placemark as a navigable route fix.
// Anything else (#RouteMark, airport markers, ...) is annotation.
const FixMark = "#FixMark"

// Waypoint is a route point built from one accepted placemark.
type Waypoint struct {
	Sequence   uint // Position among emitted waypoints, assigned on commit.
	Ident      string
	Longitude  float64
	Latitude   float64
	AltitudeFt uint // Rounded to the nearest 100 ft.
}

// MaxAltitudeFt is the highest altitude a waypoint can carry.
const MaxAltitudeFt = math.MaxUint32 / 100 * 100

// ErrTooFewTokens is returned for coordinates with less than lon,lat,alt.
var ErrTooFewTokens = errors.New("expected lon,lat,alt")

// ParseCoordinates parses a KML "lon,lat,alt" tuple, altitude in meters.
func ParseCoordinates(s string) (lon, lat, meters float64, err error) {
	tokens := strings.Split(s, ",")
	if len(tokens) < 3 {
		return 0, 0, 0, fmt.Errorf("%w, got %d value(s) in %q", ErrTooFewTokens, len(tokens), strings.TrimSpace(s))
	}

	var values [3]float64
	for i := range values {
		tok := strings.TrimSpace(tokens[i])
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, 0, 0, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, 0, fmt.Errorf("non-finite value %q", tok)
		}
		values[i] = v
	}
	if values[2]*FeetPerMeter > MaxAltitudeFt {
		return 0, 0, 0, fmt.Errorf("altitude %g m out of range", values[2])
	}
	return values[0], values[1], values[2], nil
}

// MetersToFeet converts an altitude in meters to feet, rounded to the
// nearest 100 ft so it lines up with flight-plan step altitudes.
// Altitudes below sea level clamp to zero and altitudes above
// MaxAltitudeFt clamp to MaxAltitudeFt.
func MetersToFeet(meters float64) uint {
	feet := math.Round(meters*FeetPerMeter/100) * 100
	if feet <= 0 {
		return 0
	}
	if feet >= MaxAltitudeFt {
		return MaxAltitudeFt
	}
	return uint(feet)
}
