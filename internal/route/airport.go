package route

import (
	"fmt"
	"regexp"
	"strings"
)

var icaoRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{3}$`)

// Airport is a departure or destination airport given on the command line.
type Airport struct {
	ICAO   string
	Runway string // Empty when no runway was given.
}

func (a Airport) String() string {
	if a.Runway == "" {
		return a.ICAO
	}
	return a.ICAO + "/" + a.Runway
}

// ParseAirport decodes "ICAO" or "ICAO/RUNWAY", e.g. "SAEZ/11".
func ParseAirport(code string) (Airport, error) {
	ident, runway, hasRunway := strings.Cut(strings.TrimSpace(code), "/")
	ident = strings.ToUpper(strings.TrimSpace(ident))
	runway = strings.ToUpper(strings.TrimSpace(runway))

	if !icaoRe.MatchString(ident) {
		return Airport{}, fmt.Errorf("invalid airport code %q: want a 4 character ICAO identifier", code)
	}
	if hasRunway && runway == "" {
		return Airport{}, fmt.Errorf("invalid airport code %q: empty runway", code)
	}
	return Airport{ICAO: ident, Runway: runway}, nil
}

// Role says which end of the route an airport waypoint sits on.
type Role int

const (
	Departure Role = iota
	Destination
)

func (r Role) String() string {
	if r == Departure {
		return "departure"
	}
	return "destination"
}

// AirportWaypoint is a runway waypoint synthesized from an Airport. It
// carries no coordinates; FlightGear resolves the runway on load.
type AirportWaypoint struct {
	Sequence uint
	Role     Role
	Airport  Airport
}

// Synthesize builds the runway waypoint for an airport. It returns nil when
// no airport was given.
func Synthesize(a *Airport, role Role, seq uint) *AirportWaypoint {
	if a == nil {
		return nil
	}
	return &AirportWaypoint{Sequence: seq, Role: role, Airport: *a}
}
