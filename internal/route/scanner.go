package route

import (
	"log/slog"

	"kml2fgfp/internal/kml"
	"kml2fgfp/internal/logging"
)

// Sink receives the route as it is produced. The FlightGear emitter is the
// production implementation.
type Sink interface {
	OpenRoute() error
	WriteAirport(wp AirportWaypoint) error
	WriteWaypoint(wp Waypoint) error
	CloseRoute() error
}

// Scanner folds document events into route waypoints. Accepted waypoints
// are numbered and written to the sink as their placemark closes.
type Scanner struct {
	sink     Sink
	log      *slog.Logger
	airports []string

	state  State
	wp     Waypoint
	drop   bool
	reason DropReason
	cause  error
	next   uint

	accepted []Waypoint
	dropped  []Drop
}

// NewScanner returns a scanner numbering waypoints from first. Placemarks
// named after one of the given airports are dropped, since those airports
// are written as runway waypoints.
func NewScanner(sink Sink, first uint, log *slog.Logger, airports ...*Airport) *Scanner {
	if log == nil {
		log = logging.Discard()
	}
	s := &Scanner{sink: sink, log: log, next: first}
	for _, a := range airports {
		if a != nil {
			s.airports = append(s.airports, a.ICAO)
		}
	}
	return s
}

// State returns the current scan state.
func (s *Scanner) State() State { return s.state }

// Next returns the sequence number the next accepted waypoint will get.
func (s *Scanner) Next() uint { return s.next }

// Accepted returns the waypoints emitted so far.
func (s *Scanner) Accepted() []Waypoint { return s.accepted }

// Dropped returns the placemarks discarded so far.
func (s *Scanner) Dropped() []Drop { return s.dropped }

// Handle advances the scanner by one event. The only error returned is a
// sink write failure.
func (s *Scanner) Handle(ev kml.Event) error {
	switch ev.Kind {
	case kml.StartElement:
		s.open(ev.LocalName())
	case kml.Text:
		s.text(ev.Text)
	case kml.EndElement:
		return s.close(ev.LocalName())
	}
	return nil
}

func (s *Scanner) open(name string) {
	switch {
	case s.state == AwaitingPlacemarkOpen && name == placemarkTag:
		s.reset()
		s.state = AwaitingNameOpen
	case s.state == AwaitingNameOpen && name == nameTag:
		s.state = AwaitingNameText
	case s.state == AwaitingStyleURLOpen && name == styleURLTag:
		s.state = AwaitingStyleURLText
	case s.state == AwaitingCoordinatesOpen && name == coordinatesTag:
		s.state = AwaitingCoordinatesText
	}
}

func (s *Scanner) text(content string) {
	switch s.state {
	case AwaitingNameText:
		s.wp.Ident = content
		s.state = AwaitingNameClose
		for _, icao := range s.airports {
			if content == icao {
				s.markDropped(DropAirport, nil)
				s.state = AwaitingPlacemarkClose
				return
			}
		}

	case AwaitingStyleURLText:
		if content != FixMark {
			s.markDropped(DropNotFix, nil)
			s.state = AwaitingPlacemarkClose
			return
		}
		s.state = AwaitingStyleURLClose

	case AwaitingCoordinatesText:
		lon, lat, meters, err := ParseCoordinates(content)
		if err != nil {
			s.log.Warn("dropping waypoint", slog.String("ident", s.wp.Ident), slog.Any("err", err))
			s.markDropped(DropBadCoordinates, err)
		} else {
			s.wp.Longitude = lon
			s.wp.Latitude = lat
			s.wp.AltitudeFt = MetersToFeet(meters)
		}
		s.state = AwaitingCoordinatesClose
	}
}

func (s *Scanner) close(name string) error {
	// An empty element (<name/>) closes while its text is still awaited.
	if want, ok := s.state.textElement(); ok && name == want {
		s.text("")
	}

	switch {
	case s.state == AwaitingNameClose && name == nameTag:
		s.state = AwaitingStyleURLOpen
	case s.state == AwaitingStyleURLClose && name == styleURLTag:
		s.state = AwaitingCoordinatesOpen
	case s.state == AwaitingCoordinatesClose && name == coordinatesTag:
		s.state = AwaitingPlacemarkClose
	case s.state.inPlacemark() && name == placemarkTag:
		if s.state != AwaitingPlacemarkClose {
			s.markDropped(DropIncomplete, nil)
		}
		return s.finish()
	}
	return nil
}

// finish commits or discards the current placemark and rearms the scanner.
func (s *Scanner) finish() error {
	defer s.reset()

	if s.drop {
		s.dropped = append(s.dropped, Drop{Ident: s.wp.Ident, Reason: s.reason, Err: s.cause})
		s.log.Debug("placemark dropped", slog.String("ident", s.wp.Ident), slog.String("reason", s.reason.String()))
		return nil
	}

	s.wp.Sequence = s.next
	if err := s.sink.WriteWaypoint(s.wp); err != nil {
		return err
	}
	s.next++
	s.accepted = append(s.accepted, s.wp)
	return nil
}

// markDropped sets the drop flag. The first reason sticks.
func (s *Scanner) markDropped(reason DropReason, cause error) {
	if s.drop {
		return
	}
	s.drop = true
	s.reason = reason
	s.cause = cause
}

func (s *Scanner) reset() {
	s.state = AwaitingPlacemarkOpen
	s.wp = Waypoint{}
	s.drop = false
	s.reason = 0
	s.cause = nil
}
