package route

// State is what the scanner expects next inside the placemark pattern:
//
//	<Placemark>
//	   <name>EZE11</name>
//	   <styleUrl>#FixMark</styleUrl>
//	   <coordinates>-58.594239,-34.811897,823</coordinates>
//	</Placemark>
//
// The states form one cycle per placemark.
type State int

const (
	AwaitingPlacemarkOpen State = iota
	AwaitingNameOpen
	AwaitingNameText
	AwaitingNameClose
	AwaitingStyleURLOpen
	AwaitingStyleURLText
	AwaitingStyleURLClose
	AwaitingCoordinatesOpen
	AwaitingCoordinatesText
	AwaitingCoordinatesClose
	AwaitingPlacemarkClose
)

// Element names of the placemark pattern, after namespace normalization.
const (
	placemarkTag   = "Placemark"
	nameTag        = "name"
	styleURLTag    = "styleUrl"
	coordinatesTag = "coordinates"
)

func (s State) String() string {
	names := [...]string{
		"AwaitingPlacemarkOpen",
		"AwaitingNameOpen",
		"AwaitingNameText",
		"AwaitingNameClose",
		"AwaitingStyleURLOpen",
		"AwaitingStyleURLText",
		"AwaitingStyleURLClose",
		"AwaitingCoordinatesOpen",
		"AwaitingCoordinatesText",
		"AwaitingCoordinatesClose",
		"AwaitingPlacemarkClose",
	}
	if s < 0 || int(s) >= len(names) {
		return "State(?)"
	}
	return names[s]
}

// textElement returns the element whose text the state is waiting for.
func (s State) textElement() (string, bool) {
	switch s {
	case AwaitingNameText:
		return nameTag, true
	case AwaitingStyleURLText:
		return styleURLTag, true
	case AwaitingCoordinatesText:
		return coordinatesTag, true
	}
	return "", false
}

// inPlacemark reports whether a placemark is open.
func (s State) inPlacemark() bool {
	return s != AwaitingPlacemarkOpen
}

// DropReason records why a placemark did not become a waypoint.
type DropReason int

const (
	DropAirport        DropReason = iota + 1 // Duplicates a departure/destination airport.
	DropNotFix                               // styleUrl other than #FixMark.
	DropBadCoordinates                       // Unparsable or missing coordinate values.
	DropIncomplete                           // Placemark closed before the pattern completed.
)

func (r DropReason) String() string {
	switch r {
	case DropAirport:
		return "airport"
	case DropNotFix:
		return "not_fix"
	case DropBadCoordinates:
		return "bad_coordinates"
	case DropIncomplete:
		return "incomplete"
	}
	return "none"
}

// Drop describes one discarded placemark.
type Drop struct {
	Ident  string
	Reason DropReason
	Err    error // Parse failure for DropBadCoordinates.
}
