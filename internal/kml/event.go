// Package kml turns a KML document into a flat stream of element and text
// events for the route scanner.
package kml

import "strings"

// Kind identifies the type of a document event.
type Kind int

const (
	StartElement Kind = iota
	EndElement
	Text
	ReadError
)

func (k Kind) String() string {
	switch k {
	case StartElement:
		return "start"
	case EndElement:
		return "end"
	case Text:
		return "text"
	case ReadError:
		return "read-error"
	}
	return "unknown"
}

// Attr is a single element attribute.
type Attr struct {
	Name  string
	Value string
}

// Event is one step of the document stream. Only the fields relevant to
// Kind are set: Name and Attrs for StartElement, Name for EndElement, Text
// for Text and Err for ReadError.
type Event struct {
	Kind  Kind
	Name  string // May carry a namespace prefix: {http://www.opengis.net/kml/2.2}Placemark
	Attrs []Attr
	Text  string
	Err   error
}

// Start returns a StartElement event.
func Start(name string, attrs ...Attr) Event {
	return Event{Kind: StartElement, Name: name, Attrs: attrs}
}

// End returns an EndElement event.
func End(name string) Event {
	return Event{Kind: EndElement, Name: name}
}

// Chars returns a Text event.
func Chars(text string) Event {
	return Event{Kind: Text, Text: text}
}

// Failure returns a ReadError event.
func Failure(err error) Event {
	return Event{Kind: ReadError, Err: err}
}

// LocalName returns the event name with any namespace prefix removed.
func (e Event) LocalName() string {
	return NormalizeName(e.Name)
}

// NormalizeName strips a "{namespace-uri}" prefix from an element name.
// Names without a closing brace are returned unchanged.
func NormalizeName(name string) string {
	if i := strings.IndexByte(name, '}'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Source is a pull-based stream of document events. Next returns false once
// the document is exhausted; a ReadError event is always the last event.
type Source interface {
	Next() (Event, bool)
}
