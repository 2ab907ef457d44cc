package kml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Reader adapts an encoding/xml decoder to the event Source interface.
type Reader struct {
	dec     *xml.Decoder
	pending *Event
	done    bool
}

// NewReader returns a Reader over r. Documents declaring a non UTF-8
// encoding are transcoded on the fly.
func NewReader(r io.Reader) *Reader {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	return &Reader{dec: dec}
}

// Next returns the next event of interest. Character data up to the next
// element boundary is joined into one Text event, so text split by
// comments or CDATA sections arrives whole. Whitespace-only text,
// comments, processing instructions and directives are skipped.
func (r *Reader) Next() (Event, bool) {
	if r.pending != nil {
		ev := *r.pending
		r.pending = nil
		return ev, true
	}
	if r.done {
		return Event{}, false
	}

	var text strings.Builder
	for {
		tok, err := r.dec.Token()
		if err != nil {
			r.done = true
			if err == io.EOF {
				return r.flush(&text, Event{}, false)
			}
			return r.flush(&text, Failure(err), true)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			ev := Start(qualifiedName(t.Name))
			for _, a := range t.Attr {
				ev.Attrs = append(ev.Attrs, Attr{Name: qualifiedName(a.Name), Value: a.Value})
			}
			return r.flush(&text, ev, true)
		case xml.EndElement:
			return r.flush(&text, End(qualifiedName(t.Name)), true)
		case xml.CharData:
			text.Write(t)
		}
	}
}

// flush returns the collected text, holding ev back for the next call, or
// ev itself when there is no text worth reporting.
func (r *Reader) flush(text *strings.Builder, ev Event, ok bool) (Event, bool) {
	if strings.TrimSpace(text.String()) == "" {
		return ev, ok
	}
	if ok {
		r.pending = &ev
	}
	return Chars(text.String()), true
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// Summary condenses a read error into a single line suitable for a
// diagnostic message.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	var syntax *xml.SyntaxError
	if errors.As(err, &syntax) {
		return fmt.Sprintf("malformed document at line %d: %s", syntax.Line, syntax.Msg)
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return "malformed document: " + msg
}
