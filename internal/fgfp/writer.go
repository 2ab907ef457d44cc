// Package fgfp writes and reads FlightGear flight plans (.fgfp), the
// PropertyList XML format of the FlightGear route manager.
package fgfp

import (
	"encoding/xml"
	"errors"
	"io"
)

// Property types understood by the FlightGear property tree.
const (
	TypeString = "string"
	TypeDouble = "double"
	TypeInt    = "int"
	TypeBool   = "bool"
)

var errNoOpenElement = errors.New("fgfp: close without open element")

// Writer streams nested elements to an output. Output is buffered, so an
// error from the underlying writer surfaces on the call that fills the
// buffer or at the latest on Flush, not necessarily on the element that
// failed to write.
type Writer struct {
	enc   *xml.Encoder
	stack []string
}

// NewWriter returns a Writer that indents with tabs.
func NewWriter(w io.Writer) *Writer {
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	return &Writer{enc: enc}
}

// Declaration writes the <?xml ...?> header. It must come first.
func (w *Writer) Declaration() error {
	return w.enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)})
}

// Open starts an element.
func (w *Writer) Open(name string, attrs ...xml.Attr) error {
	if err := w.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}); err != nil {
		return err
	}
	w.stack = append(w.stack, name)
	return nil
}

// Close ends the innermost open element.
func (w *Writer) Close() error {
	if len(w.stack) == 0 {
		return errNoOpenElement
	}
	name := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	return w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

// Text writes escaped character data.
func (w *Writer) Text(s string) error {
	return w.enc.EncodeToken(xml.CharData(s))
}

// Property writes a typed leaf: <name type="typ">value</name>.
func (w *Writer) Property(name, typ, value string) error {
	if err := w.Open(name, attr("type", typ)); err != nil {
		return err
	}
	if err := w.Text(value); err != nil {
		return err
	}
	return w.Close()
}

// Flush writes any buffered output.
func (w *Writer) Flush() error {
	return w.enc.Flush()
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}
