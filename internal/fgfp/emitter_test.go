package fgfp

import (
	"bytes"
	"errors"
	"testing"

	"kml2fgfp/internal/route"
)

func emit(t *testing.T, fn func(e *Emitter) error) string {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := fn(NewEmitter(w)); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return buf.String()
}

func TestEmitter_WriteWaypoint(t *testing.T) {
	tests := []struct {
		name string
		wp   route.Waypoint
		want string
	}{
		{
			name: "first waypoint has no n",
			wp:   route.Waypoint{Sequence: 0, Ident: "EZE11", Longitude: -58.594239, Latitude: -34.811897, AltitudeFt: 2700},
			want: "<wp>\n" +
				"\t<type type=\"string\">basic</type>\n" +
				"\t<ident type=\"string\">EZE11</ident>\n" +
				"\t<lon type=\"double\">-58.594239</lon>\n" +
				"\t<lat type=\"double\">-34.811897</lat>\n" +
				"\t<altitude-ft type=\"int\">2700</altitude-ft>\n" +
				"</wp>",
		},
		{
			name: "numbered waypoint",
			wp:   route.Waypoint{Sequence: 3, Ident: "DORVO", Longitude: -58.3, Latitude: -34.6000004, AltitudeFt: 12500},
			want: "<wp n=\"3\">\n" +
				"\t<type type=\"string\">basic</type>\n" +
				"\t<ident type=\"string\">DORVO</ident>\n" +
				"\t<lon type=\"double\">-58.300000</lon>\n" +
				"\t<lat type=\"double\">-34.600000</lat>\n" +
				"\t<altitude-ft type=\"int\">12500</altitude-ft>\n" +
				"</wp>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := emit(t, func(e *Emitter) error { return e.WriteWaypoint(tt.wp) })
			if got != tt.want {
				t.Errorf("output mismatch\nwant:\n%s\ngot:\n%s", tt.want, got)
			}
		})
	}
}

func TestEmitter_WriteAirport(t *testing.T) {
	tests := []struct {
		name string
		wp   route.AirportWaypoint
		want string
	}{
		{
			name: "departure with runway",
			wp:   route.AirportWaypoint{Sequence: 0, Role: route.Departure, Airport: route.Airport{ICAO: "SAEZ", Runway: "11"}},
			want: "<wp>\n" +
				"\t<type type=\"string\">runway</type>\n" +
				"\t<departure type=\"bool\">true</departure>\n" +
				"\t<ident type=\"string\">11</ident>\n" +
				"\t<icao type=\"string\">SAEZ</icao>\n" +
				"</wp>",
		},
		{
			name: "destination without runway",
			wp:   route.AirportWaypoint{Sequence: 5, Role: route.Destination, Airport: route.Airport{ICAO: "SABE"}},
			want: "<wp n=\"5\">\n" +
				"\t<type type=\"string\">runway</type>\n" +
				"\t<approach type=\"bool\">true</approach>\n" +
				"\t<icao type=\"string\">SABE</icao>\n" +
				"</wp>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := emit(t, func(e *Emitter) error { return e.WriteAirport(tt.wp) })
			if got != tt.want {
				t.Errorf("output mismatch\nwant:\n%s\ngot:\n%s", tt.want, got)
			}
		})
	}
}

func TestEmitter_EscapesIdent(t *testing.T) {
	got := emit(t, func(e *Emitter) error {
		return e.WriteWaypoint(route.Waypoint{Sequence: 1, Ident: "A&B"})
	})
	if !bytes.Contains([]byte(got), []byte("<ident type=\"string\">A&amp;B</ident>")) {
		t.Errorf("ident not escaped:\n%s", got)
	}
}

func TestWriter_CloseWithoutOpen(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	if err := w.Close(); !errors.Is(err, errNoOpenElement) {
		t.Errorf("Close() = %v, want errNoOpenElement", err)
	}
}

func TestWriter_ErrorSurfacesByFlush(t *testing.T) {
	w := NewWriter(failingWriter{})
	err := w.Property("ident", TypeString, "EZE11")
	if err == nil {
		err = w.Flush()
	}
	if !errors.Is(err, errDiskFull) {
		t.Errorf("err = %v, want errDiskFull", err)
	}
}
