package route

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	gokml "github.com/twpayne/go-kml"

	"kml2fgfp/internal/kml"
)

// fixDoc renders placemarks into a KML document the way SimBrief exports
// them: name, styleUrl and a Point.
func fixDoc(t *testing.T, placemarks ...gokml.Element) string {
	t.Helper()
	var buf bytes.Buffer
	doc := gokml.KML(gokml.Document(append([]gokml.Element{gokml.Name("SAEZ-SABE")}, placemarks...)...))
	if err := doc.WriteIndent(&buf, "", "  "); err != nil {
		t.Fatalf("write kml: %v", err)
	}
	return buf.String()
}

func fix(name, style string, lon, lat, alt float64) gokml.Element {
	return gokml.Placemark(
		gokml.Name(name),
		gokml.StyleURL(style),
		gokml.Point(gokml.Coordinates(gokml.Coordinate{Lon: lon, Lat: lat, Alt: alt})),
	)
}

func convert(t *testing.T, c *Converter, doc string) (*Result, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	res, err := c.Convert(kml.NewReader(strings.NewReader(doc)), sink)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	return res, sink
}

func TestConvert_SingleFix(t *testing.T) {
	doc := fixDoc(t, fix("EZE11", FixMark, -58.594239, -34.811897, 823))
	res, sink := convert(t, &Converter{}, doc)

	if strings.Join(sink.calls, " ") != "open wp:EZE11 close" {
		t.Errorf("calls = %v", sink.calls)
	}
	if len(res.Waypoints) != 1 {
		t.Fatalf("got %d waypoints, want 1", len(res.Waypoints))
	}
	wp := res.Waypoints[0]
	if wp.Sequence != 0 || wp.Ident != "EZE11" || wp.AltitudeFt != 2700 {
		t.Errorf("waypoint = %+v", wp)
	}
	if math.Abs(wp.Longitude+58.594239) > 1e-9 || math.Abs(wp.Latitude+34.811897) > 1e-9 {
		t.Errorf("position = %v,%v", wp.Longitude, wp.Latitude)
	}
	if res.Departure != nil || res.Destination != nil || res.Truncated() {
		t.Errorf("unexpected result fields: %+v", res)
	}
}

func TestConvert_DepartureOnly(t *testing.T) {
	doc := fixDoc(t, fix("SAEZ", FixMark, -58.5358, -34.8222, 20))
	c := &Converter{Departure: &Airport{ICAO: "SAEZ", Runway: "11"}}
	res, sink := convert(t, c, doc)

	if strings.Join(sink.calls, " ") != "open airport:departure close" {
		t.Errorf("calls = %v", sink.calls)
	}
	if res.Departure == nil || res.Departure.Sequence != 0 {
		t.Fatalf("Departure = %+v, want slot 0", res.Departure)
	}
	if res.Departure.Airport.ICAO != "SAEZ" || res.Departure.Airport.Runway != "11" {
		t.Errorf("Departure airport = %+v", res.Departure.Airport)
	}
	if len(res.Waypoints) != 0 || res.DroppedBy(DropAirport) != 1 {
		t.Errorf("waypoints = %+v, dropped = %+v", res.Waypoints, res.Dropped)
	}
	if res.Len() != 1 {
		t.Errorf("Len() = %d, want 1", res.Len())
	}
}

func TestConvert_FullRoute(t *testing.T) {
	doc := fixDoc(t,
		fix("SAEZ", FixMark, -58.5358, -34.8222, 20),
		fix("EZE11", FixMark, -58.594239, -34.811897, 823),
		fix("SAEZ-SABE", "#RouteMark", -58.5, -34.7, 1000),
		fix("DORVO", FixMark, -58.3, -34.6, 3800.2),
		fix("SABE", FixMark, -58.4156, -34.5592, 5),
	)
	c := &Converter{
		Departure:   &Airport{ICAO: "SAEZ", Runway: "11"},
		Destination: &Airport{ICAO: "SABE", Runway: "13"},
	}
	res, sink := convert(t, c, doc)

	want := "open airport:departure wp:EZE11 wp:DORVO airport:destination close"
	if got := strings.Join(sink.calls, " "); got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}
	for i, wp := range res.Waypoints {
		if wp.Sequence != uint(i+1) {
			t.Errorf("%s sequence = %d, want %d", wp.Ident, wp.Sequence, i+1)
		}
	}
	if res.Destination == nil || res.Destination.Sequence != 3 {
		t.Errorf("Destination = %+v, want slot 3", res.Destination)
	}
	if res.DroppedBy(DropAirport) != 2 || res.DroppedBy(DropNotFix) != 1 {
		t.Errorf("dropped = %+v", res.Dropped)
	}
	if res.Len() != 4 {
		t.Errorf("Len() = %d, want 4", res.Len())
	}
}

func TestConvert_MalformedCoordinatesContinue(t *testing.T) {
	doc := `<kml xmlns="http://www.opengis.net/kml/2.2"><Document>
<Placemark><name>EZE11</name><styleUrl>#FixMark</styleUrl><Point><coordinates>-58.594239,-34.811897</coordinates></Point></Placemark>
<Placemark><name>DORVO</name><styleUrl>#FixMark</styleUrl><Point><coordinates>-58.3,-34.6,3800.2</coordinates></Point></Placemark>
</Document></kml>`

	var logs bytes.Buffer
	c := &Converter{Logger: slog.New(slog.NewTextHandler(&logs, nil))}
	res, _ := convert(t, c, doc)

	if len(res.Waypoints) != 1 || res.Waypoints[0].Ident != "DORVO" || res.Waypoints[0].Sequence != 0 {
		t.Fatalf("waypoints = %+v, want DORVO at 0", res.Waypoints)
	}
	if res.DroppedBy(DropBadCoordinates) != 1 {
		t.Errorf("dropped = %+v", res.Dropped)
	}
	out := logs.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "ident=EZE11") {
		t.Errorf("missing drop warning in log output:\n%s", out)
	}
}

func TestConvert_ReadErrorCompletesRoute(t *testing.T) {
	doc := `<kml xmlns="http://www.opengis.net/kml/2.2"><Document>
<Placemark><name>EZE11</name><styleUrl>#FixMark</styleUrl><Point><coordinates>-58.594239,-34.811897,823</coordinates></Point></Placemark>
<Placemark><name>DORVO</name><styleUrl>#Fix`

	var logs bytes.Buffer
	c := &Converter{
		Destination: &Airport{ICAO: "SABE"},
		Logger:      slog.New(slog.NewTextHandler(&logs, nil)),
	}
	res, sink := convert(t, c, doc)

	if !res.Truncated() {
		t.Fatal("expected truncated result")
	}
	want := "open wp:EZE11 airport:destination close"
	if got := strings.Join(sink.calls, " "); got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}
	if res.Destination.Sequence != 1 {
		t.Errorf("destination sequence = %d, want 1", res.Destination.Sequence)
	}
	if !strings.Contains(logs.String(), "malformed document") {
		t.Errorf("missing read error summary:\n%s", logs.String())
	}
}

func TestConvert_SinkErrorAborts(t *testing.T) {
	doc := fixDoc(t,
		fix("EZE11", FixMark, -58.594239, -34.811897, 823),
		fix("DORVO", FixMark, -58.3, -34.6, 3800.2),
	)
	sink := &recordingSink{failAfter: 1}
	_, err := (&Converter{}).Convert(kml.NewReader(strings.NewReader(doc)), sink)
	if !errors.Is(err, errSinkFull) {
		t.Fatalf("err = %v, want errSinkFull", err)
	}
	for _, call := range sink.calls {
		if call == "close" {
			t.Error("route closed after a write failure")
		}
	}
}

func TestConvert_FreshStatePerCall(t *testing.T) {
	doc := fixDoc(t, fix("EZE11", FixMark, -58.594239, -34.811897, 823))
	c := &Converter{}
	for i := 0; i < 2; i++ {
		res, _ := convert(t, c, doc)
		if len(res.Waypoints) != 1 || res.Waypoints[0].Sequence != 0 {
			t.Fatalf("run %d: waypoints = %+v", i, res.Waypoints)
		}
	}
}

func TestResult_DistanceNM(t *testing.T) {
	res := &Result{Waypoints: []Waypoint{
		{Ident: "A", Longitude: 0, Latitude: 0},
		{Ident: "B", Longitude: 0, Latitude: 1},
		{Ident: "C", Longitude: 0, Latitude: 2},
	}}
	// One degree of arc is roughly 60 nm.
	if got := res.DistanceNM(); math.Abs(got-120) > 1 {
		t.Errorf("DistanceNM() = %v, want ~120", got)
	}
	if got := (&Result{}).DistanceNM(); got != 0 {
		t.Errorf("empty DistanceNM() = %v, want 0", got)
	}
}

func TestConvert_SplitText(t *testing.T) {
	tests := []struct {
		name   string
		ident  string
		coords string
	}{
		{"comment in name", "EZE<!--fix-->11", "-58.594239,-34.811897,823"},
		{"cdata in coordinates", "EZE11", "-58.594239,<![CDATA[-34.811897]]>,823"},
		{"comment in coordinates", "EZE11", "-58.594239,-34.811897<!-- m -->,823"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `<kml xmlns="http://www.opengis.net/kml/2.2"><Document><Placemark>` +
				`<name>` + tt.ident + `</name><styleUrl>#FixMark</styleUrl>` +
				`<Point><coordinates>` + tt.coords + `</coordinates></Point>` +
				`</Placemark></Document></kml>`
			res, _ := convert(t, &Converter{}, doc)

			if len(res.Dropped) != 0 {
				t.Fatalf("dropped = %+v", res.Dropped)
			}
			if len(res.Waypoints) != 1 {
				t.Fatalf("got %d waypoints, want 1", len(res.Waypoints))
			}
			wp := res.Waypoints[0]
			if wp.Ident != "EZE11" || wp.AltitudeFt != 2700 || math.Abs(wp.Latitude+34.811897) > 1e-9 {
				t.Errorf("waypoint = %+v", wp)
			}
		})
	}
}
