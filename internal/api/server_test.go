package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"

	"kml2fgfp/internal/fgfp"
	"kml2fgfp/internal/storage"
)

const routeKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
<Document>
	<Placemark>
		<name>SAEZ</name>
		<styleUrl>#AirportMark</styleUrl>
		<Point><coordinates>-58.5358,-34.8222,20</coordinates></Point>
	</Placemark>
	<Placemark>
		<name>EZE11</name>
		<styleUrl>#FixMark</styleUrl>
		<Point><coordinates>-58.594239,-34.811897,823</coordinates></Point>
	</Placemark>
	<Placemark>
		<name>DORVO</name>
		<styleUrl>#FixMark</styleUrl>
		<Point><coordinates>-58.3,-34.6,3800.2</coordinates></Point>
	</Placemark>
</Document>
</kml>
`

func newTestServer(t *testing.T, withCatalog bool, cfg Config) (*Server, storage.Catalog) {
	t.Helper()
	var cat storage.Catalog
	if withCatalog {
		c, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "catalog.db"))
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		t.Cleanup(func() { _ = c.Close() })
		cat = c
	}
	return NewServer(cat, fgfp.DefaultPlan(), nil, cfg), cat
}

func do(t *testing.T, s *Server, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, false, Config{})
	rec := do(t, s, http.MethodGet, "/health", "", nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestConvertEndpoint(t *testing.T) {
	s, cat := newTestServer(t, true, Config{})
	rec := do(t, s, http.MethodPost, "/convert?departure=saez/11&destination=SABE&name=eze-sabe", routeKML, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := rec.Header().Get("X-Waypoints"); got != "4" {
		t.Errorf("X-Waypoints = %q, want 4", got)
	}
	if rec.Header().Get("X-Truncated") != "" {
		t.Errorf("unexpected X-Truncated header")
	}

	d, err := fgfp.ReadPlan(rec.Body)
	if err != nil {
		t.Fatalf("response is not a flight plan: %v", err)
	}
	if d.Plan.Departure == nil || d.Plan.Departure.ICAO != "SAEZ" || d.Plan.Departure.Runway != "11" {
		t.Errorf("departure = %+v", d.Plan.Departure)
	}
	if len(d.Waypoints) != 2 {
		t.Errorf("got %d basic waypoints, want 2", len(d.Waypoints))
	}

	if rec.Header().Get("X-Route-ID") != "1" {
		t.Fatalf("X-Route-ID = %q, want 1", rec.Header().Get("X-Route-ID"))
	}
	r, err := cat.GetRoute(context.Background(), 1)
	if err != nil || r == nil {
		t.Fatalf("GetRoute: %v, %v", r, err)
	}
	if r.Name != "eze-sabe" || r.Departure != "SAEZ/11" {
		t.Errorf("stored route = %+v", r)
	}
}

func TestConvertEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		cfg    Config
		want   int
	}{
		{"bad departure", "/convert?departure=EZ", routeKML, Config{}, http.StatusBadRequest},
		{"destination only", "/convert?destination=SABE", routeKML, Config{}, http.StatusBadRequest},
		{"too large", "/convert", routeKML, Config{MaxUploadBytes: 64}, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, false, tt.cfg)
			rec := do(t, s, http.MethodPost, tt.target, tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestConvertEndpoint_Truncated(t *testing.T) {
	s, _ := newTestServer(t, false, Config{})
	doc := routeKML[:strings.Index(routeKML, "<name>DORVO")]
	rec := do(t, s, http.MethodPost, "/convert", doc, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Truncated") == "" {
		t.Error("missing X-Truncated header")
	}
	if rec.Header().Get("X-Route-ID") != "" {
		t.Error("route saved without a catalog")
	}
	if _, err := fgfp.ReadPlan(rec.Body); err != nil {
		t.Errorf("truncated conversion is not a valid plan: %v", err)
	}
}

func TestRouteEndpoints(t *testing.T) {
	s, _ := newTestServer(t, true, Config{})
	if rec := do(t, s, http.MethodPost, "/convert?departure=SAEZ/11&destination=SABE/13&name=eze-sabe", routeKML, nil); rec.Code != http.StatusOK {
		t.Fatalf("convert: status %d", rec.Code)
	}

	t.Run("list", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/routes?limit=5", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var routes []RouteResponse
		if err := json.NewDecoder(rec.Body).Decode(&routes); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(routes) != 1 || routes[0].Name != "eze-sabe" {
			t.Errorf("routes = %+v", routes)
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/routes/1", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var r RouteResponse
		if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(r.Waypoints) != 4 || r.Waypoints[1].Ident != "EZE11" || r.Destination != "SABE/13" {
			t.Errorf("route = %+v", r)
		}
	})

	t.Run("fgfp", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/routes/1/fgfp", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "eze-sabe.fgfp") {
			t.Errorf("Content-Disposition = %q", cd)
		}
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(rec.Body.Bytes()); err != nil {
			t.Fatalf("invalid XML: %v", err)
		}
		wps := doc.FindElements("/PropertyList/route/wp")
		if len(wps) != 4 {
			t.Fatalf("got %d wp elements, want 4", len(wps))
		}
		if wps[3].SelectElement("approach") == nil || wps[3].SelectElement("ident").Text() != "13" {
			t.Errorf("last waypoint is not the destination runway")
		}
		if dst := doc.FindElement("/PropertyList/destination/runway"); dst == nil || dst.Text() != "13" {
			t.Errorf("missing destination block")
		}
	})

	t.Run("not found", func(t *testing.T) {
		if rec := do(t, s, http.MethodGet, "/routes/99", "", nil); rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		if rec := do(t, s, http.MethodGet, "/routes/abc", "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		if rec := do(t, s, http.MethodGet, "/routes?limit=0", "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestRouteEndpoints_NoCatalog(t *testing.T) {
	s, _ := newTestServer(t, false, Config{})
	for _, target := range []string{"/routes", "/routes/1", "/routes/1/fgfp"} {
		if rec := do(t, s, http.MethodGet, target, "", nil); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected status 503, got %d", target, rec.Code)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := newTestServer(t, false, Config{AuthEnabled: true, APIKeys: []string{"secret"}})

	tests := []struct {
		name   string
		target string
		hdr    map[string]string
		want   int
	}{
		{"no key", "/convert", nil, http.StatusUnauthorized},
		{"wrong key", "/convert", map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
		{"header key", "/convert", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer", "/convert", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"query", "/convert?api_key=secret", nil, http.StatusOK},
		{"health is open", "/health", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodPost
			if tt.target == "/health" {
				method = http.MethodGet
			}
			rec := do(t, s, method, tt.target, routeKML, tt.hdr)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
