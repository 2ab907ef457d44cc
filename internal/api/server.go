// Package api serves the route catalog and on-demand conversions over
// HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kml2fgfp/internal/fgfp"
	"kml2fgfp/internal/kml"
	"kml2fgfp/internal/logging"
	"kml2fgfp/internal/route"
	"kml2fgfp/internal/storage"
)

// Config holds configuration for the API server.
type Config struct {
	Port           int      `yaml:"port"`
	AuthEnabled    bool     `yaml:"auth"`
	APIKeys        []string `yaml:"api_keys"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

// Server provides REST access to the route catalog. Without a catalog
// only conversion is available.
type Server struct {
	catalog     storage.Catalog
	plan        fgfp.Plan
	log         *slog.Logger
	port        int
	authEnabled bool
	apiKeys     map[string]bool
	maxUpload   int64
}

// NewServer creates a server. plan supplies the flight rules and type;
// its airports are ignored.
func NewServer(cat storage.Catalog, plan fgfp.Plan, log *slog.Logger, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}
	if log == nil {
		log = logging.Discard()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 8 << 20
	}
	plan.Departure, plan.Destination = nil, nil

	return &Server{
		catalog:     cat,
		plan:        plan,
		log:         log,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
		maxUpload:   maxUpload,
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)
	r.Mount("/api/v1", s.Router())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("api listening", slog.String("addr", srv.Addr), slog.Bool("auth", s.authEnabled), slog.Bool("catalog", s.catalog != nil))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Router returns the API routes for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.authEnabled {
			r.Use(s.authMiddleware)
		}
		r.Post("/convert", s.handleConvert)
		r.Get("/routes", s.handleListRoutes)
		r.Get("/routes/{id}", s.handleGetRoute)
		r.Get("/routes/{id}/fgfp", s.handleGetPlan)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware accepts a key in X-API-Key, an Authorization bearer
// token or the api_key query parameter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}
		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleConvert converts the KML request body. Query parameters:
// departure, destination (ICAO or ICAO/RUNWAY), name, and save=false to
// skip the catalog.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	plan := s.plan
	for _, p := range []struct {
		param string
		dst   **route.Airport
	}{
		{"departure", &plan.Departure},
		{"destination", &plan.Destination},
	} {
		code := q.Get(p.param)
		if code == "" {
			continue
		}
		a, err := route.ParseAirport(code)
		if err != nil {
			writeError(w, http.StatusBadRequest, p.param+": "+err.Error())
			return
		}
		*p.dst = &a
	}
	if plan.Departure == nil && plan.Destination != nil {
		writeError(w, http.StatusBadRequest, "destination requires a departure")
		return
	}

	name := q.Get("name")
	if name == "" {
		name = "upload"
	}
	log := s.log.With(slog.String("input", name), slog.String("request_id", middleware.GetReqID(r.Context())))

	body := http.MaxBytesReader(w, r.Body, s.maxUpload)
	var out bytes.Buffer
	res, err := plan.Convert(&out, kml.NewReader(body), log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(res.ReadErr, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("document larger than %d bytes", tooLarge.Limit))
		return
	}

	if s.catalog != nil && q.Get("save") != "false" {
		id, err := s.catalog.SaveRoute(r.Context(), storage.FromResult(name, name, "", res))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("X-Route-ID", strconv.FormatInt(id, 10))
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("X-Waypoints", strconv.Itoa(res.Len()))
	w.Header().Set("X-Dropped", strconv.Itoa(len(res.Dropped)))
	if res.Truncated() {
		w.Header().Set("X-Truncated", kml.Summary(res.ReadErr))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = out.WriteTo(w)
}

// RouteResponse is the JSON form of a stored route.
type RouteResponse struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Input       string             `json:"input,omitempty"`
	Departure   string             `json:"departure,omitempty"`
	Destination string             `json:"destination,omitempty"`
	Truncated   bool               `json:"truncated"`
	Dropped     int                `json:"dropped"`
	DistanceNM  float64            `json:"distance_nm"`
	CreatedAt   string             `json:"created_at"`
	Waypoints   []WaypointResponse `json:"waypoints,omitempty"`
}

// WaypointResponse is one waypoint of a RouteResponse.
type WaypointResponse struct {
	N          int     `json:"n"`
	Type       string  `json:"type"`
	Role       string  `json:"role,omitempty"`
	Ident      string  `json:"ident,omitempty"`
	ICAO       string  `json:"icao,omitempty"`
	Lon        float64 `json:"lon,omitempty"`
	Lat        float64 `json:"lat,omitempty"`
	AltitudeFt int     `json:"altitude_ft,omitempty"`
}

func routeToResponse(r *storage.Route) RouteResponse {
	resp := RouteResponse{
		ID:          r.ID,
		Name:        r.Name,
		Input:       r.Input,
		Departure:   r.Departure,
		Destination: r.Destination,
		Truncated:   r.Truncated,
		Dropped:     r.Dropped,
		DistanceNM:  r.DistanceNM,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
	for _, wp := range r.Waypoints {
		resp.Waypoints = append(resp.Waypoints, WaypointResponse{
			N:          wp.Sequence,
			Type:       wp.Kind,
			Role:       wp.Role,
			Ident:      wp.Ident,
			ICAO:       wp.ICAO,
			Lon:        wp.Longitude,
			Lat:        wp.Latitude,
			AltitudeFt: wp.AltitudeFt,
		})
	}
	return resp
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "No catalog configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	routes, err := s.catalog.ListRoutes(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	results := make([]RouteResponse, 0, len(routes))
	for i := range routes {
		results = append(results, routeToResponse(&routes[i]))
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.lookupRoute(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, routeToResponse(rt))
}

// handleGetPlan renders a stored route as a flight plan.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.lookupRoute(w, r)
	if !ok {
		return
	}
	doc, err := planDocument(s.plan, rt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var out bytes.Buffer
	if err := fgfp.WritePlan(&out, doc); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName(rt)))
	w.WriteHeader(http.StatusOK)
	_, _ = out.WriteTo(w)
}

func (s *Server) lookupRoute(w http.ResponseWriter, r *http.Request) (*storage.Route, bool) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "No catalog configured")
		return nil, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid route ID")
		return nil, false
	}
	rt, err := s.catalog.GetRoute(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if rt == nil {
		writeError(w, http.StatusNotFound, "Route not found")
		return nil, false
	}
	return rt, true
}

// planDocument rebuilds the flight plan of a stored route.
func planDocument(plan fgfp.Plan, r *storage.Route) (*fgfp.Document, error) {
	d := &fgfp.Document{Plan: plan}
	for _, wp := range r.Waypoints {
		switch wp.Kind {
		case storage.KindRunway:
			role := route.Departure
			if wp.Role == route.Destination.String() {
				role = route.Destination
			}
			aw := route.AirportWaypoint{
				Sequence: uint(wp.Sequence),
				Role:     role,
				Airport:  route.Airport{ICAO: wp.ICAO, Runway: wp.Ident},
			}
			d.Airports = append(d.Airports, aw)
			a := aw.Airport
			if role == route.Departure {
				d.Plan.Departure = &a
			} else {
				d.Plan.Destination = &a
			}
		case storage.KindBasic:
			if wp.Sequence < 0 || wp.AltitudeFt < 0 {
				return nil, fmt.Errorf("route %d: bad waypoint %d", r.ID, wp.Sequence)
			}
			d.Waypoints = append(d.Waypoints, route.Waypoint{
				Sequence:   uint(wp.Sequence),
				Ident:      wp.Ident,
				Longitude:  wp.Longitude,
				Latitude:   wp.Latitude,
				AltitudeFt: uint(wp.AltitudeFt),
			})
		}
	}
	return d, nil
}

func fileName(r *storage.Route) string {
	name := strings.Map(func(c rune) rune {
		if c == '/' || c == '\\' || c == '"' || c < ' ' {
			return '_'
		}
		return c
	}, r.Name)
	if name == "" {
		name = "route-" + strconv.FormatInt(r.ID, 10)
	}
	return name + ".fgfp"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
