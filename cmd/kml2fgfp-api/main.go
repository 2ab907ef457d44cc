// Command kml2fgfp-api serves the route catalog and KML conversion over
// HTTP.
//
// Usage:
//
//	kml2fgfp-api [options]
//
// Options:
//
//	-config FILE        YAML configuration file (env: KML2FGFP_API_CONFIG)
//	-port N             HTTP port (default: api.port from the config, 8081)
//	-catalog FILE       serve this SQLite catalog instead of the configured one
//	-auth               Enable API key authentication
//	-api-keys KEYS      Comma-separated list of valid API keys
//	-log-level LEVEL    debug, info, warn or error
//
// API Endpoints:
//
//	GET /api/v1/health
//	    Health check endpoint.
//
//	POST /api/v1/convert?departure=ICAO[/RWY]&destination=ICAO[/RWY]&name=NAME
//	    Convert the KML request body and return the flight plan. The route
//	    is stored in the catalog unless save=false is given.
//
//	GET /api/v1/routes?limit=N
//	    List the most recent stored routes.
//
//	GET /api/v1/routes/{id}
//	    Get a stored route with its waypoints.
//
//	GET /api/v1/routes/{id}/fgfp
//	    Download a stored route as a flight plan.
//
// Authentication:
//
//	When -auth is enabled, requests other than health must include an API
//	key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v3"

	"kml2fgfp/internal/api"
	"kml2fgfp/internal/config"
	"kml2fgfp/internal/fgfp"
	"kml2fgfp/internal/logging"
	"kml2fgfp/internal/storage"
)

func main() {
	fs := flag.NewFlagSet("kml2fgfp-api", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	port := fs.Int("port", 0, "HTTP port for API server")
	catalogPath := fs.String("catalog", "", "SQLite catalog to serve")
	authEnabled := fs.Bool("auth", false, "Enable API key authentication")
	apiKeys := fs.String("api-keys", "", "Comma-separated list of valid API keys (when auth enabled)")
	logLevel := fs.String("log-level", "", "Log level")

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("KML2FGFP_API")); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}
	if *port != 0 {
		cfg.API.Port = *port
	}
	if *catalogPath != "" {
		cfg.Catalog.Driver = storage.DriverSQLite
		cfg.Catalog.Path = *catalogPath
	}
	if *authEnabled {
		cfg.API.AuthEnabled = true
	}
	if *apiKeys != "" {
		cfg.API.APIKeys = nil
		for _, k := range strings.Split(*apiKeys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.API.APIKeys = append(cfg.API.APIKeys, k)
			}
		}
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := storage.Open(ctx, cfg.Catalog)
	if err != nil {
		log.Error("open catalog", "err", err)
		os.Exit(2)
	}
	if cat != nil {
		defer cat.Close()
	} else {
		log.Warn("no catalog configured, only /convert is available")
	}

	plan := fgfp.DefaultPlan()
	plan.FlightRules, plan.FlightType = cfg.Plan.FlightRules, cfg.Plan.FlightType

	server := api.NewServer(cat, plan, log, cfg.API)
	if err := server.Run(ctx); err != nil {
		log.Error("server error", "err", err)
		os.Exit(2)
	}
}
