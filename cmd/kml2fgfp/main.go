// Command kml2fgfp converts a SimBrief KML route into a FlightGear route
// manager flight plan (.fgfp).
//
// Usage:
//
//	kml2fgfp [flags] INPUT OUTPUT [DEPARTURE [DESTINATION]]
//
// Airports are given as ICAO or ICAO/RUNWAY, e.g. SAEZ/11. Placemarks
// named after an airport are left out of the route; the airports are
// written as runway waypoints instead. Flags must come before the
// positional arguments and may also be set through KML2FGFP_* environment
// variables.
//
// An INPUT named like a subcommand (history, show, stats, inspect) runs
// that subcommand; give such a file with a path, e.g. ./history.
//
// Exit status is 1 for configuration errors (arguments, airport codes,
// config file) and 2 for everything else.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"kml2fgfp/internal/config"
	"kml2fgfp/internal/logging"
	"kml2fgfp/internal/storage"
)

var version = "dev"

const (
	exitOK     = 0
	exitConfig = 1
	exitApp    = 2
)

// ConfigError marks a failure caused by how the program was invoked.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

func configErrorf(format string, args ...any) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.command()

	if err := root.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "kml2fgfp: %v\n", err)
		return exitConfig
	}

	err := root.Run(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "kml2fgfp: %v\n", err)

	var cerr *ConfigError
	if errors.As(err, &cerr) {
		fmt.Fprintf(stderr, "usage: %s\n", root.ShortUsage)
		return exitConfig
	}
	return exitApp
}

type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath  string
	logLevel    string
	logFile     string
	catalogPath string
	name        string

	cfg       *config.Config
	log       *slog.Logger
	logCloser io.Closer
}

func (a *app) command() *ffcli.Command {
	fs := flag.NewFlagSet("kml2fgfp", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&a.configPath, "config", "", "YAML configuration `file`")
	fs.StringVar(&a.logLevel, "log-level", "", "log `level`: debug, info, warn or error")
	fs.StringVar(&a.logFile, "log-file", "", "also write JSON logs to this rotating `file`")
	fs.StringVar(&a.catalogPath, "catalog", "", "store converted routes in this SQLite `database`")
	fs.StringVar(&a.name, "name", "", "route `name` for the catalog (default: input file name)")

	return &ffcli.Command{
		Name:       "kml2fgfp",
		ShortUsage: "kml2fgfp [flags] INPUT OUTPUT [DEPARTURE [DESTINATION]]",
		ShortHelp:  "convert a SimBrief KML route to a FlightGear flight plan",
		LongHelp: "kml2fgfp " + version + "\n\n" +
			"Converts the #FixMark placemarks of a SimBrief KML export into a\n" +
			"FlightGear route manager flight plan. DEPARTURE and DESTINATION are\n" +
			"ICAO or ICAO/RUNWAY codes, e.g. SAEZ/11.\n\n" +
			"An INPUT named history, show, stats or inspect is taken as that\n" +
			"subcommand; pass it with a path instead, e.g. ./history.",
		FlagSet: fs,
		Options: []ff.Option{ff.WithEnvVarPrefix("KML2FGFP")},
		Subcommands: []*ffcli.Command{
			a.historyCommand(),
			a.showCommand(),
			a.statsCommand(),
			a.inspectCommand(),
		},
		Exec: a.convert,
	}
}

// setup loads the configuration and builds the logger. Flags override the
// file, which overrides the defaults.
func (a *app) setup() error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return &ConfigError{Err: err}
		}
		cfg = *loaded
	}

	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFile != "" {
		cfg.Log.File = a.logFile
	}
	if a.catalogPath != "" {
		cfg.Catalog.Driver = storage.DriverSQLite
		cfg.Catalog.Path = a.catalogPath
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	log, closer, err := logging.New(cfg.Log, a.stderr)
	if err != nil {
		return &ConfigError{Err: err}
	}
	a.cfg, a.log, a.logCloser = &cfg, log, closer
	return nil
}

func (a *app) teardown() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
