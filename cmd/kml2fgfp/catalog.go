package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v3/ffcli"

	"kml2fgfp/internal/route"
	"kml2fgfp/internal/storage"
)

func (a *app) historyCommand() *ffcli.Command {
	fs := flag.NewFlagSet("kml2fgfp history", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	limit := fs.Int("limit", 20, "number of routes to list")

	return &ffcli.Command{
		Name:       "history",
		ShortUsage: "kml2fgfp [flags] history [-limit N]",
		ShortHelp:  "list the most recently converted routes",
		FlagSet:    fs,
		Exec: a.withCatalog(func(ctx context.Context, cat storage.Catalog, _ []string) error {
			routes, err := cat.ListRoutes(ctx, *limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tNAME\tDEPARTURE\tDESTINATION\tDISTANCE\tDROPPED")
			for _, r := range routes {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.1f nm\t%d\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Name,
					dash(r.Departure), dash(r.Destination), r.DistanceNM, r.Dropped)
			}
			return tw.Flush()
		}),
	}
}

func (a *app) showCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "show",
		ShortUsage: "kml2fgfp [flags] show ID",
		ShortHelp:  "print the waypoints of a stored route",
		Exec: a.withCatalog(func(ctx context.Context, cat storage.Catalog, args []string) error {
			if len(args) != 1 {
				return configErrorf("show takes exactly one route ID")
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return configErrorf("bad route ID %q", args[0])
			}

			r, err := cat.GetRoute(ctx, id)
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("route %d not found", id)
			}

			fmt.Fprintf(a.stdout, "%s (%s -> %s), %.1f nm\n", r.Name, dash(r.Departure), dash(r.Destination), r.DistanceNM)
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "N\tTYPE\tIDENT\tLAT\tLON\tALT")
			for _, wp := range r.Waypoints {
				if wp.Kind == storage.KindRunway {
					fmt.Fprintf(tw, "%d\t%s\t%s\t\t\t\n", wp.Sequence, wp.Role, route.Airport{ICAO: wp.ICAO, Runway: wp.Ident})
					continue
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.6f\t%.6f\t%d ft\n",
					wp.Sequence, wp.Kind, wp.Ident, wp.Latitude, wp.Longitude, wp.AltitudeFt)
			}
			return tw.Flush()
		}),
	}
}

func (a *app) statsCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "stats",
		ShortUsage: "kml2fgfp [flags] stats",
		ShortHelp:  "summarise recorded conversions from ClickHouse",
		Exec: func(ctx context.Context, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			defer a.teardown()
			if !a.cfg.ClickHouse.Enabled() {
				return &ConfigError{Err: errors.New("no clickhouse host configured")}
			}

			ch, err := storage.OpenClickHouse(ctx, a.cfg.ClickHouse)
			if err != nil {
				return err
			}
			defer ch.Close()

			st, err := ch.ConversionStats(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "conversions: %d (%d truncated)\n", st.Conversions, st.Truncated)
			fmt.Fprintf(a.stdout, "waypoints:   %d\n", st.Waypoints)
			fmt.Fprintf(a.stdout, "distance:    %.1f nm\n", st.DistanceNM)
			for _, reason := range []route.DropReason{route.DropAirport, route.DropNotFix, route.DropBadCoordinates, route.DropIncomplete} {
				fmt.Fprintf(a.stdout, "dropped %-16s %d\n", reason.String()+":", st.Dropped[reason])
			}

			airports := make([]string, 0, len(st.ByDeparture))
			for icao := range st.ByDeparture {
				airports = append(airports, icao)
			}
			sort.Slice(airports, func(i, j int) bool {
				ci, cj := st.ByDeparture[airports[i]], st.ByDeparture[airports[j]]
				if ci != cj {
					return ci > cj
				}
				return airports[i] < airports[j]
			})
			for _, icao := range airports {
				fmt.Fprintf(a.stdout, "  %s  %d\n", icao, st.ByDeparture[icao])
			}
			return nil
		},
	}
}

// withCatalog wraps a subcommand that needs the route catalog.
func (a *app) withCatalog(inner func(context.Context, storage.Catalog, []string) error) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		if err := a.setup(); err != nil {
			return err
		}
		defer a.teardown()

		cat, err := storage.Open(ctx, a.cfg.Catalog)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		if cat == nil {
			return &ConfigError{Err: errors.New("no catalog configured: use -catalog or set catalog.driver")}
		}
		defer cat.Close()

		return inner(ctx, cat, args)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
