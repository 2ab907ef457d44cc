package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v3/ffcli"

	"kml2fgfp/internal/fgfp"
)

func (a *app) inspectCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "inspect",
		ShortUsage: "kml2fgfp inspect FILE.fgfp",
		ShortHelp:  "print the route of a FlightGear flight plan",
		Exec: func(_ context.Context, args []string) error {
			if len(args) != 1 {
				return configErrorf("inspect takes exactly one flight plan")
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open flight plan: %w", err)
			}
			defer f.Close()

			d, err := fgfp.ReadPlan(f)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "flight rules %s, type %s, %d waypoints\n", d.Plan.FlightRules, d.Plan.FlightType, d.Len())
			if d.Plan.Departure != nil {
				fmt.Fprintf(a.stdout, "departure:   %s\n", d.Plan.Departure)
			}
			if d.Plan.Destination != nil {
				fmt.Fprintf(a.stdout, "destination: %s\n", d.Plan.Destination)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "N\tIDENT\tLAT\tLON\tALT")
			for _, wp := range d.Waypoints {
				fmt.Fprintf(tw, "%d\t%s\t%.6f\t%.6f\t%d ft\n", wp.Sequence, wp.Ident, wp.Latitude, wp.Longitude, wp.AltitudeFt)
			}
			return tw.Flush()
		},
	}
}
