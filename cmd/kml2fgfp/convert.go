package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kml2fgfp/internal/fgfp"
	"kml2fgfp/internal/kml"
	"kml2fgfp/internal/notify"
	"kml2fgfp/internal/route"
	"kml2fgfp/internal/storage"
)

func (a *app) convert(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return configErrorf("expected INPUT OUTPUT [DEPARTURE [DESTINATION]], got %d arguments", len(args))
	}
	input, output := args[0], args[1]

	plan := fgfp.DefaultPlan()
	if len(args) > 2 {
		dep, err := route.ParseAirport(args[2])
		if err != nil {
			return &ConfigError{Err: fmt.Errorf("departure: %w", err)}
		}
		plan.Departure = &dep
	}
	if len(args) > 3 {
		dest, err := route.ParseAirport(args[3])
		if err != nil {
			return &ConfigError{Err: fmt.Errorf("destination: %w", err)}
		}
		plan.Destination = &dest
	}

	if err := a.setup(); err != nil {
		return err
	}
	defer a.teardown()
	plan.FlightRules = a.cfg.Plan.FlightRules
	plan.FlightType = a.cfg.Plan.FlightType

	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	log := a.log.With(slog.String("input", input))
	res, err := plan.Convert(out, kml.NewReader(in), log)
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("convert %s: %w", input, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	log.Info("flight plan written",
		slog.String("output", output),
		slog.Int("waypoints", res.Len()),
		slog.Int("dropped", len(res.Dropped)),
		slog.Float64("distance_nm", math.Round(res.DistanceNM()*10)/10),
		slog.Bool("truncated", res.Truncated()))

	name := a.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	return a.record(ctx, name, input, output, res)
}

// record stores the conversion in the catalog and analytics database and
// announces it, for whichever of those are configured.
func (a *app) record(ctx context.Context, name, input, output string, res *route.Result) error {
	var id int64
	cat, err := storage.Open(ctx, a.cfg.Catalog)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	if cat != nil {
		defer cat.Close()
		id, err = cat.SaveRoute(ctx, storage.FromResult(name, input, output, res))
		if err != nil {
			return fmt.Errorf("save route: %w", err)
		}
		a.log.Info("route saved", slog.Int64("catalog_id", id), slog.String("name", name))
	}

	if a.cfg.ClickHouse.Enabled() {
		if err := a.recordConversion(ctx, storage.ConversionFromResult(name, input, res)); err != nil {
			return err
		}
	}

	if a.cfg.NATS.Enabled() {
		ev := notify.RouteConverted{
			Name:        name,
			Input:       input,
			Output:      output,
			Waypoints:   res.Len(),
			Dropped:     len(res.Dropped),
			Truncated:   res.Truncated(),
			DistanceNM:  res.DistanceNM(),
			CatalogID:   id,
			ConvertedAt: time.Now().UTC(),
		}
		if res.Departure != nil {
			ev.Departure = res.Departure.Airport.String()
		}
		if res.Destination != nil {
			ev.Destination = res.Destination.Airport.String()
		}
		if err := a.publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) recordConversion(ctx context.Context, c storage.Conversion) error {
	ch, err := storage.OpenClickHouse(ctx, a.cfg.ClickHouse)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.CreateSchema(ctx); err != nil {
		return fmt.Errorf("clickhouse: %w", err)
	}
	if err := ch.InsertConversion(ctx, c); err != nil {
		return fmt.Errorf("clickhouse: %w", err)
	}
	return nil
}

func (a *app) publish(ctx context.Context, ev notify.RouteConverted) error {
	p, err := notify.Connect(a.cfg.NATS)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.PublishConverted(ctx, ev); err != nil {
		return err
	}
	a.log.Debug("conversion published", slog.String("subject", p.Subject()))
	return nil
}
