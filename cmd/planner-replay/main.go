package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jyothishs/rf-outdoor-link-planner/internal/export"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/logging"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/planner"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/replay"
	"github.com/jyothishs/rf-outdoor-link-planner/timectrl"
)

func main() {
	scriptPath := flag.String("script", "configs/replay_sample.json", "Path to a JSON event script")
	defaultFreq := flag.Float64("default-freq-ghz", 0, "Override the script's map-click channel (0 keeps the script value)")
	interval := flag.Duration("interval", time.Second, "Logical time between events")
	realtime := flag.Bool("realtime", false, "Wait -interval of wall-clock time between events")
	geojsonPath := flag.String("geojson", "", "Write the final session as a GeoJSON FeatureCollection to this path")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	f, err := os.Open(*scriptPath)
	if err != nil {
		log.Error(ctx, "failed to open script", logging.String("path", *scriptPath), logging.Err(err))
		os.Exit(1)
	}
	defer f.Close()

	mode := timectrl.Accelerated
	if *realtime {
		mode = timectrl.RealTime
	}
	pacer := timectrl.NewTimeController(time.Now().UTC(), *interval, mode)

	var geo io.Writer
	if *geojsonPath != "" {
		out, err := os.Create(*geojsonPath)
		if err != nil {
			log.Error(ctx, "failed to create GeoJSON output", logging.String("path", *geojsonPath), logging.Err(err))
			os.Exit(1)
		}
		defer out.Close()
		geo = out
	}

	if err := run(ctx, os.Stdout, f, *defaultFreq, pacer, geo, log); err != nil {
		log.Error(ctx, "replay failed", logging.String("path", *scriptPath), logging.Err(err))
		os.Exit(1)
	}
}

// run replays the script read from r and prints a summary to w. When geo is
// non-nil the final session is also written there as GeoJSON.
func run(ctx context.Context, w io.Writer, r io.Reader, defaultFreqGHz float64, pacer *timectrl.TimeController, geo io.Writer, log logging.Logger) error {
	script, err := replay.Load(r)
	if err != nil {
		return err
	}

	cfg := planner.Config{DefaultFreqGHz: script.DefaultFreqGHz}
	if defaultFreqGHz != 0 {
		cfg.DefaultFreqGHz = defaultFreqGHz
	}
	sess, err := planner.NewSession(cfg, planner.WithLogger(log))
	if err != nil {
		return err
	}
	defer sess.Close()

	if pacer != nil {
		pacer.AddListener(func(now time.Time) {
			log.Debug(ctx, "replay clock advanced",
				logging.String("mode", pacer.Mode.String()),
				logging.String("at", now.Format(time.RFC3339)),
			)
		})
	}

	runner := replay.NewRunner(sess, replay.WithPacer(pacer))
	res, err := runner.Run(ctx, script)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Replaying %d events (map-click channel %g GHz)\n", len(script.Events), sess.Config().DefaultFreqGHz)
	for _, st := range res.Steps {
		stamp := ""
		if !st.At.IsZero() {
			stamp = st.At.Format("15:04:05") + " "
		}
		switch {
		case st.Err != nil && st.Detail != "":
			fmt.Fprintf(w, "[%3d] %s%s: %v\n", st.Index, stamp, st.Detail, st.Err)
		case st.Err != nil:
			fmt.Fprintf(w, "[%3d] %s%s rejected: %v\n", st.Index, stamp, st.Event.Op, st.Err)
		default:
			fmt.Fprintf(w, "[%3d] %s%s\n", st.Index, stamp, st.Detail)
		}
	}

	fmt.Fprintf(w, "\n%d tower(s), %d link(s)\n", len(res.Final.Towers), len(res.Reports))
	for _, rep := range res.Reports {
		fmt.Fprintf(w, "↳ %s-%s  %s", runner.Name(rep.TowerA.ID), runner.Name(rep.TowerB.ID), rep.Label)
		if rep.GeometryErr != nil {
			fmt.Fprintf(w, "  (no overlay: %v)\n", rep.GeometryErr)
			continue
		}
		fmt.Fprintf(w, "  fresnel=%.1f m rotation=%.1f°\n", rep.FresnelRadiusM, rep.Overlay.RotationDeg)
	}

	if ov := res.Final.Overlay; ov != nil {
		fmt.Fprintf(w, "\nHighlighted overlay: center=(%.4f, %.4f) box=[(%.4f, %.4f) (%.4f, %.4f)] rx=%.2f ry=%.4f rotate=%.1f°\n",
			ov.Center.Lat, ov.Center.Lng,
			ov.Bounds.SouthWest.Lat, ov.Bounds.SouthWest.Lng,
			ov.Bounds.NorthEast.Lat, ov.Bounds.NorthEast.Lng,
			ov.Ellipse.SemiMajor, ov.Ellipse.SemiMinor, ov.Ellipse.RotationDeg,
		)
	}
	for _, m := range res.Final.Markers {
		fmt.Fprintf(w, "marker %-13s %s r=%.0f m\n", m.Role, runner.Name(m.TowerID), m.RadiusM)
	}

	if geo != nil {
		raw, err := json.MarshalIndent(export.FeatureCollection(res.Final, res.Reports), "", "  ")
		if err != nil {
			return fmt.Errorf("encode geojson: %w", err)
		}
		if _, err := geo.Write(append(raw, '\n')); err != nil {
			return fmt.Errorf("write geojson: %w", err)
		}
	}
	return nil
}
