package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/experiment"
	"github.com/san-kum/mlplay/internal/render"
	"github.com/san-kum/mlplay/internal/storage"
	"github.com/spf13/cobra"
)

// maxPlotColumns caps how many values plot draws without --column.
const maxPlotColumns = 6

func headless(cmd *cobra.Command, simulator string) (*experiment.Experiment, *experiment.Result, error) {
	ec, err := resolve(cmd, simulator)
	if err != nil {
		return nil, nil, err
	}
	exp, err := experiment.New(experiment.NewRegistry(), ec, engine.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	logger.Info("running", "simulator", simulator, "seed", ec.Seed, "max_ticks", ec.MaxTicks)
	result, err := exp.Run(context.Background())
	if err != nil {
		return nil, nil, err
	}
	return exp, result, nil
}

func runHeadless(cmd *cobra.Command, args []string) error {
	_, result, err := headless(cmd, args[0])
	if err != nil {
		return err
	}

	store := storage.New(cfg.DataDir)
	runID, err := store.Save(result)
	if err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}

	fmt.Printf("run %s: %d ticks\n", runID, result.Ticks)
	if result.Degenerate {
		fmt.Printf("halted: %s\n", result.Reason)
	}
	printValues("final", result.Final)
	printValues("metrics", result.Metrics)
	return nil
}

func printValues(title string, values map[string]float64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-20s %.6g\n", k, values[k])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(cfg.DataDir)
	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSIMULATOR\tSEED\tTICKS\tWHEN")
	for _, r := range runs {
		when := r.Timestamp.Format("2006-01-02 15:04:05")
		if r.Degenerate {
			when += " (halted)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", r.ID, r.Simulator, r.Seed, r.Ticks, when)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	store := storage.New(cfg.DataDir)
	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	traj, err := store.LoadTrajectory(args[0])
	if err != nil {
		return err
	}

	columns := traj.Columns
	if plotColumn != "" {
		if traj.Column(plotColumn) == nil {
			return fmt.Errorf("run %s has no column %s (have: %s)", args[0], plotColumn, strings.Join(traj.Columns, ", "))
		}
		columns = []string{plotColumn}
	} else if len(columns) > maxPlotColumns {
		columns = columns[:maxPlotColumns]
	}

	fmt.Printf("%s  seed %d  %d ticks\n\n", meta.Simulator, meta.Seed, meta.Ticks)
	for _, col := range columns {
		data := traj.Column(col)
		if len(data) == 0 {
			continue
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(col),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func output(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func exportCSV(cmd *cobra.Command, args []string) error {
	w, err := output(outFile)
	if err != nil {
		return err
	}
	defer w.Close()
	return storage.New(cfg.DataDir).ExportCSV(args[0], w)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	if outFile != "" {
		if err := storage.New(cfg.DataDir).ExportJSONFile(args[0], outFile); err != nil {
			return err
		}
		fmt.Printf("exported %s to %s\n", args[0], outFile)
		return nil
	}
	return storage.New(cfg.DataDir).ExportJSON(args[0], os.Stdout)
}

func renderSVG(cmd *cobra.Command, args []string) error {
	exp, result, err := headless(cmd, args[0])
	if err != nil {
		return err
	}

	opts := render.Options{Width: frameWidth, Height: frameHeight, Overlays: map[string]bool{}}
	for _, o := range overlays {
		opts.Overlays[strings.TrimSpace(o)] = true
	}
	svg := render.SVG(exp.Session().Frame(opts))

	path := outFile
	if path == "" {
		path = args[0] + ".svg"
	}
	if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s after %d ticks\n", path, result.Ticks)
	return nil
}
