package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/mlplay/internal/automation"
	"github.com/san-kum/mlplay/internal/catalog"
	"github.com/san-kum/mlplay/internal/experiment"
	"github.com/san-kum/mlplay/internal/server"
	"github.com/san-kum/mlplay/internal/storage"
	"github.com/spf13/cobra"
)

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}
	ctx, cancel := interruptible()
	defer cancel()

	fmt.Printf("scenario: %s\n", sc.Name)
	if sc.Description != "" {
		fmt.Printf("  %s\n", sc.Description)
	}
	reg := experiment.NewRegistry()
	results, err := automation.RunScenario(ctx, sc, reg, storage.New(cfg.DataDir), logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSIMULATOR\tPRESET\tTICKS\tMETRIC\tRUN")
	for i, r := range results {
		metric := "-"
		if info, err := reg.Info(r.Result.Simulator); err == nil {
			if v, ok := automation.MetricValue(r.Result, info.Metric); ok {
				metric = fmt.Sprintf("%s=%.4g", info.Metric, v)
			}
		}
		preset := r.Step.Preset
		if preset == "" {
			preset = "-"
		}
		runID := r.RunID
		if runID == "" {
			runID = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n", i+1, r.Result.Simulator, preset, r.Result.Ticks, metric, runID)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptible()
	defer cancel()

	sweep := &automation.Sweep{
		Simulator: args[0],
		Param:     sweepParam,
		Min:       sweepMin,
		Max:       sweepMax,
		Steps:     sweepSteps,
		Metric:    metricName,
		Ticks:     ticks,
		Seed:      seed,
	}
	points, err := automation.RunSweep(ctx, sweep, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	metric := metricName
	if metric == "" {
		info, _ := experiment.NewRegistry().Info(args[0])
		metric = info.Metric
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\tTICKS\t\n", strings.ToUpper(sweepParam), strings.ToUpper(metric))
	for _, p := range points {
		note := ""
		if p.Degenerate {
			note = "halted"
		}
		fmt.Fprintf(w, "%.4g\t%.6g\t%d\t%s\n", p.Value, p.Metric, p.Ticks, note)
	}
	return w.Flush()
}

func runGrid(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptible()
	defer cancel()

	grid := &automation.Grid{
		Simulator: args[0],
		Metric:    metricName,
		Maximize:  maximize,
		Ticks:     ticks,
		Seed:      seed,
	}
	for _, raw := range gridAxes {
		axis, err := automation.ParseGridAxis(raw)
		if err != nil {
			return err
		}
		grid.Axes = append(grid.Axes, axis)
	}
	res, err := automation.RunGrid(ctx, grid, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	fmt.Printf("best %s: %.6g\n", res.Metric, res.Value)
	fmt.Printf("  %s\n", formatParams(res.Best))
	return nil
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptible()
	defer cancel()

	overrides, err := parseParams(params)
	if err != nil {
		return err
	}
	res, err := automation.RunEnsemble(ctx, &automation.Ensemble{
		Simulator: args[0],
		Runs:      runs,
		Seed:      seed,
		Ticks:     ticks,
		Params:    overrides,
		Metric:    metricName,
	}, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SEED\t%s\tTICKS\n", strings.ToUpper(res.Metric))
	for _, m := range res.Members {
		fmt.Fprintf(w, "%d\t%.6g\t%d\n", m.Seed, m.Metric, m.Result.Ticks)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nmean %.6g  std %.6g  min %.6g  max %.6g\n", res.Mean, res.Std, res.Min, res.Max)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("addr") || configFile == "" {
		cfg.Server.Addr = addr
	}
	ctx, cancel := interruptible()
	defer cancel()

	srv := server.New(ctx, experiment.NewRegistry(), cfg.Server.Addr, cfg.Server.MaxSessions, logger)
	logger.Info("serving", "addr", cfg.Server.Addr, "max_sessions", cfg.Server.MaxSessions)
	return srv.ListenAndServe(ctx)
}

func openCatalog(cmd *cobra.Command) (*catalog.Store, error) {
	if cmd.Flags().Changed("db") || configFile == "" {
		cfg.CatalogPath = dbPath
	}
	return catalog.Open(cmd.Context(), cfg.CatalogPath)
}

func seedCatalog(cmd *cobra.Command, args []string) error {
	store, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := store.Seed(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("seeded %s: %d created, %d updated\n", cfg.CatalogPath, report.Created, report.Updated)
	return nil
}

func listCatalog(cmd *cobra.Command, args []string) error {
	store, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	chapters, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(chapters) == 0 {
		fmt.Println("no chapters")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tORDER\tTITLE\tTIME\tPUBLISHED")
	for _, ch := range chapters {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%v\n", ch.Category, ch.Order, ch.Title, ch.TimeEstimate, ch.IsPublished)
	}
	return w.Flush()
}
