package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/mlplay/internal/config"
	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/experiment"
	"github.com/san-kum/mlplay/internal/logging"
	"github.com/san-kum/mlplay/internal/playground"
	"github.com/san-kum/mlplay/internal/tui"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	logLevel   string
	configFile string

	seed     int64
	ticks    int
	params   []string
	preset   string
	overlays []string

	gifPath string
	theme   string

	outFile     string
	frameWidth  int
	frameHeight int
	plotColumn  string

	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	metricName string
	runs       int
	gridAxes   []string
	maximize   bool

	addr   string
	dbPath string
)

var (
	cfg    = config.DefaultConfig()
	logger = slog.Default()
)

// main registers the commands and runs the root. With no subcommand it
// opens the simulator picker. It exits with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:               "mlplay",
		Short:             "interactive machine learning playground",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		RunE:              runPicker,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "run data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (info, debug, trace)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")

	listSimsCmd := &cobra.Command{
		Use:   "list-sims",
		Short: "list simulators and their params",
		RunE:  listSimulators,
	}

	liveCmd := &cobra.Command{
		Use:   "live [simulator]",
		Short: "run a simulator in the live terminal view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().StringVar(&gifPath, "gif", "", "where the g key saves recordings")
	liveCmd.Flags().StringVar(&theme, "theme", "chalk", "color theme ("+strings.Join(tui.ThemeNames(), ", ")+")")

	runCmd := &cobra.Command{
		Use:   "run [simulator]",
		Short: "run headless and save the trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  runHeadless,
	}
	addRunFlags(runCmd)

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotColumn, "column", "", "plot only this value")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a run's trajectory as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	svgCmd := &cobra.Command{
		Use:   "svg [simulator]",
		Short: "run headless and render the final frame as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  renderSVG,
	}
	addRunFlags(svgCmd)
	svgCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default <simulator>.svg)")
	svgCmd.Flags().IntVar(&frameWidth, "width", 480, "frame width")
	svgCmd.Flags().IntVar(&frameHeight, "height", 320, "frame height")

	presetsCmd := &cobra.Command{
		Use:   "presets [simulator]",
		Short: "list presets for a simulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for simulator: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, name := range presets {
				p := config.GetPreset(args[0], name)
				fmt.Printf("  %-14s %s\n", name, formatParams(p.Params))
			}
			return nil
		},
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file.yaml]",
		Short: "run a scripted scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [simulator]",
		Short: "sweep one param and report a metric",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "param to sweep")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")
	sweepCmd.Flags().StringVar(&metricName, "metric", "", "value to report (default: the simulator's metric)")
	sweepCmd.Flags().IntVar(&ticks, "ticks", 0, "ticks per run (default: the simulator's budget)")
	sweepCmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "random seed")
	sweepCmd.MarkFlagRequired("param")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble [simulator]",
		Short: "run several seeds in parallel and compare",
		Args:  cobra.ExactArgs(1),
		RunE:  runEnsemble,
	}
	ensembleCmd.Flags().IntVar(&runs, "runs", 8, "number of members")
	ensembleCmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "seed of the first member")
	ensembleCmd.Flags().IntVar(&ticks, "ticks", 0, "ticks per run (default: the simulator's budget)")
	ensembleCmd.Flags().StringVar(&metricName, "metric", "", "value to compare (default: the simulator's metric)")
	ensembleCmd.Flags().StringArrayVar(&params, "param", nil, "param override name=value (repeatable)")

	gridCmd := &cobra.Command{
		Use:   "grid [simulator]",
		Short: "grid search params for the best metric",
		Args:  cobra.ExactArgs(1),
		RunE:  runGrid,
	}
	gridCmd.Flags().StringArrayVar(&gridAxes, "param", nil, "axis name=v1,v2,... (repeatable)")
	gridCmd.Flags().StringVar(&metricName, "metric", "", "value to optimize (default: the simulator's metric)")
	gridCmd.Flags().BoolVar(&maximize, "maximize", false, "keep the largest metric instead of the smallest")
	gridCmd.Flags().IntVar(&ticks, "ticks", 0, "ticks per run (default: the simulator's budget)")
	gridCmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "random seed")
	gridCmd.MarkFlagRequired("param")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve sessions over HTTP",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "manage the chapter catalog",
	}
	catalogCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultCatalogPath, "catalog database path")
	catalogCmd.AddCommand(
		&cobra.Command{
			Use:   "seed [file.yaml]",
			Short: "upsert chapters from a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE:  seedCatalog,
		},
		&cobra.Command{
			Use:   "list",
			Short: "list chapters",
			RunE:  listCatalog,
		},
	)

	rootCmd.AddCommand(listSimsCmd, liveCmd, runCmd, runsCmd, plotCmd, exportCSVCmd, exportJSONCmd,
		svgCmd, presetsCmd, scenarioCmd, sweepCmd, gridCmd, ensembleCmd, serveCmd, catalogCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "random seed")
	cmd.Flags().IntVar(&ticks, "ticks", 0, "tick budget (default: the simulator's)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "param override name=value (repeatable)")
	cmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	cmd.Flags().StringSliceVar(&overlays, "overlay", nil, "overlays to switch on")
}

// setup loads the config file and builds the logger. Persistent flags win
// over the file only when they were set explicitly.
func setup(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if flag := cmd.Flags().Lookup("data"); (flag != nil && flag.Changed) || configFile == "" {
		cfg.DataDir = dataDir
	}
	if flag := cmd.Flags().Lookup("log-level"); (flag != nil && flag.Changed) || configFile == "" {
		cfg.Logging.Level = logLevel
	}

	logger = logging.NewLogger(cfg.Logging.Level, os.Stderr)
	slog.SetDefault(logger)
	logger.Debug("config resolved", "data", cfg.DataDir, "catalog", cfg.CatalogPath, "file", configFile)
	return nil
}

// resolve builds the experiment config for simulator. Explicit flags win,
// then preset params, then the config file.
func resolve(cmd *cobra.Command, simulator string) (experiment.Config, error) {
	ec := experiment.Config{Simulator: simulator, Params: map[string]float64{}, Seed: config.DefaultSeed}

	if preset != "" {
		p := config.GetPreset(simulator, preset)
		if p == nil {
			return ec, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(simulator))
		}
		ec.Params = p.Merge(nil)
		ec.MaxTicks = p.MaxTicks
	}

	if configFile != "" && (cfg.Simulator == "" || cfg.Simulator == simulator) {
		ec.Params = cfg.Merge(ec.Params)
		if cfg.Seed != 0 {
			ec.Seed = cfg.Seed
		}
		if cfg.MaxTicks > 0 && ec.MaxTicks == 0 {
			ec.MaxTicks = cfg.MaxTicks
		}
		ec.Interval = cfg.Interval()
		if len(overlays) == 0 {
			overlays = cfg.Overlays
		}
	}

	if cmd.Flags().Changed("seed") {
		ec.Seed = seed
	}
	if cmd.Flags().Changed("ticks") {
		ec.MaxTicks = ticks
	}
	overrides, err := parseParams(params)
	if err != nil {
		return ec, err
	}
	for k, v := range overrides {
		ec.Params[k] = v
	}
	return ec, nil
}

func parseParams(raw []string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for _, kv := range raw {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("param %q: want name=value", kv)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", kv, err)
		}
		out[strings.TrimSpace(name)] = v
	}
	return out, nil
}

func formatParams(ps map[string]float64) string {
	names := playground.ParamSet(ps).Names()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%g", n, ps[n])
	}
	return strings.Join(parts, " ")
}

func runPicker(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	open := func(name string) (playground.Session, error) {
		info, err := reg.Info(name)
		if err != nil {
			return nil, err
		}
		return reg.New(name, nil, experiment.EngineConfig(info, experiment.Config{Seed: cfg.Seed}), engine.WithLogger(logging.Discard()))
	}
	p := tea.NewProgram(tui.NewPicker(reg.List(), open, tui.Options{}), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func listSimulators(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMETRIC\tTICKS\tDESCRIPTION")
	for _, info := range reg.List() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", info.Name, info.Metric, info.Config.MaxTicks, info.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, info := range reg.List() {
		fmt.Printf("\n%s (overlays: %s)\n", info.Name, strings.Join(info.Overlays, ", "))
		for _, p := range info.Params {
			fmt.Printf("  %-16s %8g  [%g, %g]  %s\n", p.Name, p.Default, p.Min, p.Max, p.Description)
		}
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	ec, err := resolve(cmd, args[0])
	if err != nil {
		return err
	}
	exp, err := experiment.New(experiment.NewRegistry(), ec, engine.WithLogger(logging.Discard()))
	if err != nil {
		return err
	}
	m := tui.NewModel(exp.Session(), tui.Options{GIFPath: gifPath, Theme: theme, Overlays: overlays})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
