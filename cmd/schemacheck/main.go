package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tordrt/schemacheck"
	"github.com/tordrt/schemacheck/internal/check"
	"github.com/tordrt/schemacheck/internal/config"
	"github.com/tordrt/schemacheck/internal/history"
	"github.com/tordrt/schemacheck/internal/logging"
	"github.com/tordrt/schemacheck/internal/report"
)

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	"base_dir":        "base-dir",
	"paths.ddl":       "ddl-dir",
	"paths.yaml":      "yaml-dir",
	"paths.tables":    "tables-dir",
	"entity_registry": "entity-registry",
	"tables":          "tables",
	"exclude_tables":  "exclude",
	"checks":          "checks",
	"format":          "format",
	"output":          "output",
	"output_dir":      "output-dir",
	"color":           "color",
	"history.url":     "history",
	"log.level":       "log-level",
	"log.format":      "log-format",
}

// app carries the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *slog.Logger
	stdout  io.Writer
	stderr  io.Writer

	// code is the exit status of a completed check.
	code int
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{v: config.New(), stdout: stdout, stderr: stderr}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "schemacheck",
		Short: "Check that DDL, YAML table details and table definitions agree",
		Long: `schemacheck cross-checks the DDL files, YAML table details, Markdown table
definitions and entity relationship registry of a database design and reports
every disagreement with a severity and, where possible, a fix.

Exit status is 0 when everything is consistent, 1 when any ERROR was found
and 2 when only WARNINGs were found.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runCheck,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default: ./schemacheck.yaml)")
	pf.String("base-dir", "", "Root of the design documents (default: docs/database)")
	pf.String("ddl-dir", "", "DDL directory, relative to the base dir (default: ddl)")
	pf.String("yaml-dir", "", "YAML table detail directory (default: table-details)")
	pf.String("tables-dir", "", "Markdown table definition directory (default: tables)")
	pf.String("entity-registry", "", "Entity relationship registry YAML (optional)")
	pf.StringSliceP("tables", "t", nil, "Specific tables (comma-separated, optional)")
	pf.StringSlice("exclude", nil, "Tables to skip (comma-separated)")
	pf.StringSlice("checks", nil, "Checks to run (comma-separated, default: all)")
	pf.StringP("format", "f", "", "Output format: text, markdown or json (default: text)")
	pf.StringP("output", "o", "", "Output file (default: stdout)")
	pf.StringP("output-dir", "d", "", "Output directory for one file per table")
	pf.Bool("color", false, "Color severities in text output")
	pf.String("history", "", "History database URL (postgres://, mysql://, sqlite://)")
	pf.String("log-level", "", "Log level: debug, info, warn or error (default: info)")
	pf.String("log-format", "", "Log format: text or json (default: text)")

	root.AddCommand(a.checkCommand(), a.historyCommand(), a.generateDDLCommand())
	return root
}

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the consistency checks (the default command)",
		Args:  cobra.NoArgs,
		RunE:  a.runCheck,
	}
}

func (a *app) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or the findings of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistory(cmd.Context(), args, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	return cmd
}

func (a *app) generateDDLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-ddl <yaml-file>...",
		Short: "Print the CREATE TABLE statement for YAML table detail files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, path := range args {
				out, err := schemacheck.GenerateDDL(path)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(a.stdout)
				}
				fmt.Fprint(a.stdout, out)
			}
			return nil
		},
	}
}

// setup loads the configuration and builds the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.BindFlags(a.v, cmd.Root().PersistentFlags(), flagKeys); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(check.Names); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(a.stderr, level, format)
	return nil
}

func (a *app) runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	rep, err := schemacheck.Run(ctx, &schemacheck.Options{
		BaseDir:        cfg.BaseDir,
		DDLDir:         cfg.Paths.DDL,
		YAMLDir:        cfg.Paths.YAML,
		TablesDir:      cfg.Paths.Tables,
		EntityRegistry: cfg.EntityRegistry,
		Tables:         cfg.Tables,
		ExcludeTables:  cfg.ExcludeTables,
		Checks:         cfg.Checks,
		Logger:         a.log,
	})
	if err != nil {
		return err
	}

	if cfg.History.URL != "" {
		// A history failure is logged; the report and exit status stand.
		if err := a.saveHistory(ctx, rep); err != nil {
			a.log.Error("failed to record run history", "run_id", rep.RunID, "err", err)
		}
	}

	out := &schemacheck.OutputOptions{
		Writer:    a.stdout,
		OutputDir: cfg.OutputDir,
		Format:    cfg.Format,
		Color:     cfg.Color,
	}
	if cfg.OutputDir == "" && cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out.Writer = f
	}
	if err := schemacheck.FormatReport(rep, out); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	switch {
	case cfg.OutputDir != "":
		fmt.Fprintf(a.stderr, "Report written to %s\n", cfg.OutputDir)
	case cfg.Output != "":
		fmt.Fprintf(a.stderr, "Report written to %s\n", cfg.Output)
	}

	a.code = schemacheck.ExitCode(rep)
	return nil
}

func (a *app) saveHistory(ctx context.Context, rep *report.Report) error {
	store, err := history.Open(ctx, a.cfg.History.URL, a.log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return store.Save(ctx, rep)
}

func (a *app) runHistory(ctx context.Context, args []string, limit int) error {
	if a.cfg.History.URL == "" {
		return errors.New("--history (or history.url) must be specified")
	}
	store, err := history.Open(ctx, a.cfg.History.URL, a.log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	w := tabwriter.NewWriter(a.stdout, 0, 0, 3, ' ', 0)
	if len(args) == 1 {
		findings, err := store.Findings(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "SEVERITY\tCHECK\tTABLE\tMESSAGE")
		for _, f := range findings {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Severity, f.Check, f.Table, f.Message)
		}
		return w.Flush()
	}

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "No runs recorded.")
		return nil
	}
	fmt.Fprintln(w, "RUN ID\tGENERATED\tTABLES\tERROR\tWARNING\tINFO\tSUCCESS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.RunID, r.GeneratedAt.UTC().Format("2006-01-02 15:04:05"), r.Tables,
			r.Summary.Error, r.Summary.Warning, r.Summary.Info, r.Summary.Success)
	}
	return w.Flush()
}

// execute runs one invocation and returns the process exit status.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return a.code
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
