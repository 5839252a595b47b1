package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clarabennett2626/logtrail/internal/config"
	"github.com/clarabennett2626/logtrail/internal/filter"
	"github.com/clarabennett2626/logtrail/internal/logging"
	"github.com/clarabennett2626/logtrail/internal/session"
	"github.com/clarabennett2626/logtrail/internal/source"
	"github.com/clarabennett2626/logtrail/internal/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the process's I/O so tests can run commands in-process.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	isPipe func() bool

	configPath  string
	filterExpr  string
	metricsAddr string
	logFile     string
	logLevel    string
	noTUI       bool
}

func newApp() *app {
	return &app{stdin: os.Stdin, stdout: os.Stdout, isPipe: source.IsPipe}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "logtrail [file]",
		Short: "Follow a live log file in the terminal",
		Long: "logtrail follows a log file that another process is writing, surviving " +
			"rotation, truncation and half-written records. With no file and piped " +
			"stdin it renders the piped stream instead.",
		Args:         cobra.MaximumNArgs(1),
		Version:      fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage: true,
		RunE:         a.run,
	}

	flags := root.Flags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default "+config.DefaultPath+")")
	flags.StringVar(&a.filterExpr, "filter", "", `record filter, e.g. 'Level == "ERROR"'`)
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&a.logFile, "log-file", "", "write diagnostic logs to this file")
	flags.StringVar(&a.logLevel, "log-level", "", "diagnostic log level (debug, info, warn, error)")
	flags.BoolVar(&a.noTUI, "no-tui", false, "print records to stdout instead of the terminal UI")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "logtrail %s (%s) built %s\n", version, commit, date)
		},
	})
	return root
}

func (a *app) run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(&cfg)

	pipe := len(args) == 0
	if pipe && !a.isPipe() {
		return errors.New("no file given and stdin is not a pipe")
	}
	headless := pipe || a.noTUI

	log, err := logging.New(cfg.Logging, logging.Options{Stderr: headless && cfg.Logging.File == ""})
	if err != nil {
		return err
	}
	defer log.Sync()

	flt, err := filter.Compile(cfg.UI.Filter)
	if err != nil {
		return err
	}
	renderer, err := newRenderer(cfg.UI, headless)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	reg := prometheus.NewRegistry()
	metrics := source.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		serveMetrics(ctx, g, cfg.Metrics.Addr, reg, log)
	}

	g.Go(func() error {
		// The metrics server exits with ctx; the main work ending cancels it.
		defer stop()
		if pipe {
			return a.runPipe(ctx, cfg, flt, renderer, log)
		}
		fileCfg, err := cfg.FileConfig()
		if err != nil {
			return err
		}
		fileCfg.Metrics = metrics
		return a.runFile(ctx, args[0], fileCfg, cfg.UI, flt, renderer, log)
	})
	return g.Wait()
}

func (a *app) applyFlags(cfg *config.Config) {
	if a.filterExpr != "" {
		cfg.UI.Filter = a.filterExpr
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
	if a.logFile != "" {
		cfg.Logging.File = a.logFile
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
}

func newRenderer(ui config.UIConfig, headless bool) (*tui.Renderer, error) {
	theme, err := tui.ParseTheme(ui.Theme)
	if err != nil {
		return nil, err
	}
	stamps, err := tui.ParseTimestampFormat(ui.TimestampFormat)
	if err != nil {
		return nil, err
	}
	rc := tui.DefaultConfig()
	rc.Theme = theme
	rc.TimestampFormat = stamps
	rc.ShowAllFields = ui.ShowFields
	rc.FieldOrder = ui.FieldOrder
	if ui.Wrap || headless {
		rc.WrapMode = tui.WrapWrap
	}
	return tui.NewRenderer(rc), nil
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// runFile follows path in a session until ctx is cancelled or the UI quits.
func (a *app) runFile(ctx context.Context, path string, fileCfg source.FileConfig, ui config.UIConfig, flt *filter.Filter, renderer *tui.Renderer, log *zap.Logger) error {
	mgr := session.NewManager(fileCfg, log)
	defer mgr.StopAll()

	s, err := mgr.Start(ctx, path)
	if err != nil {
		return err
	}

	if a.noTUI {
		return a.printSource(ctx, s.Source(), flt, renderer, log)
	}

	model := tui.NewModelWithSource(s.Source(), s.Path,
		tui.WithRenderer(renderer),
		tui.WithMaxLines(ui.MaxLines))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	tui.Listen(s.Source(), flt, p)

	if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return err
	}
	return nil
}

// runPipe renders piped stdin until EOF or cancellation.
func (a *app) runPipe(ctx context.Context, cfg config.Config, flt *filter.Filter, renderer *tui.Renderer, log *zap.Logger) error {
	src := source.NewStdinSource(
		source.WithReader(a.stdin),
		source.WithMaxBatch(cfg.Follow.MaxBatch),
		source.WithLogger(log))
	if err := src.Start(ctx); err != nil {
		return err
	}
	return a.printSource(ctx, src, flt, renderer, log)
}

// printSource writes every record that passes flt to stdout and logs status
// changes. It returns when the source closes its channels or ctx ends.
func (a *app) printSource(ctx context.Context, src source.Source, flt *filter.Filter, renderer *tui.Renderer, log *zap.Logger) error {
	statuses := src.Status()
	batches := src.Batches()
	for batches != nil {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			if st.Err != nil {
				log.Warn(st.Text, zap.Stringer("state", st.State))
			} else {
				log.Debug(st.Text, zap.Stringer("state", st.State))
			}
		case b, ok := <-batches:
			if !ok {
				batches = nil
				continue
			}
			for _, rec := range flt.Apply(b.Records) {
				if _, err := fmt.Fprintln(a.stdout, renderer.RenderRecord(rec)); err != nil {
					return fmt.Errorf("writing output: %w", err)
				}
			}
		}
	}
	return nil
}
