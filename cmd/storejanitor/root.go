package main

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dray-io/storejanitor/internal/config"
	"github.com/dray-io/storejanitor/internal/logging"
	"github.com/dray-io/storejanitor/internal/metrics"
	"github.com/dray-io/storejanitor/internal/objectstore"
	"github.com/dray-io/storejanitor/internal/report"
)

// rootOptions holds global flags and the state every command shares.
type rootOptions struct {
	configPath string
	format     string
	logLevel   string
	logFormat  string

	stdout  io.Writer
	stderr  io.Writer
	backend backend

	// Set by the root pre-run.
	cfg          *config.Config
	logger       *logging.Logger
	reportFormat report.Format
	registry     *prometheus.Registry
	janitor      *metrics.JanitorMetrics
	stores       *metrics.StoreMetrics
}

func newRootCommand(stdout, stderr io.Writer, b backend) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr, backend: b}

	cmd := &cobra.Command{
		Use:           "storejanitor",
		Short:         "Purge ontology graphs and reconcile key-value indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("invalid flags", err)
	})

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to configuration file (default: $"+config.EnvConfigPath+")")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "", "report format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json|text)")

	cmd.AddCommand(newPurgeCommand(opts))
	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newAuditCommand(opts))
	cmd.AddCommand(newVersionCommand(opts))

	return cmd
}

// setup loads configuration, applies flag overrides and builds the run
// logger and metrics registry.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return usageError("failed to load config", err)
	}

	if o.format != "" {
		cfg.Report.Format = o.format
	}
	if o.logLevel != "" {
		cfg.Observability.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Observability.LogFormat = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return usageError("invalid config", err)
	}

	// Validate has checked all three.
	o.reportFormat, _ = report.ParseFormat(cfg.Report.Format)
	level, _ := logging.ParseLevel(cfg.Observability.LogLevel)
	format, _ := logging.ParseFormat(cfg.Observability.LogFormat)

	base := logging.New(logging.Config{Level: level, Format: format, Output: o.stderr})
	logging.SetGlobal(base)

	runID := uuid.NewString()
	o.logger = base.WithRunID(runID).WithCommand(commandName(cmd))
	o.cfg = cfg

	o.registry = prometheus.NewRegistry()
	o.janitor = metrics.NewJanitorMetricsWithRegistry(o.registry)
	o.stores = metrics.NewStoreMetricsWithRegistry(o.registry)

	cmd.SetContext(logging.WithLoggerCtx(cmd.Context(), o.logger))
	return nil
}

// commandName returns the command path without the program name,
// e.g. "reconcile jobs".
func commandName(cmd *cobra.Command) string {
	path := cmd.CommandPath()
	if i := strings.IndexByte(path, ' '); i >= 0 {
		return path[i+1:]
	}
	return path
}

// finishTimeout bounds report publishing and the metrics push, which run
// even when the command context was cancelled.
const finishTimeout = 30 * time.Second

// finish publishes the report, if any, and pushes metrics.
func (o *rootOptions) finish(ctx context.Context, cmd *cobra.Command, r report.Report) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if r != nil {
		o.publish(ctx, r)
	}
	o.pushMetrics(ctx, cmd)
}

// publish sends a finished report to stdout, the log and every configured
// sink. Sink failures are logged and never change the exit code.
func (o *rootOptions) publish(ctx context.Context, r report.Report) {
	pub := report.NewPublisher(o.logger,
		&report.WriterSink{W: o.stdout, Format: o.reportFormat},
		&report.LogSink{Logger: o.logger},
	)

	if o.cfg.Report.Archive.Enabled {
		store, err := o.backend.ArchiveStore(ctx, o.cfg)
		if err != nil {
			o.logger.Warnf("report archive unavailable", map[string]any{"error": err.Error()})
		} else {
			defer store.Close()
			instrumented := objectstore.NewInstrumentedStore(store, o.stores.Recorder(metrics.StoreArchive))
			pub.Add(report.NewArchiveSink(instrumented, o.cfg.Report.Archive.Prefix, o.cfg.Report.Archive.Keep))
		}
	}

	if o.cfg.Report.Kafka.Enabled {
		sink, err := o.backend.KafkaSink(ctx, o.cfg)
		if err != nil {
			o.logger.Warnf("report topic unavailable", map[string]any{"error": err.Error()})
		} else {
			defer sink.Close()
			pub.Add(sink)
		}
	}

	// Publisher already logged each failure.
	_ = pub.Publish(ctx, r)
}

// pushMetrics sends the run's metrics to the Pushgateway when one is
// configured.
func (o *rootOptions) pushMetrics(ctx context.Context, cmd *cobra.Command) {
	p := metrics.NewPusher(o.cfg.Observability.PushgatewayURL, "storejanitor", o.registry).
		Grouping("command", strings.ReplaceAll(commandName(cmd), " ", "_"))
	if !p.Enabled() {
		return
	}
	if err := p.Push(ctx); err != nil {
		o.logger.Warnf("metrics push failed", map[string]any{"error": err.Error()})
	}
}
