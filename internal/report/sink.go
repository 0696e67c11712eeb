package report

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dray-io/storejanitor/internal/logging"
)

// Sink publishes a finished report.
type Sink interface {
	Publish(ctx context.Context, r Report) error
	Name() string
}

// WriterSink writes reports to an io.Writer, normally stdout.
type WriterSink struct {
	W      io.Writer
	Format Format
}

func (s *WriterSink) Name() string { return "stdout" }

func (s *WriterSink) Publish(_ context.Context, r Report) error {
	return Write(s.W, r, s.Format)
}

// LogSink logs the report summary at info level.
type LogSink struct {
	Logger *logging.Logger
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(ctx context.Context, r Report) error {
	l := s.Logger
	if l == nil {
		l = logging.FromCtx(ctx)
	}
	l.Infof(r.Kind()+" run finished", r.Summary())
	return nil
}

// Publisher fans a report out to several sinks. A failing sink does not
// stop the others; failures are logged and joined into the returned error.
type Publisher struct {
	sinks  []Sink
	logger *logging.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(logger *logging.Logger, sinks ...Sink) *Publisher {
	if logger == nil {
		logger = logging.Global()
	}
	return &Publisher{sinks: sinks, logger: logger}
}

// Add appends a sink.
func (p *Publisher) Add(s Sink) {
	p.sinks = append(p.sinks, s)
}

// Sinks returns the configured sink names.
func (p *Publisher) Sinks() []string {
	names := make([]string, len(p.sinks))
	for i, s := range p.sinks {
		names[i] = s.Name()
	}
	return names
}

// Publish sends r to every sink.
func (p *Publisher) Publish(ctx context.Context, r Report) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Publish(ctx, r); err != nil {
			p.logger.Warnf("report sink failed", map[string]any{
				"sink":  s.Name(),
				"runId": r.ID(),
				"error": err,
			})
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
