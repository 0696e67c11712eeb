package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pusher sends the metrics of one run to a Prometheus Pushgateway.
type Pusher struct {
	url    string
	pusher *push.Pusher
}

// NewPusher creates a pusher for job that gathers from g. An empty url
// yields a pusher whose Push does nothing.
func NewPusher(url, job string, g prometheus.Gatherer) *Pusher {
	if url == "" {
		return &Pusher{}
	}
	return &Pusher{
		url:    url,
		pusher: push.New(url, job).Gatherer(g),
	}
}

// Grouping adds a grouping label, e.g. the command that ran.
func (p *Pusher) Grouping(name, value string) *Pusher {
	if p.pusher != nil && value != "" {
		p.pusher = p.pusher.Grouping(name, value)
	}
	return p
}

// Enabled reports whether a Pushgateway is configured.
func (p *Pusher) Enabled() bool {
	return p.pusher != nil
}

// Push replaces the metrics of this job and grouping on the gateway.
func (p *Pusher) Push(ctx context.Context) error {
	if p.pusher == nil {
		return nil
	}
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", p.url, err)
	}
	return nil
}
