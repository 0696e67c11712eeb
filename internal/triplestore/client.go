// Package triplestore is a small client for RDF4J/GraphDB-style SPARQL
// repositories.
//
// Queries go to the repository endpoint using the SPARQL 1.1 protocol
// (form-encoded POST, JSON results). Named graphs are dropped through the
// Graph Store HTTP Protocol at <endpoint>/rdf-graphs/service?graph=<IRI>.
// All query text and URLs are produced by the typed builders in request.go.
//
// Usage:
//
//	client, err := triplestore.New(triplestore.Config{
//	    Endpoint: "http://localhost:7200/repositories/ontology",
//	})
//	if err != nil {
//	    return err
//	}
//	if err := client.Ping(ctx); err != nil {
//	    return err // *storeerr.ConnectionError
//	}
//	graphs, err := client.ListGraphs(ctx, triplestore.GraphCountQuery{Limit: 500})
package triplestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dray-io/storejanitor/internal/storeerr"
)

const (
	mimeSPARQLResults = "application/sparql-results+json"
	maxErrorBody      = 512
)

// ErrUnexpectedStatus matches any *StatusError via errors.Is.
var ErrUnexpectedStatus = errors.New("triplestore: unexpected status")

// StatusError is returned when the store answers with an unexpected HTTP status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("triplestore: %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("triplestore: %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Config configures a triple store client.
type Config struct {
	// Endpoint is the repository URL, e.g. "http://localhost:7200/repositories/ontology".
	Endpoint string

	// Username and Password enable HTTP basic auth when set.
	Username string
	Password string

	// Timeout bounds a single HTTP request.
	// Default: 30 seconds.
	Timeout time.Duration

	// PingRetries is how many times Ping retries before giving up.
	// Default: 3
	PingRetries int

	// PingInitialInterval is the first backoff delay between ping attempts.
	// Default: 500ms
	PingInitialInterval time.Duration

	// HTTPClient overrides the default client (used by tests).
	HTTPClient *http.Client
}

// Client talks to one SPARQL repository.
type Client struct {
	endpoint string
	username string
	password string
	http     *http.Client

	pingRetries  int
	pingInterval time.Duration
}

// New creates a client. It does not contact the server.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("triplestore: endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("triplestore: invalid endpoint %q: %w", cfg.Endpoint, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PingRetries <= 0 {
		cfg.PingRetries = 3
	}
	if cfg.PingInitialInterval <= 0 {
		cfg.PingInitialInterval = 500 * time.Millisecond
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		username:     cfg.Username,
		password:     cfg.Password,
		http:         hc,
		pingRetries:  cfg.PingRetries,
		pingInterval: cfg.PingInitialInterval,
	}, nil
}

// Endpoint returns the repository URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, storeerr.Connection(storeerr.StoreTriple, c.endpoint, err)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// Select runs a query and decodes the JSON results.
func (c *Client) Select(ctx context.Context, q Query) (*Results, error) {
	text, err := q.SPARQL()
	if err != nil {
		return nil, err
	}

	form := url.Values{"query": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("triplestore: build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", mimeSPARQLResults)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("query", resp)
	}
	return decodeResults(resp.Body)
}

// Ask runs an ASK query.
func (c *Client) Ask(ctx context.Context, q Query) (bool, error) {
	res, err := c.Select(ctx, q)
	if err != nil {
		return false, err
	}
	if res.Boolean == nil {
		return false, errors.New("triplestore: ASK returned no boolean")
	}
	return *res.Boolean, nil
}

// Ping verifies the repository answers queries, retrying with exponential
// backoff. Authentication failures are not retried. Any failure is returned
// as a *storeerr.ConnectionError.
func (c *Client) Ping(ctx context.Context) error {
	op := func() error {
		_, err := c.Ask(ctx, PingQuery{})
		var se *StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.pingInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.pingRetries)), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return storeerr.Connection(storeerr.StoreTriple, c.endpoint, err)
	}
	return nil
}

// ListGraphs returns one page of named graphs.
func (c *Client) ListGraphs(ctx context.Context, q GraphCountQuery) ([]NamedGraph, error) {
	res, err := c.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	return graphsFromResults(res)
}

// ListOntologies returns one page of ontology records.
func (c *Client) ListOntologies(ctx context.Context, q OntologyListQuery) ([]OntologyRecord, error) {
	res, err := c.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	return ontologiesFromResults(res), nil
}

// DropGraph clears a named graph. Dropping a graph that does not exist
// succeeds, so a purge can be rerun safely.
func (c *Client) DropGraph(ctx context.Context, graph string) error {
	target, err := GraphStoreRequest{Method: http.MethodDelete, Graph: graph}.URL(c.endpoint)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return fmt.Errorf("triplestore: build delete request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusAccepted, http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	default:
		return statusError("drop graph", resp)
	}
}
