package triplestore

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dray-io/storejanitor/internal/classify"
)

// Binding is one RDF term in a SPARQL JSON result row.
type Binding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Results is a decoded application/sparql-results+json document.
type Results struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]Binding `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean,omitempty"`
}

func decodeResults(r io.Reader) (*Results, error) {
	var res Results
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("triplestore: decode results: %w", err)
	}
	return &res, nil
}

// Rows returns the bindings as plain string values keyed by variable.
func (r *Results) Rows() []map[string]string {
	rows := make([]map[string]string, len(r.Results.Bindings))
	for i, b := range r.Results.Bindings {
		row := make(map[string]string, len(b))
		for k, v := range b {
			row[k] = v.Value
		}
		rows[i] = row
	}
	return rows
}

func graphsFromResults(res *Results) ([]NamedGraph, error) {
	graphs := make([]NamedGraph, 0, len(res.Results.Bindings))
	for _, row := range res.Rows() {
		g := row["g"]
		if g == "" {
			continue
		}
		count := 0
		if c := row["count"]; c != "" {
			n, err := strconv.Atoi(c)
			if err != nil {
				return nil, fmt.Errorf("triplestore: bad count %q for %s: %w", c, g, err)
			}
			count = n
		}
		graphs = append(graphs, NamedGraph{IRI: g, TripleCount: count})
	}
	return graphs, nil
}

// ontologiesFromResults expands each (graph, ontology) row into one record
// per label and comment pair, so every value is seen by the caller.
func ontologiesFromResults(res *Results) []OntologyRecord {
	records := make([]OntologyRecord, 0, len(res.Results.Bindings))
	for _, row := range res.Rows() {
		g, o := row["g"], row["o"]
		if g == "" || o == "" {
			continue
		}
		scope := string(classify.Classify(g).Scope())
		for _, label := range splitValues(row["labels"]) {
			for _, comment := range splitValues(row["comments"]) {
				records = append(records, OntologyRecord{
					OntologyID: LocalName(o),
					IRI:        o,
					Label:      label,
					Comment:    comment,
					GraphIRI:   g,
					Scope:      scope,
				})
			}
		}
	}
	return records
}

// splitValues returns at least one value so an ontology without labels or
// comments still yields a record.
func splitValues(joined string) []string {
	if joined == "" {
		return []string{""}
	}
	return strings.Split(joined, valueSeparator)
}
