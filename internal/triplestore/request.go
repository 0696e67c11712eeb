package triplestore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidIRI is returned when an IRI cannot be embedded in a query.
var ErrInvalidIRI = errors.New("triplestore: invalid IRI")

const (
	prefixOWL  = "PREFIX owl: <http://www.w3.org/2002/07/owl#>\n"
	prefixRDFS = "PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>\n"

	// valueSeparator joins grouped literals; the query spells it \u001F.
	valueSeparator = "\x1f"
)

// Query is a SPARQL query that can be rendered to text.
type Query interface {
	SPARQL() (string, error)
}

// FormatIRI renders iri as a SPARQL IRI reference.
func FormatIRI(iri string) (string, error) {
	if iri == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidIRI)
	}
	for _, r := range iri {
		if r <= 0x20 || strings.ContainsRune("<>\"{}|^`\\", r) {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidIRI, iri, r)
		}
	}
	return "<" + iri + ">", nil
}

// FormatLiteral renders s as a quoted SPARQL string literal.
func FormatLiteral(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return `"` + r.Replace(s) + `"`
}

func pageClause(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, "LIMIT %d\n", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&b, "OFFSET %d\n", offset)
	}
	return b.String()
}

// GraphCountQuery enumerates named graphs with their triple counts.
// Results are ordered by graph IRI. Setting After to the last IRI of the
// previous page gives pages that stay stable while graphs are dropped.
type GraphCountQuery struct {
	// Contains restricts results to graphs whose IRI contains the substring.
	Contains string
	After    string
	Limit    int
	Offset   int
}

// SPARQL renders the query.
func (q GraphCountQuery) SPARQL() (string, error) {
	var b strings.Builder
	b.WriteString("SELECT ?g (COUNT(*) AS ?count) WHERE {\n")
	b.WriteString("  GRAPH ?g { ?s ?p ?o }\n")
	if q.Contains != "" {
		fmt.Fprintf(&b, "  FILTER(CONTAINS(STR(?g), %s))\n", FormatLiteral(q.Contains))
	}
	if q.After != "" {
		fmt.Fprintf(&b, "  FILTER(STR(?g) > %s)\n", FormatLiteral(q.After))
	}
	b.WriteString("}\nGROUP BY ?g\nORDER BY ?g\n")
	b.WriteString(pageClause(q.Limit, q.Offset))
	return b.String(), nil
}

// OntologyListQuery enumerates owl:Ontology resources with their labels,
// comments and owning graph, one row per (graph, ontology) in that order.
// Labels and comments are joined with valueSeparator.
type OntologyListQuery struct {
	Contains string

	// AfterGraph and AfterOntology resume after the given row.
	AfterGraph    string
	AfterOntology string

	Limit  int
	Offset int
}

// SPARQL renders the query.
func (q OntologyListQuery) SPARQL() (string, error) {
	var b strings.Builder
	b.WriteString(prefixOWL)
	b.WriteString(prefixRDFS)
	b.WriteString("SELECT ?g ?o")
	b.WriteString(` (GROUP_CONCAT(DISTINCT STR(?label); separator="\u001F") AS ?labels)`)
	b.WriteString(` (GROUP_CONCAT(DISTINCT STR(?comment); separator="\u001F") AS ?comments)`)
	b.WriteString(" WHERE {\n")
	b.WriteString("  GRAPH ?g {\n")
	b.WriteString("    ?o a owl:Ontology .\n")
	b.WriteString("    OPTIONAL { ?o rdfs:label ?label }\n")
	b.WriteString("    OPTIONAL { ?o rdfs:comment ?comment }\n")
	b.WriteString("  }\n")
	if q.Contains != "" {
		fmt.Fprintf(&b, "  FILTER(CONTAINS(STR(?g), %s))\n", FormatLiteral(q.Contains))
	}
	if q.AfterGraph != "" {
		g := FormatLiteral(q.AfterGraph)
		fmt.Fprintf(&b, "  FILTER(STR(?g) > %s || (STR(?g) = %s && STR(?o) > %s))\n",
			g, g, FormatLiteral(q.AfterOntology))
	}
	b.WriteString("}\nGROUP BY ?g ?o\nORDER BY ?g ?o\n")
	b.WriteString(pageClause(q.Limit, q.Offset))
	return b.String(), nil
}

// PingQuery is the cheapest query a SPARQL endpoint can answer.
type PingQuery struct{}

// SPARQL renders the query.
func (PingQuery) SPARQL() (string, error) {
	return "ASK {}", nil
}

// GraphStoreRequest addresses one named graph through the SPARQL 1.1 Graph
// Store HTTP Protocol.
type GraphStoreRequest struct {
	Method string
	Graph  string
}

// URL returns the request URL relative to the repository endpoint.
func (r GraphStoreRequest) URL(endpoint string) (string, error) {
	if _, err := FormatIRI(r.Graph); err != nil {
		return "", err
	}
	base, err := url.Parse(strings.TrimRight(endpoint, "/") + "/rdf-graphs/service")
	if err != nil {
		return "", fmt.Errorf("triplestore: invalid endpoint %q: %w", endpoint, err)
	}
	base.RawQuery = url.Values{"graph": {r.Graph}}.Encode()
	return base.String(), nil
}
