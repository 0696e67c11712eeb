package triplestore

import "strings"

// NamedGraph is one row of the graph enumeration query.
type NamedGraph struct {
	IRI         string `json:"iri"`
	TripleCount int    `json:"tripleCount"`
}

// OntologyRecord describes an owl:Ontology resource and the graph holding it.
type OntologyRecord struct {
	OntologyID string `json:"ontologyId"`
	IRI        string `json:"iri"`
	Label      string `json:"label"`
	Comment    string `json:"comment,omitempty"`
	GraphIRI   string `json:"graphIri"`
	Scope      string `json:"scope,omitempty"`
}

// LocalName returns the part of an IRI after the last '#' or '/'.
func LocalName(iri string) string {
	trimmed := strings.TrimRight(iri, "/#")
	if i := strings.LastIndexAny(trimmed, "#/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
