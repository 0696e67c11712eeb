// Package classify maps named-graph IRIs to storage categories.
//
// Classification looks only at the IRI path. The first matching rule wins:
//
//  1. /global/ontology       global-ontology
//  2. /tenant/<id>/ontology  tenant-ontology
//  3. a "schema" segment     workspace-schema
//  4. an "ontology" segment  workspace-schema when a workspace segment is
//     present, tenant-ontology otherwise (flagged as a fallback)
//  5. a workspace segment    workspace-data
//  6. anything else          other
//
// Rules 4 and 6 set Ambiguous. A fallback match is always treated as
// protected by the purge policy.
package classify

import "strings"

// Category is the storage category of a named graph.
type Category string

const (
	CategoryGlobalOntology  Category = "global-ontology"
	CategoryTenantOntology  Category = "tenant-ontology"
	CategoryWorkspaceSchema Category = "workspace-schema"
	CategoryWorkspaceData   Category = "workspace-data"
	CategoryOther           Category = "other"
)

// Categories lists every category in decision order.
var Categories = []Category{
	CategoryGlobalOntology,
	CategoryTenantOntology,
	CategoryWorkspaceSchema,
	CategoryWorkspaceData,
	CategoryOther,
}

// IsOntology reports whether c holds ontology definitions.
func (c Category) IsOntology() bool {
	return c == CategoryGlobalOntology || c == CategoryTenantOntology
}

// IsWorkspaceScoped reports whether c belongs to a single workspace.
func (c Category) IsWorkspaceScoped() bool {
	return c == CategoryWorkspaceSchema || c == CategoryWorkspaceData
}

// Scope names the ownership level of an ontology record.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeTenant    Scope = "tenant"
	ScopeWorkspace Scope = "workspace"
	ScopeUnknown   Scope = ""
)

// Classification is the result of Classify.
type Classification struct {
	Category  Category `json:"category"`
	Tenant    string   `json:"tenant,omitempty"`
	Workspace string   `json:"workspace,omitempty"`

	// Ambiguous is set when no specific rule matched.
	Ambiguous bool `json:"ambiguous,omitempty"`

	// OntologyFallback is set when only the generic "ontology" segment
	// matched.
	OntologyFallback bool `json:"ontologyFallback,omitempty"`
}

// Scope returns the ownership level implied by the classification.
func (c Classification) Scope() Scope {
	switch {
	case c.Category == CategoryGlobalOntology:
		return ScopeGlobal
	case c.Workspace != "":
		return ScopeWorkspace
	case c.Tenant != "" || c.Category == CategoryTenantOntology:
		return ScopeTenant
	default:
		return ScopeUnknown
	}
}

// pathSegments returns the non-empty segments of the IRI path, without
// scheme, authority, query or fragment.
func pathSegments(iri string) []string {
	rest := iri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			rest = rest[j:]
		} else {
			rest = ""
		}
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}

	var segs []string
	for _, s := range strings.Split(rest, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// segmentValue returns the segment following the first occurrence of name.
func segmentValue(segs []string, name string) (string, int) {
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] == name {
			return segs[i+1], i
		}
	}
	return "", -1
}

func hasPair(segs []string, a, b string) bool {
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] == a && segs[i+1] == b {
			return true
		}
	}
	return false
}

func hasSegment(segs []string, name string) bool {
	for _, s := range segs {
		if s == name {
			return true
		}
	}
	return false
}

// Classify returns the category of a named graph. It never fails.
func Classify(iri string) Classification {
	segs := pathSegments(iri)
	tenant, ti := segmentValue(segs, "tenant")
	workspace, _ := segmentValue(segs, "workspace")

	c := Classification{Tenant: tenant, Workspace: workspace}

	switch {
	case hasPair(segs, "global", "ontology"):
		c.Category = CategoryGlobalOntology
	case ti >= 0 && ti+2 < len(segs) && segs[ti+2] == "ontology":
		c.Category = CategoryTenantOntology
	case hasSegment(segs, "schema"):
		c.Category = CategoryWorkspaceSchema
	case hasSegment(segs, "ontology"):
		c.OntologyFallback = true
		c.Ambiguous = true
		if workspace != "" {
			c.Category = CategoryWorkspaceSchema
		} else {
			c.Category = CategoryTenantOntology
		}
	case workspace != "":
		c.Category = CategoryWorkspaceData
	default:
		c.Category = CategoryOther
		c.Ambiguous = true
	}
	return c
}
