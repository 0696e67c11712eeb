// Package policy decides whether a classified storage unit may be deleted.
//
// The same Policy value is shared by every purge mode. Decisions are pure
// functions of the unit, its classification, the mode and the scope filter.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dray-io/storejanitor/internal/classify"
)

// ErrUnknownMode is returned by ParseMode for unrecognized mode names.
var ErrUnknownMode = errors.New("policy: unknown mode")

// Mode selects which units a purge run targets.
type Mode string

const (
	// ModeDataOnly deletes everything except ontology graphs.
	ModeDataOnly Mode = "data-only"
	// ModeWorkspaceReset deletes schema and data of one workspace.
	ModeWorkspaceReset Mode = "workspace-reset"
	// ModeDanglingCleanup deletes ontologies matching the dangling signature.
	ModeDanglingCleanup Mode = "dangling-cleanup"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeDataOnly, ModeWorkspaceReset, ModeDanglingCleanup}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownMode, s, joinModes())
}

func joinModes() string {
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// Scope narrows a run to one tenant and/or workspace. The zero value
// matches everything.
type Scope struct {
	Tenant    string `json:"tenant,omitempty"`
	Workspace string `json:"workspace,omitempty"`
}

// IsZero reports whether the scope has no filter.
func (s Scope) IsZero() bool {
	return s.Tenant == "" && s.Workspace == ""
}

// Matches reports whether the classification falls inside the scope.
func (s Scope) Matches(c classify.Classification) bool {
	if s.Tenant != "" && c.Tenant != s.Tenant {
		return false
	}
	if s.Workspace != "" && c.Workspace != s.Workspace {
		return false
	}
	return true
}

// Unit is one deletable storage unit: a named graph, optionally with the
// ontology it defines.
type Unit struct {
	GraphIRI string

	// Ontology identity; empty for plain graphs.
	OntologyID string
	Label      string
	Comment    string
}

// HasOntology reports whether the unit carries ontology identity.
func (u Unit) HasOntology() bool {
	return u.OntologyID != "" || u.Label != ""
}

// Policy holds the denylist and heuristics used by ShouldDelete.
type Policy struct {
	// Denylist holds ontology ids or labels known to be dangling.
	// Compared case-insensitively.
	Denylist []string `yaml:"denylist"`

	// PlaceholderMarkers are substrings of comments written on
	// auto-generated placeholder ontologies. Compared case-insensitively.
	PlaceholderMarkers []string `yaml:"placeholderMarkers"`

	// PreserveWorkspaceSchema keeps workspace-schema graphs in data-only mode.
	PreserveWorkspaceSchema bool `yaml:"preserveWorkspaceSchema"`
}

// Default returns the policy used when no configuration is given.
func Default() Policy {
	return Policy{
		Denylist: []string{"company", "product"},
		PlaceholderMarkers: []string{
			"auto-generated placeholder",
			"placeholder ontology",
		},
	}
}

// ShouldDelete reports whether the unit may be deleted under mode.
func (p Policy) ShouldDelete(u Unit, c classify.Classification, mode Mode, scope Scope) bool {
	switch mode {
	case ModeDataOnly:
		if c.Category.IsOntology() || c.OntologyFallback {
			return false
		}
		if c.Category == classify.CategoryWorkspaceSchema && p.PreserveWorkspaceSchema {
			return false
		}
		return scope.Matches(c)

	case ModeWorkspaceReset:
		if scope.Workspace == "" || !c.Category.IsWorkspaceScoped() {
			return false
		}
		return scope.Matches(c)

	case ModeDanglingCleanup:
		if !u.HasOntology() || c.Category == classify.CategoryOther {
			return false
		}
		return p.IsDangling(u) && scope.Matches(c)

	default:
		return false
	}
}

// IsDangling reports whether the unit matches the dangling signature.
func (p Policy) IsDangling(u Unit) bool {
	for _, d := range p.Denylist {
		if d == "" {
			continue
		}
		if strings.EqualFold(u.OntologyID, d) || strings.EqualFold(u.Label, d) {
			return true
		}
	}

	comment := strings.ToLower(u.Comment)
	if comment == "" {
		return false
	}
	for _, marker := range p.PlaceholderMarkers {
		if marker != "" && strings.Contains(comment, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
