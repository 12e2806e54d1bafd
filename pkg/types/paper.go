// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Paper is a deduplicated bibliographic record assembled from one or more
// source result batches. The reconciled collection holds at most one Paper
// per identity; fields set by the first sighting are immutable, later
// events may fill fields that are still empty or upgrade enrichment fields.
type Paper struct {
	// ID is the stable identity key, DOI-derived where available.
	ID string `json:"id" yaml:"id"`

	// DOI is the Digital Object Identifier, when known.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Title is the paper title as returned by the first source to report it.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Abstract is the paper abstract or summary.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Year is the publication year (0 when unknown).
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Sources lists every source that returned this paper, in arrival order.
	Sources []string `json:"sources" yaml:"sources"`

	// Venue is the journal or conference name.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// CitationCount is filled by enrichment events (0 when unknown).
	CitationCount int `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`

	// Quartile is the journal quartile (e.g. "Q1"), filled by enrichment.
	Quartile string `json:"quartile,omitempty" yaml:"quartile,omitempty"`

	// SemanticScore is set once any semantic tier has scored this paper.
	SemanticScore *float64 `json:"semantic_score,omitempty" yaml:"semantic_score,omitempty"`

	// CombinedScore blends semantic and source relevance; it is the primary
	// ordering key once present.
	CombinedScore *float64 `json:"combined_score,omitempty" yaml:"combined_score,omitempty"`
}

// Score returns the ordering score for the paper: CombinedScore when set,
// otherwise SemanticScore, otherwise 0. Papers with no score keep their
// arrival order.
func (p *Paper) Score() float64 {
	if p.CombinedScore != nil {
		return *p.CombinedScore
	}
	if p.SemanticScore != nil {
		return *p.SemanticScore
	}
	return 0
}

// Clone returns a deep copy so snapshot consumers can never mutate
// reconciler-owned state.
func (p *Paper) Clone() Paper {
	out := *p
	if p.Authors != nil {
		out.Authors = append([]string(nil), p.Authors...)
	}
	if p.Sources != nil {
		out.Sources = append([]string(nil), p.Sources...)
	}
	if p.SemanticScore != nil {
		v := *p.SemanticScore
		out.SemanticScore = &v
	}
	if p.CombinedScore != nil {
		v := *p.CombinedScore
		out.CombinedScore = &v
	}
	return out
}
