// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Purpose tells the server which research workflow the search feeds, which
// affects server-side quality weighting. Opaque to the client beyond
// validation and pass-through.
type Purpose string

const (
	PurposeQMethodology         Purpose = "q_methodology"
	PurposeQualitativeAnalysis  Purpose = "qualitative_analysis"
	PurposeLiteratureSynthesis  Purpose = "literature_synthesis"
	PurposeHypothesisGeneration Purpose = "hypothesis_generation"
	PurposeSurveyConstruction   Purpose = "survey_construction"
)

// Valid reports whether p is a defined purpose (empty is allowed and means
// server default).
func (p Purpose) Valid() bool {
	switch p {
	case "", PurposeQMethodology, PurposeQualitativeAnalysis,
		PurposeLiteratureSynthesis, PurposeHypothesisGeneration,
		PurposeSurveyConstruction:
		return true
	}
	return false
}

// SearchOptions are the client-side parameters sent with a start-search
// command. Zero values mean "server default".
type SearchOptions struct {
	Limit           int      `json:"limit,omitempty" yaml:"limit,omitempty"`
	Page            int      `json:"page,omitempty" yaml:"page,omitempty"`
	YearFrom        int      `json:"yearFrom,omitempty" yaml:"year_from,omitempty"`
	YearTo          int      `json:"yearTo,omitempty" yaml:"year_to,omitempty"`
	MinCitations    int      `json:"minCitations,omitempty" yaml:"min_citations,omitempty"`
	PublicationType string   `json:"publicationType,omitempty" yaml:"publication_type,omitempty"`
	Author          string   `json:"author,omitempty" yaml:"author,omitempty"`
	SortBy          string   `json:"sortBy,omitempty" yaml:"sort_by,omitempty"`
	Sources         []string `json:"sources,omitempty" yaml:"sources,omitempty"`
	Purpose         Purpose  `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	HasFullTextOnly bool     `json:"hasFullTextOnly,omitempty" yaml:"has_full_text_only,omitempty"`
	ExcludeBooks    bool     `json:"excludeBooks,omitempty" yaml:"exclude_books,omitempty"`
}
