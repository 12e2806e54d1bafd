// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"strings"
	"unicode"

	"github.com/shahabnazari/litstream/pkg/types"
)

// identityKeys returns the dedup keys for a paper, strongest first: DOI,
// then the server-assigned id, then the normalized title. Any of them
// matching an existing entry means the paper is the same work.
func identityKeys(p *types.Paper) []string {
	var keys []string
	if doi := normalizeDOI(p.DOI); doi != "" {
		keys = append(keys, "doi:"+doi)
	}
	if p.ID != "" {
		keys = append(keys, "id:"+p.ID)
	}
	if t := normalizeTitle(p.Title); t != "" {
		keys = append(keys, "title:"+t)
	}
	return keys
}

// normalizeDOI lowercases a DOI and strips common URL prefixes so the same
// work registered by different sources collides.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(strings.ToLower(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return doi
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the
// title for title-based dedup.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// mergeInto fills empty fields of dst from src. First-seen fields win;
// later sightings only add information, never remove it.
func mergeInto(dst *types.Paper, src *types.Paper) {
	if dst.DOI == "" && src.DOI != "" {
		dst.DOI = src.DOI
	}
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 && len(src.Authors) > 0 {
		dst.Authors = append([]string(nil), src.Authors...)
	}
	if dst.Abstract == "" && src.Abstract != "" {
		dst.Abstract = src.Abstract
	}
	if dst.Year == 0 && src.Year != 0 {
		dst.Year = src.Year
	}
	if dst.Venue == "" && src.Venue != "" {
		dst.Venue = src.Venue
	}
	if dst.Quartile == "" && src.Quartile != "" {
		dst.Quartile = src.Quartile
	}
	if src.CitationCount > dst.CitationCount {
		dst.CitationCount = src.CitationCount
	}
	for _, s := range src.Sources {
		addSource(dst, s)
	}
}

// addSource appends a source to the paper's source list if not present.
func addSource(p *types.Paper, source string) {
	if source == "" {
		return
	}
	for _, s := range p.Sources {
		if s == source {
			return
		}
	}
	p.Sources = append(p.Sources, source)
}
