package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mediastream/discovery/internal/domain"
)

// Catalog titles arrive localized; indexers want plain ASCII. NFD plus
// mark removal strips the diacritics, NFC recomposes what remains.
var asciiFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldASCII(s string) string {
	folded, _, err := transform.String(asciiFolder, s)
	if err != nil {
		return s
	}
	return folded
}

// NewQuery validates the raw search tuple and builds an immutable
// SearchQuery. All validation happens here, never at use.
func NewQuery(title, year, mediaType string, season, episode int, qualityFilter string) (domain.SearchQuery, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.SearchQuery{}, ErrEmptyTitle
	}

	media, err := domain.ParseMediaType(mediaType)
	if err != nil {
		return domain.SearchQuery{}, err
	}

	if season < 0 {
		return domain.SearchQuery{}, ErrInvalidSeason
	}
	if episode < 0 {
		return domain.SearchQuery{}, ErrInvalidEpisode
	}
	if episode > 0 && season == 0 {
		return domain.SearchQuery{}, ErrEpisodeNoSeason
	}

	return domain.SearchQuery{
		Title:         foldASCII(title),
		Year:          strings.TrimSpace(year),
		Media:         media,
		Season:        season,
		Episode:       episode,
		QualityFilter: strings.TrimSpace(qualityFilter),
	}, nil
}
