package gallery

import (
	nugetapi "github.com/matzehuels/nugallery/pkg/integrations/nuget"
)

// SearchResults is the cached outcome of one search query.
type SearchResults struct {
	// Query is the trimmed, lowercased query the results are keyed by.
	Query   string               `json:"query"`
	Results []nugetapi.SearchHit `json:"results"`

	// Err is the terminal fetch failure, if any.
	Err error `json:"-"`
}
