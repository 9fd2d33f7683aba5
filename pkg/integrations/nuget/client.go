package nuget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/matzehuels/nugallery/pkg/integrations"
)

// Default endpoints.
const (
	DefaultPackageHost = "https://www.nuget.org"
	DefaultSearchHost  = "https://azuresearch-usnc.nuget.org"
	DefaultIndexHost   = "https://api.nuget.org/v3-flatcontainer"
)

// Options configures a Client. Zero fields select the defaults.
type Options struct {
	PackageHost string
	SearchHost  string
	IndexHost   string
	HTTPClient  *http.Client
}

// SearchHit is one package returned by a search query.
type SearchHit struct {
	ID             string `json:"id"`
	Version        string `json:"version"`
	Description    string `json:"description,omitempty"`
	IconURL        string `json:"icon_url,omitempty"`
	TotalDownloads int64  `json:"total_downloads"`
	Authors        string `json:"authors,omitempty"`
}

// Client accesses the NuGet gallery.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	packageHost string
	searchHost  string
	indexHost   string
}

// NewClient creates a NuGet client.
func NewClient(opts Options) *Client {
	headers := map[string]string{
		"User-Agent": integrations.UserAgent(),
	}
	return &Client{
		Client:      integrations.NewClient(opts.HTTPClient, headers),
		packageHost: strings.TrimRight(lo.CoalesceOrEmpty(opts.PackageHost, DefaultPackageHost), "/"),
		searchHost:  strings.TrimRight(lo.CoalesceOrEmpty(opts.SearchHost, DefaultSearchHost), "/"),
		indexHost:   strings.TrimRight(lo.CoalesceOrEmpty(opts.IndexHost, DefaultIndexHost), "/"),
	}
}

// PackageURL returns the canonical download URL of a package version.
func (c *Client) PackageURL(id, version string) string {
	return fmt.Sprintf("%s/api/v2/package/%s/%s", c.packageHost,
		integrations.PathEscape(id), integrations.PathEscape(version))
}

// Download fetches the package container bytes.
func (c *Client) Download(ctx context.Context, id, version string) ([]byte, error) {
	return c.GetBytes(ctx, c.PackageURL(id, version))
}

// Search runs a search query.
func (c *Client) Search(ctx context.Context, query string) ([]SearchHit, error) {
	var data searchResponse
	if err := c.Get(ctx, c.searchHost+"/query?q="+integrations.URLEncode(query), &data); err != nil {
		return nil, err
	}
	return lo.Map(data.Data, func(d searchItem, _ int) SearchHit {
		return SearchHit{
			ID:             d.ID,
			Version:        d.Version,
			Description:    d.Description,
			IconURL:        d.IconURL,
			TotalDownloads: d.TotalDownloads,
			Authors:        strings.Join(d.Authors, ", "),
		}
	}), nil
}

// Versions returns every published version of a package, as listed by the
// flat container index (ascending, normalized, lowercase).
func (c *Client) Versions(ctx context.Context, id string) ([]string, error) {
	var data indexResponse
	url := fmt.Sprintf("%s/%s/index.json", c.indexHost, integrations.PathEscape(strings.ToLower(id)))
	if err := c.Get(ctx, url, &data); err != nil {
		return nil, err
	}
	return data.Versions, nil
}

type searchResponse struct {
	TotalHits int          `json:"totalHits"`
	Data      []searchItem `json:"data"`
}

type searchItem struct {
	ID             string  `json:"id"`
	Version        string  `json:"version"`
	Description    string  `json:"description"`
	IconURL        string  `json:"iconUrl"`
	TotalDownloads int64   `json:"totalDownloads"`
	Authors        authors `json:"authors"`
}

type indexResponse struct {
	Versions []string `json:"versions"`
}

// authors accepts both the array form and the legacy single string form.
type authors []string

func (a *authors) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = authors{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*a = list
	return nil
}
