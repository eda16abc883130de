package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// SearchQuery describes a full-text catalog search with facet filters.
// Empty slice fields skip the corresponding facet. Loaders are merged into
// the categories facet, which is how the catalog models them.
type SearchQuery struct {
	Query  string
	Index  string // relevance, downloads, follows, newest, updated
	Limit  int
	Offset int

	GameVersions []string
	Categories   []string
	Loaders      []string
	ClientSide   []string
	ServerSide   []string
	OpenSource   *bool
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Hits      []SearchHit `json:"hits"`
	Offset    int         `json:"offset"`
	Limit     int         `json:"limit"`
	TotalHits int         `json:"total_hits"`
}

// Search runs a faceted full-text search against the catalog. Only mod
// projects are searched; the project_type facet is fixed.
func (c *Client) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Index == "" {
		q.Index = "relevance"
	}

	// Facets are a JSON array of AND-groups; entries inside a group are
	// OR-ed together.
	facets := [][]string{{"project_type:mod"}}
	for _, gv := range q.GameVersions {
		facets = append(facets, []string{"game_versions:" + gv})
	}
	for _, cat := range q.Categories {
		facets = append(facets, []string{"categories:" + cat})
	}
	for _, loader := range q.Loaders {
		facets = append(facets, []string{"categories:" + loader})
	}
	if len(q.ClientSide) > 0 {
		group := make([]string, 0, len(q.ClientSide))
		for _, side := range q.ClientSide {
			group = append(group, "client_side:"+side)
		}
		facets = append(facets, group)
	}
	if len(q.ServerSide) > 0 {
		group := make([]string, 0, len(q.ServerSide))
		for _, side := range q.ServerSide {
			group = append(group, "server_side:"+side)
		}
		facets = append(facets, group)
	}
	if q.OpenSource != nil {
		facets = append(facets, []string{fmt.Sprintf("open_source:%t", *q.OpenSource)})
	}

	encoded, err := json.Marshal(facets)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"query":  {q.Query},
		"index":  {q.Index},
		"limit":  {strconv.Itoa(q.Limit)},
		"offset": {strconv.Itoa(q.Offset)},
		"facets": {string(encoded)},
	}

	var result SearchResult
	if err := c.get(ctx, "/search", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
