package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/modman-dev/modman/pkg/catalog"
	"github.com/modman-dev/modman/pkg/errors"
)

// promptLimit is how many search hits a disambiguation prompt offers.
const promptLimit = 9

// searcher is the catalog surface the prompt needs.
type searcher interface {
	Search(ctx context.Context, q catalog.SearchQuery) (*catalog.SearchResult, error)
	Project(ctx context.Context, idOrSlug string) (*catalog.Project, error)
}

// stdinPicker disambiguates failed project references by searching the
// catalog and asking the user to pick a numbered hit. An empty line or EOF
// aborts only the request being disambiguated.
type stdinPicker struct {
	catalog searcher
	in      io.Reader
	out     io.Writer
	loader  string
}

func newPicker(c searcher, in io.Reader, out io.Writer, loader string) *stdinPicker {
	return &stdinPicker{catalog: c, in: in, out: out, loader: loader}
}

func (p *stdinPicker) Pick(ctx context.Context, query string) (*catalog.Project, error) {
	q := catalog.SearchQuery{Query: query, Limit: promptLimit}
	if p.loader != "" {
		q.Loaders = []string{p.loader}
	}
	result, err := p.catalog.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(result.Hits) == 0 {
		return nil, errors.New(errors.ErrCodeProjectNotFound, "no catalog match for %q", query)
	}

	fmt.Fprintf(p.out, "%q is ambiguous, did you mean:\n", query)
	for i, hit := range result.Hits {
		fmt.Fprintf(p.out, "  %d) %s (%s) · %s\n", i+1, hit.Title, hit.Slug, truncate(hit.Description, 60))
	}
	fmt.Fprintf(p.out, "Pick 1-%d (empty to skip): ", len(result.Hits))

	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return nil, errors.New(errors.ErrCodeUnresolved, "selection aborted")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, errors.New(errors.ErrCodeUnresolved, "selection aborted")
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(result.Hits) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid selection %q", line)
	}
	return p.catalog.Project(ctx, result.Hits[n-1].ProjectID)
}
