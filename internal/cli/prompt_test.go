package cli

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/modman-dev/modman/pkg/catalog"
	"github.com/modman-dev/modman/pkg/errors"
)

type fakeSearcher struct {
	hits     []catalog.SearchHit
	projects map[string]*catalog.Project
}

func (f *fakeSearcher) Search(_ context.Context, q catalog.SearchQuery) (*catalog.SearchResult, error) {
	return &catalog.SearchResult{Hits: f.hits, TotalHits: len(f.hits)}, nil
}

func (f *fakeSearcher) Project(_ context.Context, idOrSlug string) (*catalog.Project, error) {
	p, ok := f.projects[idOrSlug]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func testSearcher() *fakeSearcher {
	return &fakeSearcher{
		hits: []catalog.SearchHit{
			{ProjectID: "p1", Slug: "sodium", Title: "Sodium"},
			{ProjectID: "p2", Slug: "sodium-extra", Title: "Sodium Extra"},
		},
		projects: map[string]*catalog.Project{
			"p1": {ID: "p1", Slug: "sodium", Title: "Sodium"},
			"p2": {ID: "p2", Slug: "sodium-extra", Title: "Sodium Extra"},
		},
	}
}

func TestPicker_SelectsByNumber(t *testing.T) {
	p := newPicker(testSearcher(), strings.NewReader("2\n"), io.Discard, "fabric")

	got, err := p.Pick(context.Background(), "sodum")
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	if got.ID != "p2" {
		t.Errorf("expected p2, got %s", got.ID)
	}
}

func TestPicker_EmptyLineAborts(t *testing.T) {
	p := newPicker(testSearcher(), strings.NewReader("\n"), io.Discard, "")

	_, err := p.Pick(context.Background(), "sodum")
	if !errors.HasCode(err, errors.ErrCodeUnresolved) {
		t.Errorf("expected aborted selection, got %v", err)
	}
}

func TestPicker_EOFAborts(t *testing.T) {
	p := newPicker(testSearcher(), strings.NewReader(""), io.Discard, "")

	_, err := p.Pick(context.Background(), "sodum")
	if !errors.HasCode(err, errors.ErrCodeUnresolved) {
		t.Errorf("expected aborted selection, got %v", err)
	}
}

func TestPicker_InvalidSelection(t *testing.T) {
	for _, input := range []string{"0\n", "3\n", "x\n"} {
		p := newPicker(testSearcher(), strings.NewReader(input), io.Discard, "")
		if _, err := p.Pick(context.Background(), "sodum"); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
			t.Errorf("%q: expected invalid input, got %v", strings.TrimSpace(input), err)
		}
	}
}

func TestPicker_NoHits(t *testing.T) {
	p := newPicker(&fakeSearcher{}, strings.NewReader("1\n"), io.Discard, "")

	_, err := p.Pick(context.Background(), "ghost")
	if !errors.HasCode(err, errors.ErrCodeProjectNotFound) {
		t.Errorf("expected project not found, got %v", err)
	}
}
