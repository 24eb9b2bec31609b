// Package repotree holds the file trees of an organization's repositories and
// the index used to look up candidate files by basename.
package repotree

import (
	"context"
	"fmt"
	"path"
	"sort"
)

// Repository identifies a repository and the branch its tree was read from.
type Repository struct {
	Name   string `yaml:"name" json:"name"`
	Branch string `yaml:"branch" json:"branch"`
}

// Tree is the flat list of file paths of one repository at one branch.
type Tree struct {
	Repo  Repository
	Files []string
}

// Provider returns the repository trees visible to an organization's
// installation. Implementations return *APIError for upstream failures.
type Provider interface {
	Trees(ctx context.Context, organizationID int64) ([]Tree, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, organizationID int64) ([]Tree, error)

// Trees calls f.
func (f ProviderFunc) Trees(ctx context.Context, organizationID int64) ([]Tree, error) {
	return f(ctx, organizationID)
}

// StaticProvider serves fixed trees per organization.
type StaticProvider map[int64][]Tree

// Trees returns the trees registered for organizationID.
func (p StaticProvider) Trees(ctx context.Context, organizationID int64) ([]Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p[organizationID], nil
}

// APIError is an upstream source-code provider failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("source provider error (status %d): %s", e.StatusCode, e.Message)
}

// Entry is one repository file found by the index.
type Entry struct {
	Repo Repository
	Path string
}

// Index maps file basenames to the repository files carrying them.
type Index struct {
	byBase map[string][]Entry
	files  int
}

// NewIndex indexes trees. Entries for one basename keep repository order,
// sorted by repository name, then file order.
func NewIndex(trees []Tree) *Index {
	sorted := make([]Tree, len(trees))
	copy(sorted, trees)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Repo.Name < sorted[j].Repo.Name })

	idx := &Index{byBase: make(map[string][]Entry)}
	for _, t := range sorted {
		for _, f := range t.Files {
			base := path.Base(f)
			idx.byBase[base] = append(idx.byBase[base], Entry{Repo: t.Repo, Path: f})
			idx.files++
		}
	}
	return idx
}

// Lookup returns the files whose basename equals base.
func (i *Index) Lookup(base string) []Entry {
	return i.byBase[base]
}

// Len returns the number of indexed files.
func (i *Index) Len() int {
	return i.files
}
