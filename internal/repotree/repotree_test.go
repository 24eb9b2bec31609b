package repotree

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codemap/internal/slogutil"
)

func TestIndex_Lookup(t *testing.T) {
	idx := NewIndex([]Tree{
		{Repo: Repository{Name: "test-org/repo2"}, Files: []string{"app/baz/qux.py", "src/foo/bar.py"}},
		{Repo: Repository{Name: "test-org/repo1"}, Files: []string{"src/foo/bar.py", "src/app/main.py"}},
	})

	assert.Equal(t, 4, idx.Len())

	entries := idx.Lookup("bar.py")
	require.Len(t, entries, 2)
	assert.Equal(t, "test-org/repo1", entries[0].Repo.Name, "repositories are indexed in name order")
	assert.Equal(t, "test-org/repo2", entries[1].Repo.Name)

	assert.Len(t, idx.Lookup("qux.py"), 1)
	assert.Empty(t, idx.Lookup("missing.py"))
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{1: {{Repo: Repository{Name: "r"}, Files: []string{"a.py"}}}}

	trees, err := p.Trees(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, trees, 1)

	trees, err = p.Trees(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, trees)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Trees(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProviderFunc(t *testing.T) {
	want := &APIError{StatusCode: 502, Message: "bad gateway"}
	p := ProviderFunc(func(ctx context.Context, org int64) ([]Tree, error) { return nil, want })

	_, err := p.Trees(context.Background(), 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 502, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestSnapshotProvider_InlineAndExclusions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trees.yaml")
	require.NoError(t, WriteSnapshot(path, Snapshot{Organizations: []OrganizationSnapshot{
		{ID: 1, Repositories: []RepositorySnapshot{
			{Name: "test-org/repo1", Branch: "master", Files: []string{
				"src/foo/bar.py",
				"node_modules/left-pad/index.js",
			}},
		}},
		{ID: 2, Repositories: []RepositorySnapshot{{Name: "other/repo", Branch: "main", Files: []string{"x.go"}}}},
	}}))

	p := NewSnapshotProvider(path, []string{"node_modules/"}, slogutil.NewDiscardLogger())

	trees, err := p.Trees(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, Repository{Name: "test-org/repo1", Branch: "master"}, trees[0].Repo)
	assert.Equal(t, []string{"src/foo/bar.py"}, trees[0].Files)

	trees, err = p.Trees(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, trees)
}

func TestSnapshotProvider_CompressedFileLists(t *testing.T) {
	dir := t.TempDir()

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	list := enc.EncodeAll([]byte("# repo2 files\nsrc/a/Bar.java\n\nsrc/x/y/Baz.java\n"), nil)
	require.NoError(t, enc.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "repo2.txt.zst"), list, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "repo3.txt"), []byte("lib/main.rb\n"), 0644))

	path := filepath.Join(dir, "trees.yaml.zst")
	require.NoError(t, WriteSnapshot(path, Snapshot{Organizations: []OrganizationSnapshot{
		{ID: 1, Repositories: []RepositorySnapshot{
			{Name: "test-org/repo2", Branch: "main", FilesFrom: "repo2.txt.zst"},
			{Name: "test-org/repo3", Branch: "main", Files: []string{"README.md"}, FilesFrom: "repo3.txt"},
		}},
	}}))

	p := NewSnapshotProvider(path, nil, slogutil.NewDiscardLogger())
	trees, err := p.Trees(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Equal(t, []string{"src/a/Bar.java", "src/x/y/Baz.java"}, trees[0].Files)
	assert.Equal(t, []string{"README.md", "lib/main.rb"}, trees[1].Files)
}

func TestSnapshotProvider_Errors(t *testing.T) {
	dir := t.TempDir()

	p := NewSnapshotProvider(filepath.Join(dir, "missing.yaml"), nil, slogutil.NewDiscardLogger())
	_, err := p.Trees(context.Background(), 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("organizations: [:"), 0644))
	_, err = NewSnapshotProvider(bad, nil, slogutil.NewDiscardLogger()).Trees(context.Background(), 1)
	assert.Error(t, err)
	assert.False(t, errors.As(err, &apiErr))

	missingList := filepath.Join(dir, "list.yaml")
	require.NoError(t, WriteSnapshot(missingList, Snapshot{Organizations: []OrganizationSnapshot{
		{ID: 1, Repositories: []RepositorySnapshot{{Name: "r", FilesFrom: "nope.txt"}}},
	}}))
	_, err = NewSnapshotProvider(missingList, nil, slogutil.NewDiscardLogger()).Trees(context.Background(), 1)
	assert.ErrorContains(t, err, "repository r")
}
