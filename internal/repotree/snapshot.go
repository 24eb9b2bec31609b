package repotree

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Snapshot is the on-disk form of the trees served by SnapshotProvider.
type Snapshot struct {
	Organizations []OrganizationSnapshot `yaml:"organizations"`
}

// OrganizationSnapshot lists the repositories of one organization.
type OrganizationSnapshot struct {
	ID           int64                `yaml:"id"`
	Repositories []RepositorySnapshot `yaml:"repositories"`
}

// RepositorySnapshot is one repository tree. Files may be listed inline or
// read from FilesFrom, a newline-separated list (optionally .zst compressed)
// relative to the snapshot file.
type RepositorySnapshot struct {
	Name      string   `yaml:"name"`
	Branch    string   `yaml:"branch"`
	Files     []string `yaml:"files,omitempty"`
	FilesFrom string   `yaml:"filesFrom,omitempty"`
}

// SnapshotProvider serves repository trees from a YAML snapshot file.
// Files matching the exclusion patterns (gitignore syntax) are dropped.
type SnapshotProvider struct {
	path    string
	exclude *ignore.GitIgnore
	logger  *slog.Logger
}

// NewSnapshotProvider creates a provider reading path on every call.
func NewSnapshotProvider(path string, exclude []string, logger *slog.Logger) *SnapshotProvider {
	return &SnapshotProvider{
		path:    path,
		exclude: ignore.CompileIgnoreLines(exclude...),
		logger:  logger,
	}
}

// Trees loads the snapshot and returns the trees of organizationID.
// A missing snapshot is reported as a 404 APIError.
func (p *SnapshotProvider) Trees(ctx context.Context, organizationID int64) ([]Tree, error) {
	data, err := readFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &APIError{StatusCode: 404, Message: "no tree snapshot at " + p.path}
	}
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding tree snapshot %s: %w", p.path, err)
	}

	var repos []RepositorySnapshot
	for _, org := range snap.Organizations {
		if org.ID == organizationID {
			repos = org.Repositories
			break
		}
	}

	trees := make([]Tree, len(repos))
	g, gCtx := errgroup.WithContext(ctx)
	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			files := repo.Files
			if repo.FilesFrom != "" {
				listed, err := p.readFileList(repo.FilesFrom)
				if err != nil {
					return fmt.Errorf("repository %s: %w", repo.Name, err)
				}
				files = append(files, listed...)
			}
			trees[i] = Tree{
				Repo:  Repository{Name: repo.Name, Branch: repo.Branch},
				Files: p.filter(files),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("Loaded repository trees",
		"organization_id", organizationID,
		"repositories", len(trees),
	)
	return trees, nil
}

func (p *SnapshotProvider) readFileList(name string) ([]string, error) {
	if !filepath.IsAbs(name) {
		name = filepath.Join(filepath.Dir(p.path), name)
	}
	data, err := readFile(name)
	if err != nil {
		return nil, err
	}

	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			files = append(files, line)
		}
	}
	return files, scanner.Err()
}

func (p *SnapshotProvider) filter(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if p.exclude.MatchesPath(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// readFile reads name, decompressing it when it ends in .zst.
func readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(name, ".zst") {
		return data, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	return out, nil
}

// WriteSnapshot writes snap as YAML to path, compressing it when path ends
// in .zst.
func WriteSnapshot(path string, snap Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		data = enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
