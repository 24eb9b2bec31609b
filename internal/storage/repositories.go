package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Option keys holding a project's enhancement rules
const (
	AutomaticRulesKey = "codemap:automatic_grouping_enhancements"
	ManualRulesKey    = "codemap:grouping_enhancements"
)

// Repository represents a source code repository record
type Repository struct {
	ID             int64
	OrganizationID int64
	Name           string
	IntegrationID  int64
	Provider       string
	DefaultBranch  string
	CreatedAt      time.Time
}

// CodeMapping represents a code mapping record
type CodeMapping struct {
	ID                     int64
	ProjectID              int64
	OrganizationID         int64
	RepositoryID           int64
	RepositoryName         string
	IntegrationID          int64
	StackRoot              string
	SourceRoot             string
	DefaultBranch          string
	AutomaticallyGenerated bool
	CreatedAt              time.Time
}

// RepositoryStore provides CRUD operations for the repositories table
type RepositoryStore struct {
	db *DB
}

// NewRepositoryStore creates a new repository store
func NewRepositoryStore(db *DB) *RepositoryStore {
	return &RepositoryStore{db: db}
}

// Create inserts a repository and sets its ID
func (s *RepositoryStore) Create(ctx context.Context, repo *Repository) error {
	return insertRepository(ctx, s.db.conn, repo)
}

// Get retrieves a repository by organization, name and integration.
// It returns nil when there is none.
func (s *RepositoryStore) Get(ctx context.Context, organizationID int64, name string, integrationID int64) (*Repository, error) {
	return getRepository(ctx, s.db.conn, organizationID, name, integrationID)
}

// ListByOrganization returns the repositories of an organization's integration
func (s *RepositoryStore) ListByOrganization(ctx context.Context, organizationID, integrationID int64) ([]*Repository, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, organization_id, name, integration_id, provider, default_branch, created_at
		FROM repositories
		WHERE organization_id = ? AND integration_id = ?
		ORDER BY name
	`, organizationID, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var repos []*Repository
	for rows.Next() {
		var repo Repository
		var createdAt string
		if err := rows.Scan(&repo.ID, &repo.OrganizationID, &repo.Name, &repo.IntegrationID,
			&repo.Provider, &repo.DefaultBranch, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		if repo.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at format: %w", err)
		}
		repos = append(repos, &repo)
	}
	return repos, rows.Err()
}

func insertRepository(ctx context.Context, q querier, repo *Repository) error {
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = time.Now().UTC()
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO repositories (organization_id, name, integration_id, provider, default_branch, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		repo.OrganizationID,
		repo.Name,
		repo.IntegrationID,
		repo.Provider,
		repo.DefaultBranch,
		repo.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	repo.ID, err = result.LastInsertId()
	return err
}

func getRepository(ctx context.Context, q querier, organizationID int64, name string, integrationID int64) (*Repository, error) {
	var repo Repository
	var createdAt string
	err := q.QueryRowContext(ctx, `
		SELECT id, organization_id, name, integration_id, provider, default_branch, created_at
		FROM repositories
		WHERE organization_id = ? AND name = ? AND integration_id = ?
	`, organizationID, name, integrationID).Scan(
		&repo.ID,
		&repo.OrganizationID,
		&repo.Name,
		&repo.IntegrationID,
		&repo.Provider,
		&repo.DefaultBranch,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	if repo.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at format: %w", err)
	}
	return &repo, nil
}

// CodeMappingStore provides CRUD operations for the code_mappings table
type CodeMappingStore struct {
	db *DB
}

// NewCodeMappingStore creates a new code mapping store
func NewCodeMappingStore(db *DB) *CodeMappingStore {
	return &CodeMappingStore{db: db}
}

// Create inserts a code mapping and sets its ID
func (s *CodeMappingStore) Create(ctx context.Context, m *CodeMapping) error {
	_, err := insertCodeMapping(ctx, s.db.conn, m)
	return err
}

// ListByProject returns a project's code mappings in creation order
func (s *CodeMappingStore) ListByProject(ctx context.Context, projectID int64) ([]*CodeMapping, error) {
	return listCodeMappings(ctx, s.db.conn, projectID)
}

// insertCodeMapping inserts m unless the same (project, stack root, source
// root) exists. created is false when nothing was written.
func insertCodeMapping(ctx context.Context, q querier, m *CodeMapping) (created bool, err error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO code_mappings (
			project_id, organization_id, repository_id, integration_id,
			stack_root, source_root, default_branch, automatically_generated, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, stack_root, source_root) DO NOTHING
	`,
		m.ProjectID,
		m.OrganizationID,
		m.RepositoryID,
		m.IntegrationID,
		m.StackRoot,
		m.SourceRoot,
		m.DefaultBranch,
		m.AutomaticallyGenerated,
		m.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create code mapping: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	m.ID, err = result.LastInsertId()
	return true, err
}

func listCodeMappings(ctx context.Context, q querier, projectID int64) ([]*CodeMapping, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.id, m.project_id, m.organization_id, m.repository_id, r.name, m.integration_id,
		       m.stack_root, m.source_root, m.default_branch, m.automatically_generated, m.created_at
		FROM code_mappings m
		JOIN repositories r ON r.id = m.repository_id
		WHERE m.project_id = ?
		ORDER BY m.id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list code mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*CodeMapping
	for rows.Next() {
		var m CodeMapping
		var createdAt string
		if err := rows.Scan(
			&m.ID,
			&m.ProjectID,
			&m.OrganizationID,
			&m.RepositoryID,
			&m.RepositoryName,
			&m.IntegrationID,
			&m.StackRoot,
			&m.SourceRoot,
			&m.DefaultBranch,
			&m.AutomaticallyGenerated,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan code mapping: %w", err)
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at format: %w", err)
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}

// OptionStore reads and writes per-project options
type OptionStore struct {
	db *DB
}

// NewOptionStore creates a new option store
func NewOptionStore(db *DB) *OptionStore {
	return &OptionStore{db: db}
}

// Get returns the option value, or "" when unset
func (s *OptionStore) Get(ctx context.Context, projectID int64, key string) (string, error) {
	return getOption(ctx, s.db.conn, projectID, key)
}

// Set writes the option value
func (s *OptionStore) Set(ctx context.Context, projectID int64, key, value string) error {
	return setOption(ctx, s.db.conn, projectID, key, value)
}

func getOption(ctx context.Context, q querier, projectID int64, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx,
		"SELECT value FROM project_options WHERE project_id = ? AND key = ?",
		projectID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get option %s: %w", key, err)
	}
	return value, nil
}

func setOption(ctx context.Context, q querier, projectID int64, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO project_options (project_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, projectID, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set option %s: %w", key, err)
	}
	return nil
}
