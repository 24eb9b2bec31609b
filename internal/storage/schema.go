package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}

		if err := createRepositoriesTable(tx); err != nil {
			return err
		}
		if err := createCodeMappingsTable(tx); err != nil {
			return err
		}
		if err := createProjectOptionsTable(tx); err != nil {
			return err
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	db.logger.Info("Running database migrations",
		"from_version", version,
		"to_version", currentSchemaVersion,
	)

	// A file created but never initialized has no tables yet.
	if version == 0 {
		return db.initializeSchema()
	}
	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// createSchemaVersionTable creates the schema_version tracking table
func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createRepositoriesTable creates the repositories table.
// A repository is unique per organization, name and integration.
func createRepositoriesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS repositories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			integration_id INTEGER NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			default_branch TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,

			UNIQUE (organization_id, name, integration_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create repositories table: %w", err)
	}
	return nil
}

// createCodeMappingsTable creates the code_mappings table
func createCodeMappingsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS code_mappings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			organization_id INTEGER NOT NULL,
			repository_id INTEGER NOT NULL,
			integration_id INTEGER NOT NULL,
			stack_root TEXT NOT NULL,
			source_root TEXT NOT NULL,
			default_branch TEXT NOT NULL DEFAULT '',
			automatically_generated INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,

			UNIQUE (project_id, stack_root, source_root),
			FOREIGN KEY (repository_id) REFERENCES repositories(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create code_mappings table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_code_mappings_project_id ON code_mappings(project_id)",
		"CREATE INDEX IF NOT EXISTS idx_code_mappings_repository_id ON code_mappings(repository_id)",
	}

	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createProjectOptionsTable creates the per-project key/value options table
func createProjectOptionsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS project_options (
			project_id INTEGER NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			PRIMARY KEY (project_id, key)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create project_options table: %w", err)
	}
	return nil
}
