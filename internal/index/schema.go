package index

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

func initSchema(db *sql.DB) error {
	var version int
	err := db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version == schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := createTables(tx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return tx.Commit()
}

func createTables(tx *sql.Tx) error {
	queries := []string{
		// Every indexed stylesheet.
		// - last_modified: mtime at indexing, used to skip unchanged files on rescan
		`CREATE TABLE IF NOT EXISTS files (
            path TEXT PRIMARY KEY,
            last_modified INTEGER NOT NULL
        )`,

		// Names declared, used or imported by a file. Rows go away with
		// their file.
		// - kind: definition | reference | import
		// - name: custom property name, or the imported file's path
		`CREATE TABLE IF NOT EXISTS symbols (
            path TEXT NOT NULL,
            name TEXT NOT NULL,
            kind TEXT NOT NULL,
            start_line INTEGER NOT NULL,
            start_char INTEGER NOT NULL,
            end_line INTEGER NOT NULL,
            end_char INTEGER NOT NULL,
            FOREIGN KEY (path) REFERENCES files(path) ON DELETE CASCADE
        )`,

		`CREATE INDEX IF NOT EXISTS idx_symbols_name
            ON symbols(name, kind)`,

		`CREATE INDEX IF NOT EXISTS idx_symbols_path
            ON symbols(path)`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}

	return nil
}
