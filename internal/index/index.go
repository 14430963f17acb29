// Package index is the workspace-wide symbol store behind cross-file
// references, rename and import tracking for stylesheets.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = fmt.Errorf("record not found")

	// ErrInvalidTransaction is returned when a transaction operation fails
	ErrInvalidTransaction = fmt.Errorf("invalid transaction")
)

type Kind string

const (
	Definition Kind = "definition"
	Reference  Kind = "reference"
	Import     Kind = "import"
)

type FileRecord struct {
	Path         string
	LastModified int64
}

type Symbol struct {
	Path  string
	Name  string
	Kind  Kind
	Range protocol.Range
}

type Index struct {
	db *sql.DB
}

// Open opens (or creates) the index at path. Use ":memory:" for a private
// in-memory index.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`
        PRAGMA foreign_keys = ON;
        PRAGMA journal_mode = WAL;
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Index{db: db}, nil
}

// WithTx runs fn in a transaction that is committed when fn succeeds.
func (ix *Index) WithTx(fn func(tx *Tx) error) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	return nil
}

// Commit replaces everything recorded for path.
func (ix *Index) Commit(path string, lastModified int64, symbols []Symbol) error {
	return ix.WithTx(func(tx *Tx) error {
		if err := tx.UpsertFile(&FileRecord{Path: path, LastModified: lastModified}); err != nil {
			return err
		}
		return tx.ReplaceSymbols(path, symbols)
	})
}

func (ix *Index) GetFile(path string) (*FileRecord, error) {
	var record FileRecord
	err := ix.db.QueryRow(
		"SELECT path, last_modified FROM files WHERE path = ?",
		path,
	).Scan(&record.Path, &record.LastModified)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query file: %w", err)
	}

	return &record, nil
}

func (ix *Index) GetAllFiles() ([]FileRecord, error) {
	rows, err := ix.db.Query("SELECT path, last_modified FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var record FileRecord
		if err := rows.Scan(&record.Path, &record.LastModified); err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file records: %w", err)
	}

	return records, nil
}

// Delete forgets path and everything recorded for it.
func (ix *Index) Delete(path string) error {
	result, err := ix.db.Exec("DELETE FROM files WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Lookup returns every symbol with the given name and kind, ordered by
// file and position.
func (ix *Index) Lookup(name string, kind Kind) ([]Symbol, error) {
	rows, err := ix.db.Query(`
        SELECT path, name, kind, start_line, start_char, end_line, end_char
        FROM symbols
        WHERE name = ? AND kind = ?
        ORDER BY path, start_line, start_char
    `, name, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	return scanSymbols(rows)
}

// All returns every symbol of kind, ordered by name.
func (ix *Index) All(kind Kind) ([]Symbol, error) {
	rows, err := ix.db.Query(`
        SELECT path, name, kind, start_line, start_char, end_line, end_char
        FROM symbols
        WHERE kind = ?
        ORDER BY name, path, start_line, start_char
    `, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	return scanSymbols(rows)
}

func (ix *Index) Definitions(name string) ([]Symbol, error) {
	return ix.Lookup(name, Definition)
}

func (ix *Index) References(name string) ([]Symbol, error) {
	return ix.Lookup(name, Reference)
}

// Importers returns the import sites that point at path.
func (ix *Index) Importers(path string) ([]Symbol, error) {
	return ix.Lookup(path, Import)
}

// Paths lists every indexed file.
func (ix *Index) Paths() ([]string, error) {
	records, err := ix.GetAllFiles()
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(records))
	for i, r := range records {
		paths[i] = r.Path
	}
	return paths, nil
}

// SymbolsIn returns everything recorded for path.
func (ix *Index) SymbolsIn(path string) ([]Symbol, error) {
	rows, err := ix.db.Query(`
        SELECT path, name, kind, start_line, start_char, end_line, end_char
        FROM symbols
        WHERE path = ?
        ORDER BY start_line, start_char
    `, path)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	return scanSymbols(rows)
}

func (ix *Index) Clear() error {
	_, err := ix.db.Exec(`
        DELETE FROM symbols;
        DELETE FROM files;
    `)
	if err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}
	return nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

func scanSymbols(rows *sql.Rows) ([]Symbol, error) {
	var symbols []Symbol
	for rows.Next() {
		var s Symbol
		var kind string
		if err := rows.Scan(
			&s.Path, &s.Name, &kind,
			&s.Range.Start.Line, &s.Range.Start.Character,
			&s.Range.End.Line, &s.Range.End.Character,
		); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		s.Kind = Kind(kind)
		symbols = append(symbols, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

type Tx struct {
	tx *sql.Tx
}

func (tx *Tx) UpsertFile(file *FileRecord) error {
	_, err := tx.tx.Exec(`
        INSERT INTO files (path, last_modified)
        VALUES (?, ?)
        ON CONFLICT(path) DO UPDATE SET
            last_modified = excluded.last_modified
    `, file.Path, file.LastModified)

	if err != nil {
		return fmt.Errorf("failed to upsert file in transaction: %w", err)
	}

	return nil
}

func (tx *Tx) ReplaceSymbols(path string, symbols []Symbol) error {
	if _, err := tx.tx.Exec("DELETE FROM symbols WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to delete existing symbols: %w", err)
	}

	if len(symbols) == 0 {
		return nil
	}

	stmt, err := tx.tx.Prepare(`
        INSERT INTO symbols (path, name, kind, start_line, start_char, end_line, end_char)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("failed to prepare symbol insert statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range symbols {
		if _, err := stmt.Exec(
			path, s.Name, string(s.Kind),
			s.Range.Start.Line, s.Range.Start.Character,
			s.Range.End.Line, s.Range.End.Character,
		); err != nil {
			return fmt.Errorf("failed to insert symbol %s: %w", s.Name, err)
		}
	}

	return nil
}
