// Package filestore is the relational FileStore external collaborator
// spec.md §6 describes: a per-directory `skonrad.db` holding the `files`
// and `directories` tables. Backed by modernc.org/sqlite (pure Go, no
// CGO), grounded on the teacher's internal/store/sqlite_bm25.go — same WAL
// pragmas, same single-writer connection pool, same "validate then
// auto-clear on corruption" startup discipline.
package filestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Fl0k3n/kfe/internal/kerrors"
	"github.com/Fl0k3n/kfe/internal/model"
)

const dbFileName = "skonrad.db"

// Store is the sqlite-backed FileStore for one directory: the `files` table
// (spec.md §3's file row) plus the shared `directories` registry table.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open opens (creating if absent) root/skonrad.db and ensures its schema.
func Open(root string) (*Store, error) {
	path := filepath.Join(root, dbFileName)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create directory root %s: %w", root, err)
	}

	if err := validateIntegrity(path); err != nil {
		_ = os.Remove(path)
		_ = os.Remove(path + "-wal")
		_ = os.Remove(path + "-shm")
	}

	dsn := path + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS directories (
	name TEXT PRIMARY KEY,
	fs_path TEXT NOT NULL,
	comma_separated_languages TEXT NOT NULL DEFAULT '',
	primary_language TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	rel_path TEXT NOT NULL,
	file_type TEXT NOT NULL,
	added_at INTEGER NOT NULL,
	modified_at INTEGER NOT NULL,
	indexed_at INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	is_screenshot INTEGER NOT NULL DEFAULT 0,
	ocr_text TEXT,
	is_ocr_analyzed INTEGER NOT NULL DEFAULT 0,
	transcript TEXT,
	is_transcript_analyzed INTEGER NOT NULL DEFAULT 0,
	is_transcript_fixed INTEGER NOT NULL DEFAULT 0,
	lemmatized_description TEXT,
	lemmatized_ocr_text TEXT,
	lemmatized_transcript TEXT,
	has_video_embedding_failed INTEGER NOT NULL DEFAULT 0,
	llm_description TEXT,
	is_llm_description_analyzed INTEGER NOT NULL DEFAULT 0,
	deleted_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_files_rel_path ON files(rel_path);
`

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(u int64) time.Time {
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0).UTC()
}

// nullable string helpers: sqlite NULL round-trips to Go "" via sql.NullString.
func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Insert adds a new file row, ignoring any caller-supplied ID, and returns
// the row with its assigned ID.
func (s *Store) Insert(ctx context.Context, f model.File) (model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO files (
			name, rel_path, file_type, added_at, modified_at, indexed_at,
			description, is_screenshot, ocr_text, is_ocr_analyzed,
			transcript, is_transcript_analyzed, is_transcript_fixed,
			lemmatized_description, lemmatized_ocr_text, lemmatized_transcript,
			has_video_embedding_failed, llm_description, is_llm_description_analyzed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, f.RelPath, string(f.Type), unixOrZero(f.AddedAt), unixOrZero(f.ModifiedAt), unixOrZero(f.IndexedAt),
		f.Description, f.IsScreenshot, nullStr(f.OCRText), f.IsOCRAnalyzed,
		nullStr(f.Transcript), f.IsTranscriptAnalyzed, f.IsTranscriptFixed,
		nullStr(f.LemmatizedDescription), nullStr(f.LemmatizedOCRText), nullStr(f.LemmatizedTranscript),
		f.HasVideoEmbeddingFailed, nullStr(f.LLMDescription), f.IsLLMDescriptionAnalyzed,
	)
	if err != nil {
		return model.File{}, fmt.Errorf("insert file %s: %w", f.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.File{}, err
	}
	f.ID = model.FileID(id)
	return f, nil
}

// Update replaces every mutable column of an existing file row, keyed by ID.
func (s *Store) Update(ctx context.Context, f model.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE files SET
			description = ?, is_screenshot = ?,
			ocr_text = ?, is_ocr_analyzed = ?,
			transcript = ?, is_transcript_analyzed = ?, is_transcript_fixed = ?,
			lemmatized_description = ?, lemmatized_ocr_text = ?, lemmatized_transcript = ?,
			has_video_embedding_failed = ?,
			llm_description = ?, is_llm_description_analyzed = ?,
			modified_at = ?, indexed_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		f.Description, f.IsScreenshot,
		nullStr(f.OCRText), f.IsOCRAnalyzed,
		nullStr(f.Transcript), f.IsTranscriptAnalyzed, f.IsTranscriptFixed,
		nullStr(f.LemmatizedDescription), nullStr(f.LemmatizedOCRText), nullStr(f.LemmatizedTranscript),
		f.HasVideoEmbeddingFailed,
		nullStr(f.LLMDescription), f.IsLLMDescriptionAnalyzed,
		unixOrZero(f.ModifiedAt), unixOrZero(f.IndexedAt),
		int64(f.ID),
	)
	if err != nil {
		return fmt.Errorf("update file %d: %w", f.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return kerrors.ErrFileNotIndexed
	}
	return nil
}

// SoftDelete marks id as deleted without removing its row, so a subsequent
// move-event create() racing with a stale delete() can still be told apart.
func (s *Store) SoftDelete(ctx context.Context, id model.FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE files SET deleted_at = ? WHERE id = ?`, time.Now().Unix(), int64(id))
	return err
}

const selectColumns = `id, name, rel_path, file_type, added_at, modified_at, indexed_at,
	description, is_screenshot, ocr_text, is_ocr_analyzed,
	transcript, is_transcript_analyzed, is_transcript_fixed,
	lemmatized_description, lemmatized_ocr_text, lemmatized_transcript,
	has_video_embedding_failed, llm_description, is_llm_description_analyzed`

func scanFile(row interface{ Scan(...any) error }) (model.File, error) {
	var f model.File
	var fileType string
	var addedAt, modifiedAt, indexedAt int64
	var ocr, transcript, lemDesc, lemOCR, lemTrans, llmDesc sql.NullString

	err := row.Scan(
		&f.ID, &f.Name, &f.RelPath, &fileType, &addedAt, &modifiedAt, &indexedAt,
		&f.Description, &f.IsScreenshot, &ocr, &f.IsOCRAnalyzed,
		&transcript, &f.IsTranscriptAnalyzed, &f.IsTranscriptFixed,
		&lemDesc, &lemOCR, &lemTrans,
		&f.HasVideoEmbeddingFailed, &llmDesc, &f.IsLLMDescriptionAnalyzed,
	)
	if err != nil {
		return model.File{}, err
	}
	f.Type = model.FileType(fileType)
	f.AddedAt = timeOrZero(addedAt)
	f.ModifiedAt = timeOrZero(modifiedAt)
	f.IndexedAt = timeOrZero(indexedAt)
	f.OCRText = ocr.String
	f.Transcript = transcript.String
	f.LemmatizedDescription = lemDesc.String
	f.LemmatizedOCRText = lemOCR.String
	f.LemmatizedTranscript = lemTrans.String
	f.LLMDescription = llmDesc.String
	return f, nil
}

// GetFile returns the file with the given ID, if present and not deleted.
func (s *Store) GetFile(ctx context.Context, id model.FileID) (model.File, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM files WHERE id = ? AND deleted_at IS NULL`, int64(id))
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return model.File{}, false, nil
	}
	if err != nil {
		return model.File{}, false, err
	}
	return f, true, nil
}

// FindByName returns the file with the given name, if present and not deleted.
func (s *Store) FindByName(ctx context.Context, name string) (model.File, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM files WHERE name = ? AND deleted_at IS NULL`, name)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return model.File{}, false, nil
	}
	if err != nil {
		return model.File{}, false, err
	}
	return f, true, nil
}

// FindByRelPath returns the file with the given relative path, if present.
func (s *Store) FindByRelPath(ctx context.Context, relPath string) (model.File, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM files WHERE rel_path = ? AND deleted_at IS NULL`, relPath)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return model.File{}, false, nil
	}
	if err != nil {
		return model.File{}, false, err
	}
	return f, true, nil
}

// AllFiles returns every non-deleted file row.
func (s *Store) AllFiles(ctx context.Context) ([]model.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM files WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// IsScreenshot implements search.FileLookup's screenshot-qualifier check.
func (s *Store) IsScreenshot(ctx context.Context, id model.FileID) (bool, error) {
	f, ok, err := s.GetFile(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	return f.IsScreenshot, nil
}

// DirectoryRow is one row of the shared `directories` registry table.
type DirectoryRow struct {
	Name             string
	FSPath           string
	Languages        []string
	PrimaryLanguage  string
}

// GetDirectory returns the directories table's row for name, if present.
func (s *Store) GetDirectory(ctx context.Context, name string) (DirectoryRow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var row DirectoryRow
	var langs string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, fs_path, comma_separated_languages, primary_language FROM directories WHERE name = ?`, name,
	).Scan(&row.Name, &row.FSPath, &langs, &row.PrimaryLanguage)
	if err == sql.ErrNoRows {
		return DirectoryRow{}, false, nil
	}
	if err != nil {
		return DirectoryRow{}, false, err
	}
	row.Languages = splitLanguages(langs)
	return row, true, nil
}

// AllDirectories returns every row of the shared directories table.
func (s *Store) AllDirectories(ctx context.Context) ([]DirectoryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT name, fs_path, comma_separated_languages, primary_language FROM directories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DirectoryRow
	for rows.Next() {
		var row DirectoryRow
		var langs string
		if err := rows.Scan(&row.Name, &row.FSPath, &langs, &row.PrimaryLanguage); err != nil {
			return nil, err
		}
		row.Languages = splitLanguages(langs)
		out = append(out, row)
	}
	return out, rows.Err()
}

func splitLanguages(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

// UpsertDirectory inserts or updates the directories table's row for d.Name.
func (s *Store) UpsertDirectory(ctx context.Context, d DirectoryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	langs := joinLanguages(d.Languages)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO directories (name, fs_path, comma_separated_languages, primary_language)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			fs_path = excluded.fs_path,
			comma_separated_languages = excluded.comma_separated_languages,
			primary_language = excluded.primary_language`,
		d.Name, d.FSPath, langs, d.PrimaryLanguage,
	)
	return err
}

func joinLanguages(langs []string) string {
	out := ""
	for i, l := range langs {
		if i > 0 {
			out += ","
		}
		out += l
	}
	return out
}
