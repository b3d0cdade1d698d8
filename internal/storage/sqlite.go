package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding chunk metadata, user profiles,
// generated-chapter caches, and the ingestion job queue.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "tbrag.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection avoids "database is locked" and keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection for the SQLite vector index, which shares the file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func parseTime(field, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// --- Chunks ---

// UpsertChunks writes chunk metadata rows in one transaction. Re-ingesting a
// chunk id replaces its row.
func (s *Store) UpsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning chunk transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceChapterChunks swaps the chunk rows of a chapter for chunks in one
// transaction and returns the ids the chapter had before. On error the old
// rows are left untouched. Every chunk must belong to chapterID.
func (s *Store) ReplaceChapterChunks(ctx context.Context, chapterID int, chunks []Chunk) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning chunk transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE chapter_id = ?`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks of chapter %d: %w", chapterID, err)
	}
	var previous []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		previous = append(previous, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE chapter_id = ?`, chapterID); err != nil {
		return nil, fmt.Errorf("deleting chunks of chapter %d: %w", chapterID, err)
	}
	for _, c := range chunks {
		if c.ChapterID != chapterID {
			return nil, fmt.Errorf("chunk %s belongs to chapter %d, not %d", c.ID, c.ChapterID, chapterID)
		}
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing chapter %d: %w", chapterID, err)
	}
	return previous, nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []Chunk) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, chapter_id, section_id, section_title, chunk_index, text_content, char_count, token_count, preview_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chapter_id = excluded.chapter_id, section_id = excluded.section_id,
			section_title = excluded.section_title, chunk_index = excluded.chunk_index,
			text_content = excluded.text_content, char_count = excluded.char_count,
			token_count = excluded.token_count, preview_text = excluded.preview_text`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.ChapterID, c.SectionID, c.SectionTitle, c.ChunkIndex,
			c.Text, c.CharCount, c.TokenCount, c.PreviewText, createdAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// GetChunksByIDs returns the rows for ids that exist, keyed by id.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) (map[string]Chunk, error) {
	out := make(map[string]Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat(",?", len(ids)-1)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chapter_id, section_id, section_title, chunk_index, text_content, char_count, token_count, preview_text, created_at
		FROM chunks WHERE id IN (?`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Chunk
		var createdAt string
		if err := rows.Scan(&c.ID, &c.ChapterID, &c.SectionID, &c.SectionTitle, &c.ChunkIndex,
			&c.Text, &c.CharCount, &c.TokenCount, &c.PreviewText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if c.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// CountChunks returns the number of chunk rows.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// --- User profiles ---

// UpsertProfile inserts or replaces the profile of p.UserID.
func (s *Store) UpsertProfile(ctx context.Context, p UserProfile) error {
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, software_experience, robotics_experience, hardware_access, learning_goals, profile_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			software_experience = excluded.software_experience,
			robotics_experience = excluded.robotics_experience,
			hardware_access = excluded.hardware_access,
			learning_goals = excluded.learning_goals,
			profile_hash = excluded.profile_hash,
			updated_at = excluded.updated_at`,
		p.UserID, p.SoftwareExperience, p.RoboticsExperience, p.HardwareAccess, p.LearningGoals, p.ProfileHash, ts, ts,
	)
	return err
}

// GetProfile returns the profile of userID or ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	var p UserProfile
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, software_experience, robotics_experience, hardware_access, learning_goals, profile_hash, created_at, updated_at
		FROM user_profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.SoftwareExperience, &p.RoboticsExperience, &p.HardwareAccess, &p.LearningGoals, &p.ProfileHash, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return UserProfile{}, ErrNotFound
	}
	if err != nil {
		return UserProfile{}, err
	}
	if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return UserProfile{}, err
	}
	if p.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return UserProfile{}, err
	}
	return p, nil
}

// --- Generated chapter caches ---

// GetPersonalizedChapter returns the cache row for (userID, chapterID, profileHash) or ErrNotFound.
func (s *Store) GetPersonalizedChapter(ctx context.Context, userID string, chapterID int, profileHash string) (PersonalizedChapter, error) {
	var pc PersonalizedChapter
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, chapter_id, profile_hash, storage_path, generation_time_ms, created_at
		FROM personalized_chapters WHERE user_id = ? AND chapter_id = ? AND profile_hash = ?`,
		userID, chapterID, profileHash,
	).Scan(&pc.UserID, &pc.ChapterID, &pc.ProfileHash, &pc.StoragePath, &pc.GenerationTimeMs, &createdAt)
	if err == sql.ErrNoRows {
		return PersonalizedChapter{}, ErrNotFound
	}
	if err != nil {
		return PersonalizedChapter{}, err
	}
	if pc.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return PersonalizedChapter{}, err
	}
	return pc, nil
}

// UpsertPersonalizedChapter records or refreshes a personalized chapter locator.
func (s *Store) UpsertPersonalizedChapter(ctx context.Context, pc PersonalizedChapter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO personalized_chapters (user_id, chapter_id, profile_hash, storage_path, generation_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, chapter_id, profile_hash) DO UPDATE SET
			storage_path = excluded.storage_path,
			generation_time_ms = excluded.generation_time_ms,
			created_at = excluded.created_at`,
		pc.UserID, pc.ChapterID, pc.ProfileHash, pc.StoragePath, pc.GenerationTimeMs, now(),
	)
	return err
}

// GetTranslatedChapter returns the cache row for (userID, chapterID, lang) or ErrNotFound.
func (s *Store) GetTranslatedChapter(ctx context.Context, userID string, chapterID int, lang string) (TranslatedChapter, error) {
	var tc TranslatedChapter
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, chapter_id, target_language, translated_content, generation_time_ms, created_at
		FROM translated_chapters WHERE user_id = ? AND chapter_id = ? AND target_language = ?`,
		userID, chapterID, lang,
	).Scan(&tc.UserID, &tc.ChapterID, &tc.TargetLanguage, &tc.TranslatedContent, &tc.GenerationTimeMs, &createdAt)
	if err == sql.ErrNoRows {
		return TranslatedChapter{}, ErrNotFound
	}
	if err != nil {
		return TranslatedChapter{}, err
	}
	if tc.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return TranslatedChapter{}, err
	}
	return tc, nil
}

// UpsertTranslatedChapter records or refreshes a translated chapter.
func (s *Store) UpsertTranslatedChapter(ctx context.Context, tc TranslatedChapter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO translated_chapters (user_id, chapter_id, target_language, translated_content, generation_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, chapter_id, target_language) DO UPDATE SET
			translated_content = excluded.translated_content,
			generation_time_ms = excluded.generation_time_ms,
			created_at = excluded.created_at`,
		tc.UserID, tc.ChapterID, tc.TargetLanguage, tc.TranslatedContent, tc.GenerationTimeMs, now(),
	)
	return err
}
