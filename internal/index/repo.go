package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hollevik/vellum/internal/apperr"
	"github.com/hollevik/vellum/internal/models"
)

// ChapterRow represents a row in the chapters table.
type ChapterRow struct {
	ID        string
	NovelID   string
	Path      string
	Title     string
	WordCount int
	Order     int
	Status    models.ChapterStatus
	Checksum  string
	UpdatedAt time.Time
}

// ListItem converts the row to the lightweight projection.
func (r *ChapterRow) ListItem() models.ChapterListItem {
	return models.ChapterListItem{
		ID:        r.ID,
		NovelID:   r.NovelID,
		Title:     r.Title,
		WordCount: r.WordCount,
		Order:     r.Order,
		Status:    r.Status,
		UpdatedAt: r.UpdatedAt,
	}
}

// UpsertChapter inserts or replaces a chapter row.
func (db *DB) UpsertChapter(r ChapterRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO chapters (id, novel_id, path, title, word_count, sort_order, status, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			novel_id   = excluded.novel_id,
			path       = excluded.path,
			title      = excluded.title,
			word_count = excluded.word_count,
			sort_order = excluded.sort_order,
			status     = excluded.status,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, r.ID, r.NovelID, r.Path, r.Title, r.WordCount, r.Order, string(r.Status), r.Checksum, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert chapter: %w", err)
	}
	return nil
}

// DeleteChapter removes a chapter and its comments within a transaction.
func (db *DB) DeleteChapter(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, _ = tx.Exec(`DELETE FROM comments WHERE chapter_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM chapters WHERE id = ?`, id)

	return tx.Commit()
}

const chapterCols = `id, novel_id, path, title, word_count, sort_order, status, checksum, updated_at`

func scanChapter(row interface{ Scan(...any) error }) (*ChapterRow, error) {
	var r ChapterRow
	var status string
	if err := row.Scan(&r.ID, &r.NovelID, &r.Path, &r.Title, &r.WordCount, &r.Order, &status, &r.Checksum, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = models.ChapterStatus(status)
	return &r, nil
}

// GetChapter returns one chapter row, or apperr.ErrNotFound.
func (db *DB) GetChapter(id string) (*ChapterRow, error) {
	r, err := scanChapter(db.conn.QueryRow(
		`SELECT `+chapterCols+` FROM chapters WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get chapter: %w", err)
	}
	return r, nil
}

// ListChapters returns a novel's chapters in ascending sidebar order.
func (db *DB) ListChapters(novelID string) ([]ChapterRow, error) {
	rows, err := db.conn.Query(
		`SELECT `+chapterCols+` FROM chapters WHERE novel_id = ? ORDER BY sort_order ASC`, novelID)
	if err != nil {
		return nil, fmt.Errorf("index: list chapters: %w", err)
	}
	defer rows.Close()

	var out []ChapterRow
	for rows.Next() {
		r, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// MaxOrder returns the highest sort order among a novel's chapters, or 0
// when the novel has none. New chapters take MaxOrder+1, never the sibling
// count, so gaps left by deletions cannot collide.
func (db *DB) MaxOrder(novelID string) (int, error) {
	var max sql.NullInt64
	err := db.conn.QueryRow(
		`SELECT MAX(sort_order) FROM chapters WHERE novel_id = ?`, novelID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("index: max order: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

// NovelWordCount sums the derived word counts of a novel's chapters.
func (db *DB) NovelWordCount(novelID string) (int, error) {
	var sum sql.NullInt64
	err := db.conn.QueryRow(
		`SELECT SUM(word_count) FROM chapters WHERE novel_id = ?`, novelID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("index: novel word count: %w", err)
	}
	return int(sum.Int64), nil
}

// AllChecksums returns every indexed envelope path mapped to its checksum.
// Used by startup sync and rename reconciliation.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM chapters`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// DeleteByPath removes the chapter indexed at the given envelope path and
// returns its id (empty when nothing was indexed there).
func (db *DB) DeleteByPath(path string) (string, error) {
	var id string
	err := db.conn.QueryRow(`SELECT id FROM chapters WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: lookup by path: %w", err)
	}
	return id, db.DeleteChapter(id)
}

// InsertComment stores a new comment.
func (db *DB) InsertComment(c models.Comment) error {
	_, err := db.conn.Exec(`
		INSERT INTO comments (id, chapter_id, body, resolved, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.ChapterID, c.Body, c.Resolved, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("index: insert comment: %w", err)
	}
	return nil
}

// DeleteComment removes a comment, or returns apperr.ErrNotFound.
func (db *DB) DeleteComment(id string) error {
	res, err := db.conn.Exec(`DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ResolveComment marks a comment resolved and returns the updated record.
func (db *DB) ResolveComment(id string) (*models.Comment, error) {
	res, err := db.conn.Exec(`UPDATE comments SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("index: resolve comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.ErrNotFound
	}
	return db.GetComment(id)
}

// GetComment returns one comment, or apperr.ErrNotFound.
func (db *DB) GetComment(id string) (*models.Comment, error) {
	var c models.Comment
	err := db.conn.QueryRow(
		`SELECT id, chapter_id, body, resolved, created_at FROM comments WHERE id = ?`, id).
		Scan(&c.ID, &c.ChapterID, &c.Body, &c.Resolved, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get comment: %w", err)
	}
	return &c, nil
}

// ListComments returns a chapter's comments, oldest first.
func (db *DB) ListComments(chapterID string) ([]models.Comment, error) {
	rows, err := db.conn.Query(
		`SELECT id, chapter_id, body, resolved, created_at FROM comments WHERE chapter_id = ? ORDER BY created_at ASC`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("index: list comments: %w", err)
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ChapterID, &c.Body, &c.Resolved, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
