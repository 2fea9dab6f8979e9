// Package catalog stores the chapter catalog that fronts the simulators.
// Chapters are seeded from YAML and kept in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite" // SQLite driver
)

var ErrChapterNotFound = errors.New("catalog: chapter not found")

type Chapter struct {
	ID           int64     `yaml:"-" json:"id"`
	Title        string    `yaml:"title" json:"title"`
	Description  string    `yaml:"description" json:"description"`
	Category     string    `yaml:"category" json:"category"`
	Order        int       `yaml:"order" json:"order"`
	Objectives   []string  `yaml:"objectives" json:"objectives"`
	QuickRead    string    `yaml:"quickRead" json:"quickRead"`
	Content      string    `yaml:"content" json:"content"`
	TimeEstimate string    `yaml:"timeEstimate" json:"timeEstimate"`
	IsPublished  bool      `yaml:"isPublished" json:"isPublished"`
	CreatedAt    time.Time `yaml:"-" json:"createdAt"`
	UpdatedAt    time.Time `yaml:"-" json:"updatedAt"`
}

type seedFile struct {
	Chapters []Chapter `yaml:"chapters"`
}

// SeedReport counts what a Seed call did.
type SeedReport struct {
	Created int
	Updated int
}

type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert finds a chapter by title and updates it, or creates it. It reports
// whether a row was created.
func (s *Store) Upsert(ctx context.Context, ch Chapter) (bool, error) {
	return upsert(ctx, s.db, ch)
}

func upsert(ctx context.Context, q querier, ch Chapter) (bool, error) {
	if ch.Title == "" {
		return false, errors.New("catalog: chapter title is required")
	}
	objectives := ch.Objectives
	if objectives == nil {
		objectives = []string{}
	}
	objJSON, err := json.Marshal(objectives)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var id int64
	err = q.QueryRowContext(ctx, `SELECT id FROM chapters WHERE title = ?`, ch.Title).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = q.ExecContext(ctx, `
			INSERT INTO chapters (title, description, category, order_index, objectives,
				quick_read, content, time_estimate, is_published, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ch.Title, ch.Description, ch.Category, ch.Order, string(objJSON),
			ch.QuickRead, ch.Content, ch.TimeEstimate, ch.IsPublished, now, now)
		if err != nil {
			return false, fmt.Errorf("insert %q: %w", ch.Title, err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("lookup %q: %w", ch.Title, err)
	}

	_, err = q.ExecContext(ctx, `
		UPDATE chapters SET description = ?, category = ?, order_index = ?, objectives = ?,
			quick_read = ?, content = ?, time_estimate = ?, is_published = ?, updated_at = ?
		WHERE id = ?`,
		ch.Description, ch.Category, ch.Order, string(objJSON),
		ch.QuickRead, ch.Content, ch.TimeEstimate, ch.IsPublished, now, id)
	if err != nil {
		return false, fmt.Errorf("update %q: %w", ch.Title, err)
	}
	return false, nil
}

// Seed loads a YAML chapter file and upserts every chapter in one transaction.
func (s *Store) Seed(ctx context.Context, path string) (SeedReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedReport{}, err
	}
	return s.SeedYAML(ctx, data)
}

func (s *Store) SeedYAML(ctx context.Context, data []byte) (SeedReport, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return SeedReport{}, fmt.Errorf("parse seed file: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SeedReport{}, err
	}
	defer tx.Rollback()

	var report SeedReport
	for _, ch := range file.Chapters {
		created, err := upsert(ctx, tx, ch)
		if err != nil {
			return SeedReport{}, err
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}
	if err := tx.Commit(); err != nil {
		return SeedReport{}, fmt.Errorf("commit seed: %w", err)
	}
	return report, nil
}

const selectChapter = `SELECT id, title, description, category, order_index, objectives,
	quick_read, content, time_estimate, is_published, created_at, updated_at FROM chapters`

// List returns chapters ordered by category, then order.
func (s *Store) List(ctx context.Context) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx, selectChapter+` ORDER BY category, order_index, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chapter
	for rows.Next() {
		ch, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, title string) (Chapter, error) {
	row := s.db.QueryRowContext(ctx, selectChapter+` WHERE title = ?`, title)
	ch, err := scanChapter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Chapter{}, fmt.Errorf("%w: %s", ErrChapterNotFound, title)
	}
	return ch, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChapter(sc scanner) (Chapter, error) {
	var (
		ch                   Chapter
		objectives           string
		createdAt, updatedAt string
	)
	err := sc.Scan(&ch.ID, &ch.Title, &ch.Description, &ch.Category, &ch.Order, &objectives,
		&ch.QuickRead, &ch.Content, &ch.TimeEstimate, &ch.IsPublished, &createdAt, &updatedAt)
	if err != nil {
		return Chapter{}, err
	}
	if err := json.Unmarshal([]byte(objectives), &ch.Objectives); err != nil {
		return Chapter{}, fmt.Errorf("decode objectives for %q: %w", ch.Title, err)
	}
	ch.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	ch.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return ch, nil
}
