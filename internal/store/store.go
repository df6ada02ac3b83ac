// Package store reads the Vietnamese Bible database used to attach a
// translation of the day's Gospel.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"gospeldiary/internal/citations"
)

// Lookup failures.
var (
	ErrBookNotFound  = errors.New("book not found")
	ErrVerseNotFound = errors.New("verse not found")
	ErrNoReference   = errors.New("no scripture reference in citation")
)

// Store is a read-only handle on a Bible database with the tables
// books(book_number, short_name, long_name) and
// verses(book_number, chapter, verse, text).
type Store struct {
	db   *sql.DB
	path string
}

// Open opens an existing database read-only.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("bible database not found: %w", err)
	}

	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: path,
	}

	if err := store.verify(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open bible database %s: %w", path, err)
	}

	return store, nil
}

// verify checks that the expected tables exist
func (s *Store) verify() error {
	for _, table := range []string{"books", "verses"} {
		var name string
		err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("missing table %s", table)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file in use.
func (s *Store) Path() string {
	return s.path
}

// BookNumber resolves a reference's book, trying the exact short name first
// and then a substring match on either name.
func (s *Store) BookNumber(ctx context.Context, ref citations.Reference) (int, error) {
	var number int
	err := s.db.QueryRowContext(ctx,
		`SELECT book_number FROM books WHERE short_name = ? OR long_name = ? ORDER BY book_number LIMIT 1`,
		ref.Book, ref.BookName).Scan(&number)
	if err == nil {
		return number, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to query books: %w", err)
	}

	for _, name := range []string{ref.BookName, ref.Book} {
		if name == "" {
			continue
		}
		pattern := "%" + strings.ToLower(name) + "%"
		err = s.db.QueryRowContext(ctx,
			`SELECT book_number FROM books WHERE LOWER(short_name) LIKE ? OR LOWER(long_name) LIKE ? ORDER BY book_number LIMIT 1`,
			pattern, pattern).Scan(&number)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("failed to query books: %w", err)
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrBookNotFound, ref.Book)
}

// Lookup returns the verses of ref joined with spaces, in verse order.
func (s *Store) Lookup(ctx context.Context, ref citations.Reference) (string, error) {
	bookNumber, err := s.BookNumber(ctx, ref)
	if err != nil {
		return "", err
	}

	end := ref.VerseEnd
	if end < ref.VerseStart {
		end = ref.VerseStart
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT text FROM verses
	WHERE book_number = ? AND chapter = ? AND verse >= ? AND verse <= ?
	ORDER BY verse`,
		bookNumber, ref.Chapter, ref.VerseStart, end)
	if err != nil {
		return "", fmt.Errorf("failed to query verses: %w", err)
	}
	defer rows.Close()

	var verses []string
	for rows.Next() {
		var text sql.NullString
		if err := rows.Scan(&text); err != nil {
			return "", fmt.Errorf("failed to scan verse: %w", err)
		}
		if t := strings.TrimSpace(text.String); t != "" {
			verses = append(verses, t)
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read verses: %w", err)
	}

	if len(verses) == 0 {
		return "", fmt.Errorf("%w: %s", ErrVerseNotFound, ref.String())
	}
	return strings.Join(verses, " "), nil
}

// Translate parses citation and looks up its first reference.
func (s *Store) Translate(ctx context.Context, citation string) (string, error) {
	ref, ok := citations.First(citation)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoReference, citation)
	}
	return s.Lookup(ctx, ref)
}
