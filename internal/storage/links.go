package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/macitch/Bridgea/internal/link"
)

// SaveLink inserts or replaces a saved link, deriving its search_terms
// string. The (user_id, url) pair is unique, so re-saving a URL updates the
// existing row.
func (s *Store) SaveLink(l link.SavedLink) error {
	l.SearchTerms = l.BuildSearchTerms()

	tags, err := marshalList(l.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	categories, err := marshalList(l.Categories)
	if err != nil {
		return fmt.Errorf("encoding categories: %w", err)
	}

	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO saved_links (id, user_id, url, title, description, image_url, tags, categories, favorite, search_terms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, url) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			image_url = excluded.image_url,
			tags = excluded.tags,
			categories = excluded.categories,
			favorite = excluded.favorite,
			search_terms = excluded.search_terms`,
		l.ID, l.UserID, l.URL, l.Title, l.Description, l.ImageURL,
		tags, categories, boolToInt(l.Favorite), l.SearchTerms,
		createdAt.Format(time.RFC3339),
	)
	return err
}

// GetLink returns a saved link by ID.
func (s *Store) GetLink(id string) (link.SavedLink, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, url, title, description, image_url, tags, categories, favorite, search_terms, created_at
		FROM saved_links WHERE id = ?`, id)
	return scanLink(row)
}

// ListLinks returns a user's saved links, newest first.
func (s *Store) ListLinks(userID string, limit, offset int) ([]link.SavedLink, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, url, title, description, image_url, tags, categories, favorite, search_terms, created_at
		FROM saved_links WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []link.SavedLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, l)
	}
	return results, rows.Err()
}

// SearchLinksByPrefix returns a user's links whose search_terms contain the
// lowercased query prefix. Used by the CLI for quick local lookups without
// touching the vector index.
func (s *Store) SearchLinksByPrefix(userID, prefix string, limit int) ([]link.SavedLink, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, url, title, description, image_url, tags, categories, favorite, search_terms, created_at
		FROM saved_links WHERE user_id = ? AND search_terms LIKE ?
		ORDER BY created_at DESC LIMIT ?`, userID, "%"+prefix+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []link.SavedLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, l)
	}
	return results, rows.Err()
}

// DeleteLink removes a saved link by ID.
func (s *Store) DeleteLink(id string) error {
	res, err := s.db.Exec("DELETE FROM saved_links WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFavorite toggles the favorite flag on a saved link.
func (s *Store) SetFavorite(id string, favorite bool) error {
	res, err := s.db.Exec("UPDATE saved_links SET favorite = ? WHERE id = ?", boolToInt(favorite), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (link.SavedLink, error) {
	var l link.SavedLink
	var tags, categories, createdAt string
	var favorite int
	err := row.Scan(&l.ID, &l.UserID, &l.URL, &l.Title, &l.Description, &l.ImageURL,
		&tags, &categories, &favorite, &l.SearchTerms, &createdAt)
	if err == sql.ErrNoRows {
		return link.SavedLink{}, ErrNotFound
	}
	if err != nil {
		return link.SavedLink{}, err
	}

	if err := json.Unmarshal([]byte(tags), &l.Tags); err != nil {
		return link.SavedLink{}, fmt.Errorf("decoding tags for %s: %w", l.ID, err)
	}
	if err := json.Unmarshal([]byte(categories), &l.Categories); err != nil {
		return link.SavedLink{}, fmt.Errorf("decoding categories for %s: %w", l.ID, err)
	}
	l.Favorite = favorite != 0

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return link.SavedLink{}, fmt.Errorf("parsing created_at for %s: %w", l.ID, err)
	}
	l.CreatedAt = t
	return l, nil
}

func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
