package reviewstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is a reviewable professional, service, or place
type Service struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Location string `json:"location,omitempty"`
}

// Review is a community experience attached to a service
type Review struct {
	ID          string    `json:"id"`
	ServiceID   string    `json:"service_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Recommended bool      `json:"is_recommended"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReviewWithService joins a review with its service
type ReviewWithService struct {
	Review
	Service Service `json:"service"`
}

// Filters narrows a search; empty fields are ignored and non-empty fields
// are intersected
type Filters struct {
	Category string
	Name     string
	Location string
}

const maxResults = 5

// Store provides read and write access to services and reviews
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New creates a review store backed by the given database
func New(db *sql.DB, logger zerolog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &Store{db: db, logger: logger}, nil
}

// Init creates the services and reviews tables if they do not exist
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS services (
			id       TEXT PRIMARY KEY,
			name     TEXT NOT NULL,
			category TEXT NOT NULL,
			location TEXT
		)`)
	if err != nil {
		return fmt.Errorf("failed to create services table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS reviews (
			id             TEXT PRIMARY KEY,
			service_id     TEXT NOT NULL REFERENCES services(id),
			title          TEXT NOT NULL,
			content        TEXT NOT NULL,
			is_recommended INTEGER NOT NULL DEFAULT 0,
			created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create reviews table: %w", err)
	}

	return nil
}

// AddService inserts a service and returns it with a generated id
func (s *Store) AddService(ctx context.Context, svc Service) (Service, error) {
	if svc.Name == "" {
		return Service{}, fmt.Errorf("service name is required")
	}
	if svc.Category == "" {
		return Service{}, fmt.Errorf("service category is required")
	}
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO services (id, name, category, location) VALUES (?, ?, ?, ?)`,
		svc.ID, svc.Name, svc.Category, svc.Location)
	if err != nil {
		return Service{}, fmt.Errorf("failed to insert service: %w", err)
	}

	return svc, nil
}

// AddReview inserts a review and returns it with a generated id
func (s *Store) AddReview(ctx context.Context, r Review) (Review, error) {
	if r.ServiceID == "" {
		return Review{}, fmt.Errorf("review service id is required")
	}
	if r.Title == "" {
		return Review{}, fmt.Errorf("review title is required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, service_id, title, content, is_recommended, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ServiceID, r.Title, r.Content, r.Recommended, r.CreatedAt)
	if err != nil {
		return Review{}, fmt.Errorf("failed to insert review: %w", err)
	}

	return r, nil
}

// Search returns reviews matching the intersection of the non-empty filters,
// newest first, capped at 5 results
func (s *Store) Search(ctx context.Context, f Filters) ([]ReviewWithService, error) {
	query := `
		SELECT r.id, r.service_id, r.title, r.content, r.is_recommended, r.created_at,
		       s.id, s.name, s.category, COALESCE(s.location, '')
		FROM reviews r
		JOIN services s ON s.id = r.service_id
		WHERE 1=1`
	args := []interface{}{}

	if f.Category != "" {
		query += ` AND s.category LIKE ? COLLATE NOCASE`
		args = append(args, "%"+f.Category+"%")
	}
	if f.Name != "" {
		query += ` AND s.name LIKE ? COLLATE NOCASE`
		args = append(args, "%"+f.Name+"%")
	}
	if f.Location != "" {
		query += ` AND s.location LIKE ? COLLATE NOCASE`
		args = append(args, "%"+f.Location+"%")
	}

	query += ` ORDER BY r.created_at DESC LIMIT ?`
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search reviews: %w", err)
	}
	defer rows.Close()

	var results []ReviewWithService
	for rows.Next() {
		var rw ReviewWithService
		err := rows.Scan(
			&rw.ID, &rw.ServiceID, &rw.Title, &rw.Content, &rw.Recommended, &rw.CreatedAt,
			&rw.Service.ID, &rw.Service.Name, &rw.Service.Category, &rw.Service.Location,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		results = append(results, rw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read review rows: %w", err)
	}

	s.logger.Debug().
		Int("results", len(results)).
		Str("category", f.Category).
		Str("name", f.Name).
		Str("location", f.Location).
		Msg("Review search completed")

	return results, nil
}
