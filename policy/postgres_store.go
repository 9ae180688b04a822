package policy

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed policy store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts a new policy into the database.
func (s *PostgresStore) Add(p *Policy) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM policies WHERE id = $1)
	`, p.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check policy existence: %w", err)
	}
	if exists {
		return fmt.Errorf("policy with ID %s already exists", p.ID)
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO policies (id, name, expression, action, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Name, p.Expression, string(p.Action), p.Active, p.CreatedAt, p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert policy: %w", err)
	}

	return nil
}

// Get retrieves a policy by ID.
func (s *PostgresStore) Get(id string) (*Policy, error) {
	var p Policy
	var action string
	err := s.db.QueryRow(`
		SELECT id, name, expression, action, active, created_at, updated_at
		FROM policies
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Expression, &action, &p.Active, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("policy %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	p.Action = Action(action)
	return &p, nil
}

// ListActive returns all active policies in creation order.
func (s *PostgresStore) ListActive() ([]*Policy, error) {
	rows, err := s.db.Query(`
		SELECT id, name, expression, action, active, created_at, updated_at
		FROM policies
		WHERE active = true
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active policies: %w", err)
	}
	defer rows.Close()

	var policies []*Policy
	for rows.Next() {
		var p Policy
		var action string
		if err := rows.Scan(&p.ID, &p.Name, &p.Expression, &action, &p.Active,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		p.Action = Action(action)
		policies = append(policies, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policies: %w", err)
	}

	return policies, nil
}

// Update modifies an existing policy.
func (s *PostgresStore) Update(p *Policy) error {
	p.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE policies
		SET name = $1, expression = $2, action = $3, active = $4, updated_at = $5
		WHERE id = $6
	`, p.Name, p.Expression, string(p.Action), p.Active, p.UpdatedAt, p.ID)

	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("policy %s not found", p.ID)
	}

	return nil
}

// Delete removes a policy from the database.
func (s *PostgresStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("policy %s not found", id)
	}

	return nil
}
