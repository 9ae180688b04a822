package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/jthornton/deploycart/detection"
)

// PostgresStore implements Store backed by PostgreSQL. The installer
// descriptor and rule set are stored as JSONB via their JSON codecs.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed app store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts a newly packaged app.
func (s *PostgresStore) Add(app *App) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM apps WHERE id = $1)
	`, app.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check app existence: %w", err)
	}
	if exists {
		return fmt.Errorf("app with ID %s already exists", app.ID)
	}

	installerJSON, err := json.Marshal(app.Installer)
	if err != nil {
		return fmt.Errorf("failed to marshal installer: %w", err)
	}
	rulesJSON, err := json.Marshal(app.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal detection rules: %w", err)
	}

	now := time.Now()
	app.CreatedAt = now
	app.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO apps (id, name, installer, detection_rules, install_command,
			uninstall_command, provenance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, app.ID, app.Name, installerJSON, rulesJSON, app.InstallCommand,
		app.UninstallCommand, app.Provenance, app.CreatedAt, app.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert app: %w", err)
	}

	return nil
}

// Get retrieves a packaged app by ID.
func (s *PostgresStore) Get(id string) (*App, error) {
	var app App
	var installerJSON, rulesJSON []byte
	err := s.db.QueryRow(`
		SELECT id, name, installer, detection_rules, install_command,
			uninstall_command, provenance, created_at, updated_at
		FROM apps
		WHERE id = $1
	`, id).Scan(&app.ID, &app.Name, &installerJSON, &rulesJSON,
		&app.InstallCommand, &app.UninstallCommand, &app.Provenance,
		&app.CreatedAt, &app.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("app %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app: %w", err)
	}

	if err := json.Unmarshal(installerJSON, &app.Installer); err != nil {
		return nil, fmt.Errorf("invalid installer for app %s: %w", id, err)
	}
	var rules detection.RuleSet
	if err := json.Unmarshal(rulesJSON, &rules); err != nil {
		return nil, fmt.Errorf("invalid detection rules for app %s: %w", id, err)
	}
	app.Rules = rules

	return &app, nil
}

// List returns all packaged apps in creation order.
func (s *PostgresStore) List() ([]*App, error) {
	rows, err := s.db.Query(`
		SELECT id, name, installer, detection_rules, install_command,
			uninstall_command, provenance, created_at, updated_at
		FROM apps
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	var apps []*App
	for rows.Next() {
		var app App
		var installerJSON, rulesJSON []byte
		if err := rows.Scan(&app.ID, &app.Name, &installerJSON, &rulesJSON,
			&app.InstallCommand, &app.UninstallCommand, &app.Provenance,
			&app.CreatedAt, &app.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}

		if err := json.Unmarshal(installerJSON, &app.Installer); err != nil {
			return nil, fmt.Errorf("invalid installer for app %s: %w", app.ID, err)
		}
		var rules detection.RuleSet
		if err := json.Unmarshal(rulesJSON, &rules); err != nil {
			return nil, fmt.Errorf("invalid detection rules for app %s: %w", app.ID, err)
		}
		app.Rules = rules

		apps = append(apps, &app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating apps: %w", err)
	}

	return apps, nil
}

// Delete removes a packaged app.
func (s *PostgresStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM apps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete app: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("app %s not found", id)
	}

	return nil
}
