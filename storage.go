package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/orian/labeltree/models"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Supported storage drivers. Both speak database/sql with "?" placeholders.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

// SQLStorage persists the label state in DuckDB or SQLite.
type SQLStorage struct {
	db     *sql.DB
	driver string
}

// NewStorage opens dbPath with the named driver, creates the schema and
// runs pending migrations.
func NewStorage(driver, dbPath string) (*SQLStorage, error) {
	switch driver {
	case DriverDuckDB, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer, and a shared view of the database for every statement
		db.SetMaxOpenConns(1)
	}

	storage := &SQLStorage{db: db, driver: driver}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

func (s *SQLStorage) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS labels (
			id VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL,
			options TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS item_labels (
			item_id VARCHAR PRIMARY KEY,
			label_id VARCHAR NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadState reads labels, mappings and preferences. Options are decoded on
// top of the built-in defaults so columns written by older versions keep
// working.
func (s *SQLStorage) LoadState() (*models.State, error) {
	state := models.NewState()

	rows, err := s.db.Query("SELECT id, name, options FROM labels")
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, optionsJSON string
		if err := rows.Scan(&id, &name, &optionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}

		opts := models.DefaultLabelOptions()
		if err := json.Unmarshal([]byte(optionsJSON), &opts); err != nil {
			log.WithError(err).WithField("label", id).Warn("Failed to decode label options, using defaults")
			opts = models.DefaultLabelOptions()
		}
		state.Labels[id] = models.Label{Name: name, Options: opts}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mappings, err := s.db.Query("SELECT item_id, label_id FROM item_labels")
	if err != nil {
		return nil, fmt.Errorf("failed to query item labels: %w", err)
	}
	defer mappings.Close()

	for mappings.Next() {
		var itemID, labelID string
		if err := mappings.Scan(&itemID, &labelID); err != nil {
			return nil, fmt.Errorf("failed to scan item label: %w", err)
		}
		state.Mappings[itemID] = labelID
	}
	if err := mappings.Err(); err != nil {
		return nil, err
	}

	prefs, err := s.loadPreferences()
	if err != nil {
		return nil, err
	}
	state.Prefs = prefs

	return state, nil
}

func (s *SQLStorage) loadPreferences() (models.Preferences, error) {
	prefs := models.DefaultPreferences()

	var optionsJSON, defaultsJSON string
	err := s.db.QueryRow("SELECT options, defaults FROM preferences WHERE id = 1").Scan(&optionsJSON, &defaultsJSON)
	if err == sql.ErrNoRows {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("failed to query preferences: %w", err)
	}

	if err := json.Unmarshal([]byte(optionsJSON), &prefs.Options); err != nil {
		log.WithError(err).Warn("Failed to decode global options, using defaults")
		prefs.Options = models.GlobalOptions{}
	}
	if err := json.Unmarshal([]byte(defaultsJSON), &prefs.Defaults); err != nil {
		log.WithError(err).Warn("Failed to decode label defaults, using built-in defaults")
		prefs.Defaults = models.DefaultLabelOptions()
	}
	return prefs, nil
}

// SaveState replaces the stored state in one transaction.
func (s *SQLStorage) SaveState(state *models.State) error {
	optionsJSON, err := json.Marshal(state.Prefs.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal global options: %w", err)
	}
	defaultsJSON, err := json.Marshal(state.Prefs.Defaults)
	if err != nil {
		return fmt.Errorf("failed to marshal label defaults: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"labels", "item_labels", "preferences"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	ids := make([]string, 0, len(state.Labels))
	for id := range state.Labels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		l := state.Labels[id]
		labelJSON, err := json.Marshal(l.Options)
		if err != nil {
			return fmt.Errorf("failed to marshal options of label %s: %w", id, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO labels (id, name, options) VALUES (?, ?, ?)",
			id, l.Name, string(labelJSON),
		); err != nil {
			return fmt.Errorf("failed to insert label %s: %w", id, err)
		}
	}

	for itemID, labelID := range state.Mappings {
		if _, err := tx.Exec(
			"INSERT INTO item_labels (item_id, label_id) VALUES (?, ?)",
			itemID, labelID,
		); err != nil {
			return fmt.Errorf("failed to insert item label %s: %w", itemID, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO preferences (id, options, defaults) VALUES (1, ?, ?)",
		string(optionsJSON), string(defaultsJSON),
	); err != nil {
		return fmt.Errorf("failed to insert preferences: %w", err)
	}

	return tx.Commit()
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// memoryStorage is used when persistence is switched off.
type memoryStorage struct{}

func (memoryStorage) LoadState() (*models.State, error) { return nil, nil }
func (memoryStorage) SaveState(*models.State) error     { return nil }
func (memoryStorage) Close() error                      { return nil }
