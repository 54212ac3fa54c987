package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Keg operations

// PutKeg inserts or replaces the keg record for k.Name.
func (s *Store) PutKeg(k *Keg) error {
	filesJSON, err := json.Marshal(k.Files)
	if err != nil {
		return fmt.Errorf("failed to marshal files: %w", err)
	}
	linksJSON, err := json.Marshal(k.Links)
	if err != nil {
		return fmt.Errorf("failed to marshal links: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO kegs
		(name, version, url, sha256, license, keg_path, installed_at, files, links)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		k.Name,
		k.Version,
		k.URL,
		k.SHA256,
		k.License,
		k.Path,
		k.InstalledAt.UTC().Format(time.RFC3339),
		string(filesJSON),
		string(linksJSON),
	)
	if err != nil {
		return wrapErr(err, "failed to store keg %s", k.Name)
	}

	return nil
}

const kegColumns = `name, version, url, sha256, license, keg_path, installed_at, files, links`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKeg(row rowScanner) (*Keg, error) {
	var k Keg
	var license sql.NullString
	var installedAt, filesJSON, linksJSON string

	err := row.Scan(
		&k.Name,
		&k.Version,
		&k.URL,
		&k.SHA256,
		&license,
		&k.Path,
		&installedAt,
		&filesJSON,
		&linksJSON,
	)
	if err != nil {
		return nil, err
	}
	k.License = license.String

	k.InstalledAt, err = time.Parse(time.RFC3339, installedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse installed_at for %s: %w", k.Name, err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &k.Files); err != nil {
		return nil, fmt.Errorf("failed to unmarshal files for %s: %w", k.Name, err)
	}
	if err := json.Unmarshal([]byte(linksJSON), &k.Links); err != nil {
		return nil, fmt.Errorf("failed to unmarshal links for %s: %w", k.Name, err)
	}
	return &k, nil
}

// GetKeg retrieves the keg installed for name.
func (s *Store) GetKeg(name string) (*Keg, error) {
	query := `SELECT ` + kegColumns + ` FROM kegs WHERE name = ?`

	k, err := scanKeg(s.db.QueryRow(query, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}
	if err != nil {
		return nil, wrapErr(err, "failed to get keg %s", name)
	}
	return k, nil
}

// ListKegs returns all installed kegs ordered by name.
func (s *Store) ListKegs() ([]*Keg, error) {
	query := `SELECT ` + kegColumns + ` FROM kegs ORDER BY name`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, wrapErr(err, "failed to list kegs")
	}
	defer rows.Close()

	var kegs []*Keg
	for rows.Next() {
		k, err := scanKeg(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keg row: %w", err)
		}
		kegs = append(kegs, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kegs: %w", err)
	}

	return kegs, nil
}

// DeleteKeg removes the keg record for name.
func (s *Store) DeleteKeg(name string) error {
	result, err := s.db.Exec(`DELETE FROM kegs WHERE name = ?`, name)
	if err != nil {
		return wrapErr(err, "failed to delete keg %s", name)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}

	return nil
}

// Event operations

// InsertEvent appends e to the history and returns its ID. A zero
// Timestamp is replaced by the current time.
func (s *Store) InsertEvent(e *Event) (int64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	query := `
		INSERT INTO events (formula, action, version, detail, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		e.Formula,
		e.Action,
		e.Version,
		e.Detail,
		e.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, wrapErr(err, "failed to insert %s event for %s", e.Action, e.Formula)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get event id: %w", err)
	}
	e.ID = id
	return id, nil
}

// ListEvents returns the most recent events first. An empty formula lists
// events for every formula; limit <= 0 means no limit.
func (s *Store) ListEvents(formula string, limit int) ([]*Event, error) {
	query := `SELECT id, formula, action, version, detail, timestamp FROM events`
	var args []any
	if formula != "" {
		query += ` WHERE formula = ?`
		args = append(args, formula)
	}
	query += ` ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr(err, "failed to list events")
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var version, detail sql.NullString
		var timestamp string

		if err := rows.Scan(&e.ID, &e.Formula, &e.Action, &version, &detail, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e.Version = version.String
		e.Detail = detail.String

		e.Timestamp, err = time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp for event %d: %w", e.ID, err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
