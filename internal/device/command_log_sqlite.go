package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultCommandLogLimit = 50
	maxCommandLogLimit     = 200
)

// SQLiteCommandLogRepository implements CommandLogRepository using SQLite.
//
// It stores desired-state snapshots and mismatch lists as JSON in the
// command_log table.
type SQLiteCommandLogRepository struct {
	db *sql.DB
}

// NewSQLiteCommandLogRepository creates a new SQLite command log repository.
func NewSQLiteCommandLogRepository(db *sql.DB) *SQLiteCommandLogRepository {
	return &SQLiteCommandLogRepository{db: db}
}

// RecordCommand inserts a new command record for a device.
func (r *SQLiteCommandLogRepository) RecordCommand(ctx context.Context, entry *CommandLogEntry) error {
	if entry == nil {
		return fmt.Errorf("entry is required")
	}
	if entry.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if entry.Verdict == "" {
		return fmt.Errorf("verdict is required")
	}

	desired := entry.Desired
	if desired == nil {
		desired = State{}
	}
	desiredJSON, err := json.Marshal(desired)
	if err != nil {
		return fmt.Errorf("marshalling desired state: %w", err)
	}

	var mismatchedJSON sql.NullString
	if len(entry.Mismatched) > 0 {
		b, err := json.Marshal(entry.Mismatched)
		if err != nil {
			return fmt.Errorf("marshalling mismatched keys: %w", err)
		}
		mismatchedJSON = sql.NullString{String: string(b), Valid: true}
	}

	var transport sql.NullString
	if entry.Transport != "" {
		transport = sql.NullString{String: entry.Transport, Valid: true}
	}

	var errText sql.NullString
	if entry.Error != "" {
		errText = sql.NullString{String: entry.Error, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO command_log (device_id, desired, verdict, transport, mismatched, error, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.DeviceID,
		string(desiredJSON),
		entry.Verdict,
		transport,
		mismatchedJSON,
		errText,
		entry.LatencyMS,
	)
	if err != nil {
		return fmt.Errorf("inserting command record: %w", err)
	}

	return nil
}

// GetCommands returns recent command records for a device, ordered newest first.
// The limit defaults to 50 and is clamped to 200.
func (r *SQLiteCommandLogRepository) GetCommands(ctx context.Context, deviceID string, limit int) ([]CommandLogEntry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if limit <= 0 {
		limit = defaultCommandLogLimit
	}
	if limit > maxCommandLogLimit {
		limit = maxCommandLogLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, desired, verdict, transport, mismatched, error, latency_ms, created_at
		 FROM command_log
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	entries := make([]CommandLogEntry, 0, limit)
	for rows.Next() {
		var entry CommandLogEntry
		var desiredJSON string
		var transport, mismatchedJSON, errText sql.NullString
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.DeviceID, &desiredJSON, &entry.Verdict,
			&transport, &mismatchedJSON, &errText, &entry.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command record: %w", err)
		}

		if err := json.Unmarshal([]byte(desiredJSON), &entry.Desired); err != nil {
			return nil, fmt.Errorf("unmarshalling desired state: %w", err)
		}
		if mismatchedJSON.Valid && mismatchedJSON.String != "" {
			if err := json.Unmarshal([]byte(mismatchedJSON.String), &entry.Mismatched); err != nil {
				return nil, fmt.Errorf("unmarshalling mismatched keys: %w", err)
			}
		}
		if transport.Valid {
			entry.Transport = transport.String
		}
		if errText.Valid {
			entry.Error = errText.String
		}

		timestamp, err := parseCommandLogTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return entries, nil
}

// PruneCommands deletes records older than the given duration.
func (r *SQLiteCommandLogRepository) PruneCommands(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM command_log WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting command records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseCommandLogTimestamp parses a timestamp stored in SQLite.
// strftime defaults write "YYYY-MM-DDTHH:MM:SSZ"; rows touched by Go
// code use RFC3339.
func parseCommandLogTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
