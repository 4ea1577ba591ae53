// Package store persists the plugin's keyed records. The layout mirrors
// the forum platform's plugin key store: an opaque JSON value per
// (record name, object id) pair, where object id 0 is the forum-scoped
// slot and per-user records are keyed by forum user id.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Record names. These match the keys the legacy plugin registered.
const (
	RecordTotals        = "hp_totals"
	RecordUser          = "hp_user"
	RecordNotifications = "hp_notifications"
)

// getRecord loads one record value into dest. Returns false when the
// record has never been written.
func getRecord(db *sql.DB, record string, objectID int64, dest any) (bool, error) {
	var raw string
	err := db.QueryRow(
		`SELECT value FROM plugin_records WHERE record = ? AND object_id = ?`,
		record, objectID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get record %s/%d: %w", record, objectID, err)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decode record %s/%d: %w", record, objectID, err)
	}
	return true, nil
}

// setRecord writes one record value, replacing any previous value.
func setRecord(db *sql.DB, record string, objectID int64, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %s/%d: %w", record, objectID, err)
	}

	_, err = db.Exec(
		`INSERT INTO plugin_records (record, object_id, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(record, object_id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		record, objectID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("set record %s/%d: %w", record, objectID, err)
	}
	return nil
}
