package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// loadStateJSONL reads state.jsonl and inserts its records into
// global_state in one transaction. Malformed lines and records without a
// key are skipped; unknown fields are ignored. A later line for the same
// key wins.
func loadStateJSONL(db *sql.DB, path string) error {
	records, err := readJSONL(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertValue)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, raw := range records {
		var rec stateRecord
		if err := json.Unmarshal(raw, &rec); err != nil || rec.Key == "" {
			continue
		}
		if _, err := stmt.Exec(rec.Key, rec.Value, rec.UpdatedAt); err != nil {
			return fmt.Errorf("loading %q: %w", rec.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}
