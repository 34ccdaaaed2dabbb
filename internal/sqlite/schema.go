package sqlite

const createGlobalState = `CREATE TABLE global_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createGlobalState,
}

const (
	selectValue = `SELECT value FROM global_state WHERE key = ?`
	selectAll   = `SELECT key, value, updated_at FROM global_state ORDER BY key`
	upsertValue = `INSERT INTO global_state (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	insertValue = `INSERT OR REPLACE INTO global_state (key, value, updated_at) VALUES (?, ?, ?)`
)
