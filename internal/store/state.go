package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// StateGet reads a value from the agent_state KV table. Missing keys return "".
func (s *Store) StateGet(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM agent_state WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// StateSet upserts a value in the agent_state KV table.
func (s *Store) StateSet(ctx context.Context, key, value string) error {
	return Transact(s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO agent_state (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
			key, value, s.now().Format(timeLayout))
		return err
	})
}

// LogSkill appends one row to the skills_log audit table.
func (s *Store) LogSkill(ctx context.Context, skill string, args map[string]any, runErr error, duration time.Duration) error {
	argsJSON, err := json.Marshal(orEmptyMap(args))
	if err != nil {
		argsJSON = []byte("{}")
	}
	ok := 1
	var errMsg sql.NullString
	if runErr != nil {
		ok = 0
		errMsg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	return Transact(s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO skills_log (timestamp, skill, args, ok, error, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			s.now().Format(timeLayout), skill, string(argsJSON), ok, errMsg, duration.Milliseconds())
		return err
	})
}
