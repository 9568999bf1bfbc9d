package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

func encodeList(items []string) (*string, error) {
	if items == nil {
		return nil, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func decodeList(raw *string) []string {
	out := []string{}
	if raw == nil {
		return out
	}
	if err := json.Unmarshal([]byte(*raw), &out); err != nil {
		return []string{}
	}
	return out
}

// InsertRun stores a run and its results in one transaction.
func (db *DB) InsertRun(run Run) error {
	kpJSON, err := encodeList(run.KeyPoints)
	if err != nil {
		return fmt.Errorf("encoding key points: %w", err)
	}
	typesJSON, err := encodeList(run.ContentTypes)
	if err != nil {
		return fmt.Errorf("encoding content types: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO runs
		(id, created_at, summary, key_points, report, fallback, item_count, success_count, content_types)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, run.Summary, kpJSON, run.Report, run.Fallback,
		run.ItemCount, run.SuccessCount, typesJSON,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	for _, r := range run.Results {
		points, err := encodeList(r.KeyPoints)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encoding result key points: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO run_results
			(run_id, position, content_type, original_content, analysis, summary, key_points, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, r.Position, r.ContentType, r.OriginalContent, r.Analysis, r.Summary, points, r.Confidence,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting result %d of run %s: %w", r.Position, run.ID, err)
		}
	}

	return tx.Commit()
}

// GetRun returns a run with its results, or nil if it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow(
		`SELECT id, created_at, summary, key_points, report, fallback, item_count, success_count, content_types
		FROM runs WHERE id = ?`, id,
	)

	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	results, err := db.getRunResults(id)
	if err != nil {
		return nil, err
	}
	run.Results = results
	return run, nil
}

func (db *DB) getRunResults(runID string) ([]RunResult, error) {
	rows, err := db.conn.Query(
		`SELECT position, content_type, original_content, analysis, summary, key_points, confidence
		FROM run_results WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []RunResult{}
	for rows.Next() {
		var r RunResult
		var original, analysis, summary, kpJSON *string
		if err := rows.Scan(&r.Position, &r.ContentType, &original, &analysis, &summary,
			&kpJSON, &r.Confidence); err != nil {
			return nil, err
		}
		r.OriginalContent = deref(original)
		r.Analysis = deref(analysis)
		r.Summary = deref(summary)
		r.KeyPoints = decodeList(kpJSON)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListRuns returns the most recent runs without their results, newest first.
// limit <= 0 returns all runs.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `SELECT id, created_at, summary, key_points, report, fallback, item_count, success_count, content_types
		FROM runs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its results. Deleting a missing run is not an error.
func (db *DB) DeleteRun(id string) error {
	_, err := db.conn.Exec("DELETE FROM runs WHERE id = ?", id)
	return err
}

// GetStats returns counters over the whole history.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{ByType: map[string]int{}}

	var last *string
	if err := db.conn.QueryRow("SELECT COUNT(*), MAX(created_at) FROM runs").Scan(&s.Runs, &last); err != nil {
		return nil, err
	}
	s.LastRunAt = deref(last)

	if err := db.conn.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN confidence > 0.5 THEN 1 ELSE 0 END), 0) FROM run_results",
	).Scan(&s.Results, &s.UsableResults); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query("SELECT content_type, COUNT(*) FROM run_results GROUP BY content_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		s.ByType[t] = n
	}
	return s, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var kpJSON, report, typesJSON *string
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.Summary, &kpJSON, &report, &r.Fallback,
		&r.ItemCount, &r.SuccessCount, &typesJSON); err != nil {
		return nil, err
	}
	r.KeyPoints = decodeList(kpJSON)
	r.ContentTypes = decodeList(typesJSON)
	r.Report = deref(report)
	return &r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
