package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foragen/foragen-cli/pkg/models"
)

// Run is the stored summary of one workflow execution.
type Run struct {
	ID             string                `json:"id"`
	Workflow       string                `json:"workflow"`
	Status         models.WorkflowStatus `json:"status"`
	StartedAt      time.Time             `json:"startedAt"`
	EndedAt        time.Time             `json:"endedAt"`
	Duration       time.Duration         `json:"duration"`
	CompletedSteps int                   `json:"completedSteps"`
	FailedSteps    int                   `json:"failedSteps"`
	SkippedSteps   int                   `json:"skippedSteps"`
	Variables      map[string]any        `json:"variables,omitempty"`
	Error          string                `json:"error,omitempty"`
	Steps          []Step                `json:"steps,omitempty"`
}

// Step is the stored summary of one step of a run.
type Step struct {
	StepID   string            `json:"stepId"`
	Status   models.StepStatus `json:"status"`
	Agent    string            `json:"agent,omitempty"`
	Attempts int               `json:"attempts"`
	Duration time.Duration     `json:"duration"`
	Error    string            `json:"error,omitempty"`
}

// Record stores a workflow result. Recording the same run id twice
// replaces the earlier record.
func (db *DB) Record(r *models.WorkflowResult) error {
	if r == nil || r.RunID == "" {
		return errors.New("record run: result has no run id")
	}

	vars, err := json.Marshal(r.Variables)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}
	completed, failed, skipped := r.Counts()

	return db.transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM step_results WHERE run_id = ?`, r.RunID); err != nil {
			return fmt.Errorf("clear step results: %w", err)
		}
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO workflow_runs
				(id, workflow, status, started_at, ended_at, duration_ms,
				 completed_steps, failed_steps, skipped_steps, variables, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.RunID, r.WorkflowName, string(r.Status), formatTime(r.StartTime), formatTime(r.EndTime),
			r.Duration.Milliseconds(), completed, failed, skipped, string(vars), nullString(r.Error))
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for i, s := range r.StepResults {
			_, err := tx.Exec(`
				INSERT INTO step_results (run_id, position, step_id, status, agent, attempts, duration_ms, error)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, r.RunID, i, s.StepID, string(s.Status), s.AgentName, s.Attempts, s.Duration.Milliseconds(), nullString(s.Error))
			if err != nil {
				return fmt.Errorf("insert step %s: %w", s.StepID, err)
			}
		}
		return nil
	})
}

// List returns the most recent runs, newest first. An empty workflow
// matches every workflow; a non-positive limit means no limit.
func (db *DB) List(workflow string, limit int) ([]Run, error) {
	query := `
		SELECT id, workflow, status, started_at, ended_at, duration_ms,
		       completed_steps, failed_steps, skipped_steps, variables, error
		FROM workflow_runs`
	var (
		where []string
		args  []any
	)
	if workflow != "" {
		where = append(where, "workflow = ?")
		args = append(args, workflow)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
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

// Get returns one run with its steps, or an error wrapping
// models.ErrNotFound.
func (db *DB) Get(id string) (*Run, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`
		SELECT id, workflow, status, started_at, ended_at, duration_ms,
		       completed_steps, failed_steps, skipped_steps, variables, error
		FROM workflow_runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(`
		SELECT step_id, status, agent, attempts, duration_ms, error
		FROM step_results WHERE run_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s          Step
			status     string
			agent, msg sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&s.StepID, &status, &agent, &s.Attempts, &durationMS, &msg); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		s.Status = models.StepStatus(status)
		s.Agent = agent.String
		s.Error = msg.String
		s.Duration = time.Duration(durationMS) * time.Millisecond
		run.Steps = append(run.Steps, s)
	}
	return run, rows.Err()
}

// Purge deletes runs that started before now minus olderThan.
// Returns the number of runs deleted.
func (db *DB) Purge(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var count int64
	err := db.transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM step_results WHERE run_id IN (SELECT id FROM workflow_runs WHERE started_at < ?)
		`, cutoff); err != nil {
			return fmt.Errorf("purge step results: %w", err)
		}
		result, err := tx.Exec(`DELETE FROM workflow_runs WHERE started_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		count, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r                  Run
		status             string
		startedAt, endedAt string
		durationMS         int64
		vars, msg          sql.NullString
	)
	err := s.Scan(&r.ID, &r.Workflow, &status, &startedAt, &endedAt, &durationMS,
		&r.CompletedSteps, &r.FailedSteps, &r.SkippedSteps, &vars, &msg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	r.Status = models.WorkflowStatus(status)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	r.Error = msg.String
	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if r.EndedAt, err = parseTime(endedAt); err != nil {
		return nil, fmt.Errorf("parse ended_at: %w", err)
	}
	if vars.Valid && vars.String != "" && vars.String != "null" {
		if err := json.Unmarshal([]byte(vars.String), &r.Variables); err != nil {
			return nil, fmt.Errorf("decode variables: %w", err)
		}
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
