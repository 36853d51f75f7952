// Package ledger keeps an append-only audit trail of reconciliation runs and
// the controller tasks they submitted.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/task"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventRunFinished   EventType = "run_finished"
	EventTaskSubmitted EventType = "task_submitted"
	EventTaskSucceeded EventType = "task_succeeded"
	EventTaskFailed    EventType = "task_failed"
	EventTaskTimedOut  EventType = "task_timed_out"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64
	RunID     string
	EventType EventType
	Timestamp time.Time
	Family    string
	Function  string
	TaskID    string
	Payload   map[string]any
}

// Ledger appends the events of one run. It implements task.Journal; append
// failures are logged and never fail the run.
type Ledger struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

var _ task.Journal = (*Ledger)(nil)

// New creates a ledger writing events for runID.
func New(db *sql.DB, runID string) *Ledger {
	return &Ledger{db: db, runID: runID, now: time.Now}
}

// RunID returns the run the ledger writes for.
func (l *Ledger) RunID() string { return l.runID }

// Append adds a new event to the ledger
func (l *Ledger) Append(ctx context.Context, eventType EventType, family, function, taskID string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO task_ledger (run_id, event_type, timestamp, family, function, task_id, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.runID, string(eventType), l.now().UTC().UnixMilli(), family, function, taskID, string(payloadJSON))
	return err
}

func (l *Ledger) appendOrWarn(ctx context.Context, eventType EventType, family, function, taskID string, payload map[string]any) {
	if err := l.Append(ctx, eventType, family, function, taskID, payload); err != nil {
		log.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to append to task ledger")
	}
}

// RunStarted records the start of a run.
func (l *Ledger) RunStarted(ctx context.Context, command, state string, items int) {
	l.appendOrWarn(ctx, EventRunStarted, "", "", "", map[string]any{
		"command": command,
		"state":   state,
		"items":   items,
	})
}

// RunFinished records the overall outcome of a run.
func (l *Ledger) RunFinished(ctx context.Context, changed, failed bool, msg string) {
	l.appendOrWarn(ctx, EventRunFinished, "", "", "", map[string]any{
		"changed": changed,
		"failed":  failed,
		"msg":     msg,
	})
}

// TaskSubmitted implements task.Journal.
func (l *Ledger) TaskSubmitted(ctx context.Context, family, function, taskID string) {
	l.appendOrWarn(ctx, EventTaskSubmitted, family, function, taskID, nil)
}

// TaskFinished implements task.Journal.
func (l *Ledger) TaskFinished(ctx context.Context, family, function string, out task.Outcome) {
	eventType := EventTaskFailed
	switch out.State {
	case task.StateSucceeded:
		eventType = EventTaskSucceeded
	case task.StateTimedOut:
		eventType = EventTaskTimedOut
	}
	payload := map[string]any{
		"state":      out.State.String(),
		"progress":   out.Status.Progress,
		"elapsed_ms": out.Elapsed.Milliseconds(),
	}
	if out.Reason != "" {
		payload["reason"] = out.Reason
	}
	// Recorded even when the run was cancelled.
	l.appendOrWarn(context.WithoutCancel(ctx), eventType, family, function, out.TaskID, payload)
}

// GetByRun returns the events of one run in insertion order. Reconciliation
// never reads the ledger; the readers serve audit tooling.
func (l *Ledger) GetByRun(ctx context.Context, runID string) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, run_id, event_type, timestamp, family, function, task_id, payload
		FROM task_ledger
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByType returns entries filtered by event type, newest first, for audit
// tooling.
func (l *Ledger) GetByType(ctx context.Context, eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, run_id, event_type, timestamp, family, function, task_id, payload
		FROM task_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).UTC().UnixMilli()
	result, err := l.db.ExecContext(ctx, `DELETE FROM task_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, family, function, taskID sql.NullString
		var eventType string
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.RunID, &eventType, &timestamp, &family, &function, &taskID, &payloadStr,
		)
		if err != nil {
			return nil, err
		}

		entry.EventType = EventType(eventType)
		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		entry.Family = family.String
		entry.Function = function.String
		entry.TaskID = taskID.String

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
