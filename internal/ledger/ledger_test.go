package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sdactl/internal/db"
	"github.com/dokzlo13/sdactl/internal/task"
)

func openLedger(t *testing.T) (*db.DB, *Ledger) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database, New(database.DB, uuid.NewString())
}

func TestLedger_RecordsRunAndTasks(t *testing.T) {
	ctx := context.Background()
	_, l := openLedger(t)

	l.RunStarted(ctx, "apply", "merged", 2)
	l.TaskSubmitted(ctx, "sda", "add_fabric_devices", "task-1")
	l.TaskFinished(ctx, "sda", "add_fabric_devices", task.Outcome{
		TaskID:  "task-1",
		State:   task.StateSucceeded,
		Status:  task.Status{Progress: "done"},
		Elapsed: 3 * time.Second,
	})
	l.TaskSubmitted(ctx, "sda", "provision_devices", "task-2")
	l.TaskFinished(ctx, "sda", "provision_devices", task.Outcome{TaskID: "task-2", State: task.StateFailed, Reason: "unreachable"})
	l.RunFinished(ctx, true, true, "task task-2 failed: unreachable")

	entries, err := l.GetByRun(ctx, l.RunID())
	require.NoError(t, err)
	require.Len(t, entries, 6)

	types := make([]EventType, len(entries))
	for i, e := range entries {
		types[i] = e.EventType
		assert.Equal(t, l.RunID(), e.RunID)
	}
	assert.Equal(t, []EventType{
		EventRunStarted, EventTaskSubmitted, EventTaskSucceeded,
		EventTaskSubmitted, EventTaskFailed, EventRunFinished,
	}, types)

	assert.Equal(t, "task-1", entries[2].TaskID)
	assert.Equal(t, "add_fabric_devices", entries[2].Function)
	assert.EqualValues(t, 3000, entries[2].Payload["elapsed_ms"])
	assert.Equal(t, "unreachable", entries[4].Payload["reason"])
	assert.Equal(t, "apply", entries[0].Payload["command"])
}

func TestLedger_GetByTypeAcrossRuns(t *testing.T) {
	ctx := context.Background()
	database, first := openLedger(t)
	second := New(database.DB, uuid.NewString())

	first.TaskSubmitted(ctx, "sda", "update_multicast", "task-1")
	second.TaskSubmitted(ctx, "sda", "update_multicast", "task-2")
	second.TaskFinished(ctx, "sda", "update_multicast", task.Outcome{TaskID: "task-2", State: task.StateTimedOut})

	submitted, err := first.GetByType(ctx, EventTaskSubmitted, 10)
	require.NoError(t, err)
	require.Len(t, submitted, 2)
	assert.Equal(t, "task-2", submitted[0].TaskID)

	timedOut, err := first.GetByType(ctx, EventTaskTimedOut, 10)
	require.NoError(t, err)
	require.Len(t, timedOut, 1)
	assert.Equal(t, second.RunID(), timedOut[0].RunID)
}

func TestLedger_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	_, l := openLedger(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	require.NoError(t, l.Append(ctx, EventRunStarted, "", "", "", nil))

	l.now = func() time.Time { return base.Add(40 * 24 * time.Hour) }
	require.NoError(t, l.Append(ctx, EventRunFinished, "", "", "", nil))

	n, err := l.DeleteOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries, err := l.GetByRun(ctx, l.RunID())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EventRunFinished, entries[0].EventType)
	assert.Nil(t, entries[0].Payload)
}
