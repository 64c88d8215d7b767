package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/models"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestPGHandler_PersistsErrorsOnly(t *testing.T) {
	db := testutil.NewDB(t, &models.SystemLog{})
	pg := newPGHandler(db, 100, time.Hour)
	t.Cleanup(pg.Stop)

	var out bytes.Buffer
	logger := slog.New(NewMultiHandler(NewStdoutHandler(&out, "info"), pg)).
		With("tenant_path", "california_merced_uc_merced")

	logger.Info("meeting created", "action", "create_meeting")
	logger.Error("request failed", "user_id", "jane_doe", "trace_id", "req-1",
		"error", "boom", "latency_ms", int64(12), "path", "/api/p/meetings")
	pg.Flush()

	var rows []models.SystemLog
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "ERROR", row.Level)
	assert.Equal(t, "request failed", row.Message)
	assert.Equal(t, "california_merced_uc_merced", row.TenantPath)
	assert.Equal(t, "req-1", row.TraceID)
	require.NotNil(t, row.UserID)
	assert.Equal(t, "jane_doe", *row.UserID)
	assert.Equal(t, "boom", row.Error)
	assert.Equal(t, 12, row.LatencyMs)

	var extra map[string]interface{}
	require.NoError(t, json.Unmarshal(row.Extra, &extra))
	assert.Equal(t, "/api/p/meetings", extra["path"])

	assert.Contains(t, out.String(), "meeting created")
	assert.Contains(t, out.String(), "request failed")
}

func TestPurgeOlderThan(t *testing.T) {
	db := testutil.NewDB(t, &models.SystemLog{})
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&[]models.SystemLog{
		{ID: uuid.New(), Timestamp: now.AddDate(0, 0, -40), Level: "ERROR", Message: "old"},
		{ID: uuid.New(), Timestamp: now.AddDate(0, 0, -1), Level: "ERROR", Message: "recent"},
	}).Error)

	deleted, err := PurgeOlderThan(db, 30, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var left []models.SystemLog
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "recent", left[0].Message)
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandler_KeepsGoingPastFailures(t *testing.T) {
	var out bytes.Buffer
	stdout := NewStdoutHandler(&out, "info")
	logger := slog.New(NewMultiHandler(failingHandler{stdout}, stdout))

	logger.Info("still written")
	assert.Contains(t, out.String(), "still written")

	err := NewMultiHandler(failingHandler{stdout}, stdout).Handle(context.Background(),
		slog.NewRecord(time.Now(), slog.LevelInfo, "direct", 0))
	assert.EqualError(t, err, "sink down")
}
