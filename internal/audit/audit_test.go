package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-meet/pkg/log"
)

func TestLogWithDetail(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), log.New(log.Config{Output: &buf}))

	LogWithDetail(ctx, ActionAccessDenied, "c1", "r1", "10.0.0.2", "join rejected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, log.LogTypeAudit, entry[log.FieldLogType])
	assert.Equal(t, ActionAccessDenied, entry[FieldAction])
	assert.Equal(t, "c1", entry[log.FieldClientID])
	assert.Equal(t, "r1", entry[log.FieldRoomID])
	assert.Equal(t, "10.0.0.2", entry[FieldDetail])
	assert.Equal(t, "join rejected", entry["message"])
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), log.New(log.Config{Output: &buf}))

	Log(ctx, ActionJoin, "c1", "r1", "joined room")
	assert.Contains(t, buf.String(), `"action":"meet.join"`)
	assert.NotContains(t, buf.String(), FieldDetail)
}
