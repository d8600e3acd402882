package queue

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
)

func change() model.ChangeEvent {
	return model.NewChangeEvent(model.Shelter{
		ID:            "S1",
		Name:          "Harbor House",
		TotalBeds:     20,
		AvailableBeds: 3,
		AllowsPets:    true,
		UpdatedBy:     "a@example.org",
		LastUpdated:   time.Date(2026, 10, 1, 8, 30, 0, 123456000, time.UTC),
		Revision:      4,
	})
}

func TestCodec(t *testing.T) {
	m := FromEvent(change())
	assert.Equal(t, "LIMITED", m.Status)

	b1, err := Marshal(m)
	require.NoError(t, err)
	b2, err := Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, b1, b2, "deterministic encoding")

	got, err := Unmarshal(b1)
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.Equal(t, change().Record.LastUpdated, got.LastUpdated())
}

func TestUnmarshal_Rejects(t *testing.T) {
	_, err := Unmarshal([]byte("not cbor"))
	assert.Error(t, err)

	noID, _ := cbor.Marshal(map[string]any{"revision": 1})
	_, err = Unmarshal(noID)
	assert.ErrorContains(t, err, "missing id")

	neg, _ := cbor.Marshal(map[string]any{"id": "S1", "revision": -1})
	_, err = Unmarshal(neg)
	assert.ErrorContains(t, err, "negative revision")
}

func TestUnmarshal_IgnoresUnknownFields(t *testing.T) {
	b, _ := cbor.Marshal(map[string]any{"id": "S1", "revision": 2, "future_field": "x"})
	m, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.Revision)
}

func TestFormatAuditLine(t *testing.T) {
	line := FormatAuditLine(FromEvent(change()))
	assert.Equal(t,
		"[2026-10-01T08:30:00.123456Z] Shelter updated | id=S1 | revision=4 | shelter=\"Harbor House\" | beds=3/20 | status=LIMITED | pets=true | sobriety=false | families=false | by=\"a@example.org\"\n",
		line)
}

func TestAuditLog_HandleMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	a := NewAuditLog(path)

	body, err := Marshal(FromEvent(change()))
	require.NoError(t, err)
	require.NoError(t, a.handleMessage(body))
	require.NoError(t, a.handleMessage(body))
	assert.Error(t, a.handleMessage([]byte{0xff}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.Len(t, lines, 2)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, NextBackoff(time.Second, 30*time.Second))
	assert.Equal(t, 30*time.Second, NextBackoff(20*time.Second, 30*time.Second))
	assert.Equal(t, 30*time.Second, NextBackoff(20*time.Second, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, SleepContext(ctx, time.Hour))
	assert.True(t, SleepContext(context.Background(), time.Millisecond))
}
