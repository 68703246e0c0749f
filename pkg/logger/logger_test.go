package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerCarriesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "ledger", Level: zerolog.DebugLevel, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-1")
	ctx = log.WithAccountID(ctx, 42)
	log.Error(ctx, "commit failed", errors.New("disk full"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.EqualValues(t, 42, line["account_id"])
	assert.Equal(t, "disk full", line["error"])
	assert.Equal(t, "ledger", line["service"])
	assert.Equal(t, "error", line["level"])
}

func TestTimestampLeavesGlobalFormatAlone(t *testing.T) {
	before := zerolog.TimeFieldFormat
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf})
	ctx := log.WithRequestID(context.Background(), "req-2")
	log.Info(ctx, "stamped")

	assert.Equal(t, before, zerolog.TimeFieldFormat)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	raw, ok := line["time"].(string)
	require.True(t, ok)
	stamp, err := time.Parse(time.RFC3339Nano, raw)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), stamp, time.Minute)
	assert.Equal(t, time.UTC, stamp.Location())
}

func TestLoggerLevelFilters(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "ledger", Level: zerolog.WarnLevel, Output: buf})

	log.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	log.Warn(context.Background(), "shown", nil)
	assert.Contains(t, buf.String(), "shown")
}

func TestWithFieldsDoesNotLeakIntoParent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf})

	parent := context.Background()
	_ = log.WithFields(parent, map[string]any{"kind": "debit"})
	log.Info(parent, "plain")
	assert.NotContains(t, buf.String(), "debit")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Error(context.Background(), "nothing", errors.New("x"))
}
