package log_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tendermint/nodecore/libs/log"
)

func TestDefaultLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewDefaultLogger(&buf, log.FormatJSON, "debug")

	logger.Info("hello", "height", 10)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["message"])
	require.EqualValues(t, 10, line["height"])
}

func TestDefaultLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewDefaultLogger(&buf, log.FormatJSON, "error")

	logger.Debug("skipped")
	logger.Info("skipped too")
	require.Empty(t, buf.Bytes())

	logger.Error("kept")
	require.NotEmpty(t, buf.Bytes())
}

func TestDefaultLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewDefaultLogger(&buf, log.FormatJSON, "debug")
	child := logger.With("component", "dispatcher")

	child.Info("started")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "dispatcher", line["component"])
}

func TestNopLoggerNeverPanics(t *testing.T) {
	logger := log.NewNopLogger()
	logger.Debug("x")
	logger.Info("y")
	logger.Error("z")
	logger.With("k", "v").Info("w")
}
