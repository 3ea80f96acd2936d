package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-agents/internal/config"
)

func decodeLines(t *testing.T, s string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNewLoggerWithConfig_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{Level: "debug", Console: true, JSON: true, Out: &buf})

	run := WithRun(logger, "run-1")
	LogAgentRun(WithAgent(run, "forecasting"), "forecasting", 2, 150*time.Millisecond, 0.8, errors.New("boom"))
	LogAlert(WithProduct(run, "SKU-A"), "a1", "SKU-A", "STOCKOUT_RISK", "CRITICAL", 3.5)

	lines := decodeLines(t, buf.String())
	require.Len(t, lines, 2)

	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, "forecasting", lines[0]["agent"])
	assert.Equal(t, float64(2), lines[0]["attempt"])
	assert.Equal(t, "boom", lines[0]["error"])

	assert.Equal(t, "debug", lines[1]["level"])
	assert.Equal(t, "SKU-A", lines[1]["product_id"])
	assert.Equal(t, "CRITICAL", lines[1]["severity"])
}

func TestNewLoggerWithConfig_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{Level: "warn", Console: true, JSON: true, Out: &buf})

	logger.Info().Msg("hidden")
	LogRun(logger, "run-1", "SEQUENTIAL", "DONE", true, 0.9, time.Second)
	logger.Warn().Msg("shown")

	lines := decodeLines(t, buf.String())
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestNewLoggerWithConfig_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "stockagents.log")
	logger := NewLoggerWithConfig(FromConfig(config.LoggingConfig{
		Level:      "info",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}))

	phaseLog := WithPhase(logger, "FORECASTING")
	phaseLog.Info().Msg("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, string(data))
	require.Len(t, lines, 1)
	assert.Equal(t, "FORECASTING", lines[0]["phase"])
}

func TestNewLoggerWithConfig_NoSinks(t *testing.T) {
	logger := NewLoggerWithConfig(LogConfig{Level: "info"})
	logger.Info().Msg("discarded")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestContextLogger(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, FromContext(context.Background()).GetLevel())

	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{Level: "info", Console: true, JSON: true, Out: &buf})
	ctx := WithLogger(context.Background(), WithRun(logger, "run-9"))

	ctxLog := FromContext(ctx)
	ctxLog.Info().Msg("from context")
	lines := decodeLines(t, buf.String())
	require.Len(t, lines, 1)
	assert.Equal(t, "run-9", lines[0]["run_id"])
}
