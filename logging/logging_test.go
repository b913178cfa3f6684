// SPDX-License-Identifier: Apache-2.0

package logging_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sam-fredrickson/keyrecon"
	"github.com/sam-fredrickson/keyrecon/logging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := logging.DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "auto", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.False(t, cfg.AddCaller)
}

func TestNewLoggerFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyrecon.log")

	logger, closer := logging.NewLoggerFromConfig(&logging.Config{
		Level:     "warn",
		Format:    "json",
		Output:    path,
		AddCaller: true,
	})
	logger.Info().Msg("info message")
	logger.Warn().Str("key", "alarm.severity").Msg("warn message")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	output := string(content)
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, `"key":"alarm.severity"`)
	assert.Contains(t, output, `"caller"`)
}

func TestNewLoggerFromConfigLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, _ := logging.NewLoggerFromConfig(&logging.Config{Level: tt.level, Output: "discard"})
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestSetDefault(t *testing.T) {
	original := *logging.Default()
	t.Cleanup(func() { logging.SetDefault(original) })

	buf := &bytes.Buffer{}
	logging.SetDefault(logging.New(buf, zerolog.DebugLevel))
	logging.Default().Debug().Msg("debug message")
	assert.Contains(t, buf.String(), "debug message")
}

func TestZerologAdapter(t *testing.T) {
	tl := logging.NewTestLogger(t)
	log := logging.Zerolog(*tl.Logger)

	log.Info("value reconciled",
		keyrecon.F(keyrecon.FieldDiffID, "run-1"),
		keyrecon.F(keyrecon.FieldKey, "alarm.severity"),
		keyrecon.F(keyrecon.FieldBranch, "user_kept"))
	log.Warn("key deleted", keyrecon.F(keyrecon.FieldKey, "legacy"))
	log.Error("fix function failed", keyrecon.F(keyrecon.FieldError, errors.New("boom")), keyrecon.F("index", 2))

	tl.AssertCount(t, 3)
	entries := tl.Entries(t)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "run-1", entries[0][keyrecon.FieldDiffID])
	assert.Equal(t, "user_kept", entries[0][keyrecon.FieldBranch])
	assert.Equal(t, "warn", entries[1]["level"])
	assert.Equal(t, "boom", entries[2][keyrecon.FieldError])
	assert.EqualValues(t, 2, entries[2]["index"])
}

func TestZerologAdapterDisabledLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logging.Zerolog(logging.New(buf, zerolog.ErrorLevel))
	log.Info("hidden", keyrecon.F(keyrecon.FieldKey, "a"))
	assert.Empty(t, buf.String())
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := logging.Zap(zap.New(core))

	log.Info("key added", keyrecon.F(keyrecon.FieldKey, "alarm"), keyrecon.F(keyrecon.FieldNew, `"MAJOR"`))
	log.Warn("key deleted", keyrecon.F(keyrecon.FieldKey, "legacy"))

	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "key added", entry.Message)
	assert.Equal(t, map[string]any{"key": "alarm", "new": `"MAJOR"`}, entry.ContextMap())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)

	// nil discards
	logging.Zap(nil).Error("ignored")
}

func TestAdapterDrivesReconciler(t *testing.T) {
	tl := logging.NewTestLogger(t)
	summary, err := keyrecon.Update(keyrecon.Options{DiffID: "run-7", Logger: logging.Zerolog(*tl.Logger)},
		keyrecon.Map{"a": keyrecon.Int(1)},
		keyrecon.Map{"b": keyrecon.Int(2)})
	require.NoError(t, err)
	assert.Len(t, summary, 1)

	tl.AssertCount(t, 2)
	tl.AssertContains(t, `"diff_id":"run-7"`)
	tl.AssertContains(t, `"message":"key added"`)
	tl.AssertContains(t, `"message":"key deleted"`)
}
