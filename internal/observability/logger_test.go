// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/uxpilot/internal/config"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	t.Run("console format colorizes the level", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}
		logger, err := NewLogger(cfg, WriterSyncer(&buf))
		require.NoError(t, err)

		logger.Info("This is a test message.")
		_ = logger.Sync()

		output := buf.String()
		assert.Contains(t, output, colorGreen+"INFO"+colorReset)
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, "TestService.")
	})

	t.Run("json format emits structured entries", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}
		logger, err := NewLogger(cfg, WriterSyncer(&buf))
		require.NoError(t, err)

		ForRun(logger, "run-1").Warn("This is a JSON message.", zap.String("key", "value"))
		_ = logger.Sync()

		var entry map[string]interface{}
		require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &entry), "Log output should be valid JSON")
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "This is a JSON message.", entry["msg"])
		assert.Equal(t, "value", entry["key"])
		assert.Equal(t, "run-1", entry[FieldRunID])
	})

	t.Run("level filters lower entries", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(config.LoggerConfig{Level: "warn", Format: "json"}, WriterSyncer(&buf))
		require.NoError(t, err)

		logger.Info("hidden")
		_ = logger.Sync()
		assert.Empty(t, buf.String())
	})

	t.Run("invalid level is an error", func(t *testing.T) {
		_, err := NewLogger(config.LoggerConfig{Level: "loud"}, WriterSyncer(&bytes.Buffer{}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log file receives json entries", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "uxpilot.log")
		cfg := config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1}
		logger, err := NewLogger(cfg, WriterSyncer(&bytes.Buffer{}))
		require.NoError(t, err)

		logger.Error("This should go to the file.")
		_ = logger.Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`)
	})
}

func TestInitialize(t *testing.T) {
	t.Run("only the first call wins", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, WriterSyncer(&buf))
		logger1 := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, WriterSyncer(&buf))
		logger2 := GetLogger()

		assert.Same(t, logger1, logger2)
		logger2.Info("test")
		Sync()

		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{Level: "chatty", Format: "json"}, WriterSyncer(&buf))
		logger := GetLogger()
		logger.Debug("not shown")
		logger.Info("shown")
		Sync()

		assert.NotContains(t, buf.String(), "not shown")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestGetLogger(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotNil(t, GetLogger(), "fallback logger is returned before initialization")

	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, WriterSyncer(&bytes.Buffer{}))
	assert.Same(t, globalLogger.Load(), GetLogger())
}
