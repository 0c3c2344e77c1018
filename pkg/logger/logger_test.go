package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFileLogger logs JSON lines at debug level into a temp file
func newFileLogger(t *testing.T) (Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "saftrecon.log")
	log, err := NewLogger(&Config{
		Level:            DebugLevel,
		Format:           JSONFormat,
		Output:           FileOutput,
		File:             path,
		DisableTimestamp: true,
	})
	require.NoError(t, err)
	return log, path
}

func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "default", config: *DefaultConfig()},
		{name: "debug with caller", config: Config{Level: DebugLevel, Format: TextFormat, Output: StderrOutput, CallerInfo: true}},
		{name: "unknown level", config: Config{Level: "loud", Format: TextFormat, Output: StderrOutput}, wantErr: true},
		{name: "unknown format", config: Config{Level: InfoLevel, Format: "xml", Output: StderrOutput}, wantErr: true},
		{name: "unknown output", config: Config{Level: InfoLevel, Format: TextFormat, Output: "syslog"}, wantErr: true},
		{name: "file without path", config: Config{Level: InfoLevel, Format: TextFormat, Output: FileOutput}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				_, newErr := NewLogger(&tt.config)
				assert.Error(t, newErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLogger_FieldsAndComponent(t *testing.T) {
	log, path := newFileLogger(t)

	log.WithComponent("registry").
		WithFields(Fields{"orgnr": "923609016"}).
		Info("Lookup served from cache")

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "registry", entries[0]["component"])
	assert.Equal(t, "923609016", entries[0]["orgnr"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "Lookup served from cache", entries[0]["msg"])
}

func TestLeveledAdapter(t *testing.T) {
	log, path := newFileLogger(t)
	adapter := NewLeveledAdapter(log)

	adapter.Debug("performing request", "method", "GET", "url", "https://data.brreg.no")
	adapter.Warn("retrying", "attempt", 2, "dangling")
	adapter.Error("giving up")

	entries := readEntries(t, path)
	require.Len(t, entries, 3)

	assert.Equal(t, "debug", entries[0]["level"])
	assert.Equal(t, "GET", entries[0]["method"])
	assert.Equal(t, "https://data.brreg.no", entries[0]["url"])

	assert.Equal(t, "warning", entries[1]["level"])
	assert.Equal(t, float64(2), entries[1]["attempt"])
	assert.Equal(t, "(missing)", entries[1]["dangling"])

	assert.Equal(t, "error", entries[2]["level"])
}

func TestProgressTracker_MonotonicAndClamped(t *testing.T) {
	var percents []int
	tracker := NewProgressTracker("analysis", NewNop(), func(percent int, _ string) {
		percents = append(percents, percent)
	})

	tracker.Report(-5, "start")
	tracker.Report(40, "summarizing")
	tracker.Report(20, "late report")
	tracker.Report(150, "overshoot")
	tracker.Complete("done")

	assert.Equal(t, []int{0, 40, 40, 100, 100}, percents)
	assert.Equal(t, 100, tracker.Current())
}

func TestProgressTracker_NilCallback(t *testing.T) {
	tracker := NewProgressTracker("analysis", nil, nil)
	assert.NotPanics(t, func() {
		tracker.Report(50, "halfway")
		tracker.Complete("done")
	})
}

func TestOperationLogger(t *testing.T) {
	log, path := newFileLogger(t)

	op := NewOperationLogger("parse_trial_balance", log).WithField("file", "saldobalanse.csv")
	op.Step("reading headers")
	op.Warning("skipped subtotal row")
	op.Success("parsed")

	entries := readEntries(t, path)
	require.Len(t, entries, 4)
	assert.Equal(t, "Starting operation", entries[0]["msg"])
	for _, entry := range entries[1:] {
		assert.Equal(t, "parse_trial_balance", entry["operation"])
		assert.Equal(t, "saldobalanse.csv", entry["file"])
	}
	assert.Equal(t, "reading headers", entries[1]["step"])
	last := entries[len(entries)-1]
	assert.Equal(t, "info", last["level"])
	assert.Contains(t, last, "duration")
}
