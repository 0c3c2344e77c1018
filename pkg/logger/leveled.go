package logger

import "fmt"

// LeveledAdapter exposes a Logger through the msg plus key/value pair
// signature used by HTTP retry clients.
type LeveledAdapter struct {
	logger Logger
}

// NewLeveledAdapter wraps logger. A nil logger falls back to the global one.
func NewLeveledAdapter(logger Logger) *LeveledAdapter {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &LeveledAdapter{logger: logger}
}

func (a *LeveledAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.with(keysAndValues).Error(msg)
}

func (a *LeveledAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.with(keysAndValues).Info(msg)
}

// Debug is used for every attempt, so retry chatter stays out of normal runs.
func (a *LeveledAdapter) Debug(msg string, keysAndValues ...interface{}) {
	a.with(keysAndValues).Debug(msg)
}

func (a *LeveledAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.with(keysAndValues).Warn(msg)
}

func (a *LeveledAdapter) with(keysAndValues []interface{}) Logger {
	if len(keysAndValues) == 0 {
		return a.logger
	}

	fields := make(Fields, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 >= len(keysAndValues) {
			fields[key] = "(missing)"
			break
		}
		fields[key] = keysAndValues[i+1]
	}
	return a.logger.WithFields(fields)
}
