package logging

import (
	golog "github.com/ipfs/go-log/v2"
	"go.uber.org/zap/zapcore"
)

// SetLogLevels sets levels for the given systems. The "*" system applies the
// level to every registered subsystem.
func SetLogLevels(systems map[string]golog.LogLevel) error {
	for sys, level := range systems {
		l := zapcore.Level(level)
		if sys == "*" {
			for _, s := range golog.GetSubsystems() {
				if err := golog.SetLogLevel(s, l.CapitalString()); err != nil {
					return err
				}
			}
			continue
		}
		if err := golog.SetLogLevel(sys, l.CapitalString()); err != nil {
			return err
		}
	}
	return nil
}

// ParseLevel parses a zap level name such as "debug" or "WARN".
func ParseLevel(name string) (golog.LogLevel, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return 0, err
	}
	return golog.LogLevel(l), nil
}
