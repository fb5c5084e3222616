package logwriter

import (
	"fmt"
	"strings"
	"time"
)

// Level orders log lines by severity. A line is kept when its level is at or
// below the configured threshold; None keeps nothing.
type Level int

const (
	LevelNone Level = iota
	LevelError
	LevelWarn
	LevelLog
	LevelDebug
	LevelTrace
)

var levelNames = [...]string{"NONE", "ERROR", "WARN", "LOG", "DEBUG", "TRACE"}

func (l Level) String() string {
	if l < LevelNone || int(l) >= len(levelNames) {
		return "?"
	}
	return levelNames[l]
}

// ParseLevel maps a case-insensitive level name to a Level.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "INFO" {
		return LevelLog, nil
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelNone, fmt.Errorf("logwriter: unknown level %q", s)
}

// Enabled reports whether a line at level passes threshold.
func (threshold Level) Enabled(level Level) bool {
	return level != LevelNone && level <= threshold
}

// FormatLine renders one diagnostic line:
//
//	📠 [19.10.2026 14:03:07 WARN]: ▸ message arg1, arg2
//
// t is rendered in its own location; callers convert it first.
func FormatLine(t time.Time, level Level, message string, args ...any) string {
	var b strings.Builder
	b.WriteString("📠 [")
	b.WriteString(t.Format("02.01.2006 15:04:05"))
	b.WriteByte(' ')
	b.WriteString(level.String())
	b.WriteString("]: ▸ ")
	b.WriteString(message)
	if len(args) > 0 {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprint(a)
		}
		b.WriteByte(' ')
		b.WriteString(strings.Join(parts, ", "))
	}
	return b.String()
}
