package journal

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// StdLogger is a leveled Logger backed by the standard library's log
// package, the ambient logging surface for any process that does not need
// a structured/JSON sink (spec §2 component G).
type StdLogger struct {
	*log.Logger
	minLevel level
}

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

// NewStdLogger builds a StdLogger writing to stderr. minLevel filters out
// anything below it ("debug", "info", "warn", "error"; unrecognized values
// default to "info").
func NewStdLogger(minLevel string) *StdLogger {
	return &StdLogger{
		Logger:   log.New(os.Stderr, "", log.LstdFlags),
		minLevel: parseLevel(minLevel),
	}
}

func parseLevel(s string) level {
	switch strings.ToLower(s) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (l *StdLogger) log(lvl level, tag, msg string, args ...interface{}) {
	if lvl < l.minLevel {
		return
	}
	l.Logger.Print(tag + " " + msg + formatArgs(args))
}

func formatArgs(args []interface{}) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		fmt.Fprintf(&b, " %v", args[len(args)-1])
	}
	return b.String()
}

func (l *StdLogger) Debug(msg string, args ...interface{}) { l.log(levelDebug, "[DEBUG]", msg, args...) }
func (l *StdLogger) Info(msg string, args ...interface{})  { l.log(levelInfo, "[INFO]", msg, args...) }
func (l *StdLogger) Warn(msg string, args ...interface{})  { l.log(levelWarn, "[WARN]", msg, args...) }
func (l *StdLogger) Error(msg string, args ...interface{}) { l.log(levelError, "[ERROR]", msg, args...) }

var _ Logger = (*StdLogger)(nil)
