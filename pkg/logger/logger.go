package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the admin service and its tools.
// Init(level) once at startup; the *w variants take alternating key/value pairs.

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values fall back to info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = parseLevel(l)
}

func parseLevel(l string) Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// SetOutput redirects all log output. Intended for tests and for the
// terminal client, which must keep stdout free for its UI.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", 0)
}

func header(lvl string) string {
	return fmt.Sprintf("%s [%s] ", time.Now().Format(time.RFC3339), strings.ToUpper(lvl))
}

func shouldLog(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func output(lvl Level, name, line string) {
	if !shouldLog(lvl) {
		return
	}
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Print(header(name) + line)
}

func Debugf(format string, v ...interface{}) { output(LevelDebug, "debug", fmt.Sprintf(format, v...)) }
func Infof(format string, v ...interface{})  { output(LevelInfo, "info", fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...interface{})  { output(LevelWarn, "warn", fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...interface{}) { output(LevelError, "error", fmt.Sprintf(format, v...)) }

func Fatalf(format string, v ...interface{}) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Print(header("fatal") + fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Debugw logs msg followed by key=value pairs.
func Debugw(msg string, kv ...interface{}) { output(LevelDebug, "debug", msg+fields(kv)) }
func Infow(msg string, kv ...interface{})  { output(LevelInfo, "info", msg+fields(kv)) }
func Warnw(msg string, kv ...interface{})  { output(LevelWarn, "warn", msg+fields(kv)) }

func fields(kv []interface{}) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(kv) {
			fmt.Fprintf(&b, "%v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&b, "%v=<missing>", kv[i])
		}
	}
	return b.String()
}

func Info(v string) { Infof("%s", v) }
func Warn(v string) { Warnf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
