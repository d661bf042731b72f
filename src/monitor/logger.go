package monitor

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// LogLevel represents severity.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]LogLevel{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "INFO"
}

var currentLevel int32 = int32(LevelInfo)

var baseLogger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)

// SetLogLevel parses and sets the global log level. Unknown names are ignored and reported as false.
func SetLogLevel(s string) bool {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return false
	}
	atomic.StoreInt32(&currentLevel, int32(l))
	return true
}

// SetLogOutput redirects log lines; the CLI's -quiet passes io.Discard.
func SetLogOutput(w io.Writer) { baseLogger.SetOutput(w) }

// GetLogLevel returns the current global log level.
func GetLogLevel() LogLevel { return LogLevel(atomic.LoadInt32(&currentLevel)) }

func logf(l LogLevel, format string, args ...interface{}) {
	if GetLogLevel() > l {
		return
	}
	// Plain messages are not run through Sprintf so literal % survives.
	if len(args) == 0 {
		baseLogger.Printf("[%s] %s", l, format)
		return
	}
	baseLogger.Printf("[%s] %s", l, fmt.Sprintf(format, args...))
}

func Debugf(format string, a ...interface{}) { logf(LevelDebug, format, a...) }
func Infof(format string, a ...interface{})  { logf(LevelInfo, format, a...) }
func Warnf(format string, a ...interface{})  { logf(LevelWarn, format, a...) }
func Errorf(format string, a ...interface{}) { logf(LevelError, format, a...) }

// TimeTrack logs the time spent since start at debug level: defer TimeTrack(time.Now(), "ess").
func TimeTrack(start time.Time, label string) {
	Debugf("%s took %s", label, time.Since(start))
}
