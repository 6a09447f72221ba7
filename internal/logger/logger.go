package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

type Logger struct {
	level   Level
	loggers map[Level]*log.Logger
}

func (l *Logger) output(level Level, s string) {
	if lg, ok := l.loggers[level]; ok {
		_ = lg.Output(3, s)
	}
}

func (l *Logger) Trace(v ...any) { l.output(LevelTrace, fmt.Sprintln(v...)) }
func (l *Logger) Debug(v ...any) { l.output(LevelDebug, fmt.Sprintln(v...)) }
func (l *Logger) Info(v ...any)  { l.output(LevelInfo, fmt.Sprintln(v...)) }
func (l *Logger) Warn(v ...any)  { l.output(LevelWarn, fmt.Sprintln(v...)) }
func (l *Logger) Error(v ...any) { l.output(LevelError, fmt.Sprintln(v...)) }

func (l *Logger) Tracef(format string, v ...any) { l.output(LevelTrace, fmt.Sprintf(format, v...)) }
func (l *Logger) Debugf(format string, v ...any) { l.output(LevelDebug, fmt.Sprintf(format, v...)) }
func (l *Logger) Infof(format string, v ...any)  { l.output(LevelInfo, fmt.Sprintf(format, v...)) }
func (l *Logger) Warnf(format string, v ...any)  { l.output(LevelWarn, fmt.Sprintf(format, v...)) }
func (l *Logger) Errorf(format string, v ...any) { l.output(LevelError, fmt.Sprintf(format, v...)) }

// Fatalf logs at FATAL and exits the process.
func (l *Logger) Fatalf(format string, v ...any) {
	l.output(LevelFatal, fmt.Sprintf(format, v...))
	os.Exit(1)
}

func (l *Logger) Level() Level {
	return l.level
}

// NewLogger enables every level up to and including level. Errors and fatals
// go to errOut, everything else to out.
func NewLogger(level Level, out io.Writer, errOut io.Writer) *Logger {
	flag := log.LstdFlags | log.Lshortfile
	loggers := make(map[Level]*log.Logger)
	for lv := LevelFatal; lv <= level && lv <= LevelTrace; lv++ {
		w := out
		if lv <= LevelError {
			w = errOut
		}
		loggers[lv] = log.New(w, fmt.Sprintf("%-5s:", lv), flag)
	}
	return &Logger{level: level, loggers: loggers}
}

// Discard returns a logger with every level disabled.
func Discard() *Logger {
	return NewLogger(LevelOff, io.Discard, io.Discard)
}
