package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"grid-keeper/internal/config"
)

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Logger keeps one stdlib logger per level; disabled levels write to io.Discard.
type Logger struct {
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	file        *os.File
}

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// GetLogLevelFromString converts a config level, unknown values map to INFO.
func GetLogLevelFromString(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

/**
 * Initialize the logging system
 * @param {*config.LogConfig} cfg - Level and output path
 * @param {bool} isServerMode - Server mode mirrors every line to stdout
 * @description
 * - "console" or empty path writes to stderr only
 * - A file path is created if needed; CLI mode still mirrors warnings and errors to stderr
 * - Falls back to stderr when the file cannot be opened
 */
func InitLogger(cfg *config.LogConfig, isServerMode bool) {
	var output io.Writer = os.Stderr
	var file *os.File
	if cfg.Path != "" && cfg.Path != "console" {
		if f, err := openLogFile(cfg.Path); err != nil {
			fmt.Fprintf(os.Stderr, "open log file '%s' failed: %v\n", cfg.Path, err)
		} else {
			file = f
			output = f
		}
	}
	loud := output
	if file != nil {
		if isServerMode {
			output = io.MultiWriter(os.Stdout, file)
			loud = output
		} else {
			loud = io.MultiWriter(os.Stderr, file)
		}
	}
	SetOutput(output, loud, GetLogLevelFromString(cfg.Level))

	mu.Lock()
	defaultLogger.file = file
	mu.Unlock()
}

// SetOutput installs a logger writing debug/info to out and warn/error to loud.
func SetOutput(out, loud io.Writer, level LogLevel) {
	flags := log.LstdFlags | log.Lshortfile

	l := &Logger{
		debugLogger: log.New(io.Discard, "DEBUG: ", flags),
		infoLogger:  log.New(io.Discard, "INFO: ", flags),
		warnLogger:  log.New(io.Discard, "WARN: ", flags),
		errorLogger: log.New(io.Discard, "ERROR: ", flags),
	}
	if level <= DEBUG {
		l.debugLogger.SetOutput(out)
	}
	if level <= INFO {
		l.infoLogger.SetOutput(out)
	}
	if level <= WARN {
		l.warnLogger.SetOutput(loud)
	}
	if level <= ERROR {
		l.errorLogger.SetOutput(loud)
	}

	mu.Lock()
	old := defaultLogger
	defaultLogger = l
	mu.Unlock()
	if old != nil && old.file != nil {
		old.file.Close()
	}
}

func openLogFile(logPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// calldepth 3 reports the caller of Debugf/Infof/... rather than this file
const calldepth = 3

func output(pick func(*Logger) *log.Logger, msg string) {
	if l := current(); l != nil {
		pick(l).Output(calldepth, msg)
	}
}

func Debug(v ...interface{}) {
	output(func(l *Logger) *log.Logger { return l.debugLogger }, fmt.Sprintln(v...))
}

func Debugf(format string, v ...interface{}) {
	output(func(l *Logger) *log.Logger { return l.debugLogger }, fmt.Sprintf(format, v...))
}

func Info(v ...interface{}) {
	output(func(l *Logger) *log.Logger { return l.infoLogger }, fmt.Sprintln(v...))
}

func Infof(format string, v ...interface{}) {
	output(func(l *Logger) *log.Logger { return l.infoLogger }, fmt.Sprintf(format, v...))
}

func Warn(v ...interface{}) {
	output(func(l *Logger) *log.Logger { return l.warnLogger }, fmt.Sprintln(v...))
}

func Warnf(format string, v ...interface{}) {
	output(func(l *Logger) *log.Logger { return l.warnLogger }, fmt.Sprintf(format, v...))
}

func Error(v ...interface{}) {
	output(func(l *Logger) *log.Logger { return l.errorLogger }, fmt.Sprintln(v...))
}

func Errorf(format string, v ...interface{}) {
	output(func(l *Logger) *log.Logger { return l.errorLogger }, fmt.Sprintf(format, v...))
}

// Fatal logs and exits; before InitLogger it writes straight to stderr.
func Fatal(v ...interface{}) {
	if l := current(); l != nil {
		l.errorLogger.Output(2, fmt.Sprintln(v...))
	} else {
		fmt.Fprintln(os.Stderr, append([]interface{}{"FATAL:"}, v...)...)
	}
	os.Exit(1)
}

func Fatalf(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.errorLogger.Output(2, fmt.Sprintf(format, v...))
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: "+format+"\n", v...)
	}
	os.Exit(1)
}
