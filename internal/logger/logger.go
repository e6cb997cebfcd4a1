package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger writes levelled lines for one component (a symbol, RISK_MGR or MAIN)
// to a daily file under the log directory and mirrors them to stdout.
type Logger struct {
	component string
	interval  string
	logFile   *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logDir    string
	now       func() time.Time
}

type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

const timeLayout = "2006-01-02 15:04:05"

// DefaultDir is where New places log files.
var DefaultDir = "logs"

// New creates a logger in DefaultDir that also prints to stdout.
func New(component, interval string) (*Logger, error) {
	return NewInDir(DefaultDir, component, interval, os.Stdout)
}

// NewInDir creates a logger writing to dir. A nil mirror disables console output.
func NewInDir(dir, component, interval string, mirror io.Writer) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		component: component,
		interval:  interval,
		logDir:    dir,
		now:       time.Now,
	}

	file, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.logFile = file

	var w io.Writer = file
	if mirror != nil {
		w = io.MultiWriter(file, mirror)
	}
	l.logger = log.New(w, "", 0)

	l.writeSessionHeader()
	return l, nil
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	return &Logger{component: "nop", logger: log.New(io.Discard, "", 0), now: time.Now}
}

// NewWriter returns a logger that writes only to w.
func NewWriter(component string, w io.Writer) *Logger {
	return &Logger{component: component, logger: log.New(w, "", 0), now: time.Now}
}

func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Printf(`
================================================================================
ORACLE TRADING SESSION STARTED
Component: %s | Interval: %s
Started: %s
================================================================================
`, l.component, l.interval, l.now().Format(timeLayout))
}

// Log writes "[time] [LEVEL] [component] message".
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] [%s] %s", l.now().Format(timeLayout), level, l.component, message)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs an executed or attempted order.
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs per-cycle market and account state.
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

func (l *Logger) LogWarning(context string, message string, args ...interface{}) {
	l.Warning("%s", fmt.Sprintf(context+": "+message, args...))
}

// LogCycle logs the market snapshot a trader acted on.
func (l *Logger) LogCycle(price float64, regime, action, confidence string, amount float64, position string) {
	l.Status("price=%.4f regime=%s signal=%s/%s amount=%.6f position=%s",
		price, regime, action, confidence, amount, position)
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}
	l.logger.Printf(`
================================================================================
ORACLE TRADING SESSION ENDED
Ended: %s
================================================================================
`, l.now().Format(timeLayout))
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// Path returns the current daily log file path.
func (l *Logger) Path() string {
	name := fmt.Sprintf("%s_%s_%s.log", fileSafe(l.component), l.interval, l.now().Format("2006-01-02"))
	return filepath.Join(l.logDir, name)
}

var fileReplacer = strings.NewReplacer("/", "_", ":", "_", " ", "_", "\\", "_")

func fileSafe(s string) string {
	return fileReplacer.Replace(s)
}
