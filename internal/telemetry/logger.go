// Package telemetry provides the module's leveled logger and error
// reporting. The default production level suppresses per-request chatter,
// and a rotating file sink is available for hosts that want persistent
// logs.
//
// Unlike a generic request/response server log, every call site in this
// module is logging about one of three recurring domain objects: a
// session-vault refresh, a probe dispatch, or a signing attempt. Rather
// than have each package Sprintf those values into the message string,
// the logger carries them as ordered structured fields so the line stays
// greppable/parseable regardless of message wording. WithAttempt and
// WithProbe below are the two shapes that come up over and over.
package telemetry

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Level represents log severity.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const (
	colorReset = "\033[0m"
	colorDebug = "\033[36m"
	colorInfo  = "\033[32m"
	colorWarn  = "\033[33m"
	colorError = "\033[31m"
)

func (l Level) color() string {
	switch l {
	case DEBUG:
		return colorDebug
	case INFO:
		return colorInfo
	case WARN:
		return colorWarn
	case ERROR:
		return colorError
	default:
		return colorReset
	}
}

// field is one structured key/value pair. Fields are kept in a slice
// rather than a map so a logger derived with WithAttempt().WithProbe()
// always prints in that same left-to-right order, useful when grepping
// a log for "attempt=" immediately followed by "probe=".
type field struct {
	key   string
	value interface{}
}

// Logger provides structured, component-tagged logging.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	fields    []field
	useColor  bool
}

// Config configures the default logger.
type Config struct {
	Output   io.Writer
	MinLevel Level
	UseColor bool

	// RotatingLogFile, if set, adds a lumberjack-backed rotating file sink
	// alongside Output. Production deployments that want persistent logs
	// set this instead of redirecting Output to a raw *os.File.
	RotatingLogFile string
	MaxSizeMB       int
	MaxBackups      int
	MaxAgeDays      int
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init initializes the default logger. Safe to call multiple times; only
// the first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		var sinks []io.Writer
		if cfg.Output != nil {
			sinks = append(sinks, cfg.Output)
		} else {
			sinks = append(sinks, os.Stdout)
		}
		if cfg.RotatingLogFile != "" {
			sinks = append(sinks, &lumberjack.Logger{
				Filename:   cfg.RotatingLogFile,
				MaxSize:    orDefault(cfg.MaxSizeMB, 50),
				MaxBackups: orDefault(cfg.MaxBackups, 5),
				MaxAge:     orDefault(cfg.MaxAgeDays, 30),
				Compress:   true,
			})
		}

		defaultLogger = &Logger{
			output:   io.MultiWriter(sinks...),
			minLevel: cfg.MinLevel,
			useColor: cfg.UseColor,
		}
		log.SetOutput(&logAdapter{logger: defaultLogger})
		log.SetFlags(0)
	})
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

type logAdapter struct {
	logger *Logger
}

func (a *logAdapter) Write(p []byte) (n int, err error) {
	a.logger.Info(strings.TrimSpace(string(p)))
	return len(p), nil
}

// Default returns the default logger, initializing it with production
// defaults (INFO, no color) if nothing has called Init yet.
func Default() *Logger {
	if defaultLogger == nil {
		Init(Config{Output: os.Stdout, MinLevel: INFO, UseColor: false})
	}
	return defaultLogger
}

// WithComponent returns a logger tagged with the given component name
// (SESSION_VAULT, API_SENTINEL, RISK_MATRIX and so on, one per package
// under internal/).
func WithComponent(component string) *Logger {
	l := Default()
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		useColor:  l.useColor,
	}
}

// WithField returns a new logger with an additional structured field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	newFields := make([]field, len(l.fields), len(l.fields)+1)
	copy(newFields, l.fields)
	newFields = append(newFields, field{key, value})
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		fields:    newFields,
		useColor:  l.useColor,
	}
}

// WithAttempt scopes the logger to one signing attempt, the correlation
// id apisentinel stamps on every Sign call.
func (l *Logger) WithAttempt(attemptID string) *Logger {
	return l.WithField("attempt", attemptID)
}

// WithProbe scopes the logger to one probe-fabric collector name (canvas,
// webgl, audio, ...), for dataloom/anomalyscan dispatch logging.
func (l *Logger) WithProbe(name string) *Logger {
	return l.WithField("probe", name)
}

// WithRiskScore scopes the logger to a computed risk score, for the tail
// end of a signing attempt once riskmatrix.Score has run.
func (l *Logger) WithRiskScore(score int) *Logger {
	return l.WithField("riskScore", score)
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if level < l.minLevel {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	var sb strings.Builder
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")

	if l.useColor {
		sb.WriteString(fmt.Sprintf("%s[%s]%s ", level.color(), level.String(), colorReset))
	} else {
		sb.WriteString(fmt.Sprintf("[%s] ", level.String()))
	}

	sb.WriteString(timestamp)

	if l.component != "" {
		sb.WriteString(fmt.Sprintf(" [%s]", l.component))
	}

	sb.WriteString(" ")
	sb.WriteString(msg)

	for _, f := range l.fields {
		sb.WriteString(fmt.Sprintf(" %s=%v", f.key, f.value))
	}

	sb.WriteString("\n")
	fmt.Fprint(l.output, sb.String())
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(ERROR, msg, args...) }

// ErrorWithStack logs an error together with the current goroutine stack.
func (l *Logger) ErrorWithStack(msg string, err error) {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	l.WithField("error", err.Error()).WithField("stack", string(buf[:n])).Error(msg)
}
