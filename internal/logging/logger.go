package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Common field keys. Startup events follow a component/event/status triple
// so that log pipelines can filter one step of the sequence.
const (
	ComponentFieldKey = "component"
	EventFieldKey     = "event"
	StatusFieldKey    = "status"
	StepFieldKey      = "step"
	DurationFieldKey  = "duration_ms"
)

const (
	DefaultFileMaxSizeMB = 100
	DefaultFilesKeep     = 5
)

type Fields = logrus.Fields

var defaultLogger = logrus.New()

// Default returns the process wide logger.
func Default() *logrus.Logger {
	return defaultLogger
}

// Component returns an entry tagged with the given component name.
func Component(name string) *logrus.Entry {
	return defaultLogger.WithField(ComponentFieldKey, name)
}

func SetLevel(level string) {
	setLevel(defaultLogger, level)
}

func setLevel(l *logrus.Logger, level string) {
	switch strings.ToLower(level) {
	case "trace":
		l.SetLevel(logrus.TraceLevel)
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "info":
		l.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	case "null", "none":
		l.SetLevel(logrus.PanicLevel)
		l.SetOutput(io.Discard)
	}
}

func SetOutputFormat(format string) {
	setFormat(defaultLogger, format)
}

func setFormat(l *logrus.Logger, format string) {
	switch strings.ToLower(format) {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			DisableLevelTruncation: true,
			PadLevelText:           true,
			QuoteEmptyFields:       true,
		})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
			},
		})
	}
}

// OpenWriters maps output names to writers: "-" is stdout, "=" is stderr,
// anything else is a file path rotated by lumberjack.
func OpenWriters(outputs []string, fileMaxSizeMB, filesKeep int) []io.Writer {
	var writers []io.Writer
	for _, output := range outputs {
		switch output {
		case "":
			continue
		case "-":
			writers = append(writers, os.Stdout)
		case "=":
			writers = append(writers, os.Stderr)
		default:
			writers = append(writers, &lumberjack.Logger{
				Filename:   output,
				MaxSize:    fileMaxSizeMB,
				MaxBackups: filesKeep,
			})
		}
	}
	return writers
}

// Writer combines the outputs into a single writer. It returns stdout when
// no outputs are usable.
func Writer(outputs ...string) io.Writer {
	writers := OpenWriters(outputs, DefaultFileMaxSizeMB, DefaultFilesKeep)
	switch len(writers) {
	case 0:
		return os.Stdout
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}

func SetOutputs(outputs ...string) {
	defaultLogger.SetOutput(Writer(outputs...))
}

// New builds a standalone logger, used for the server error log which goes to
// its own file in addition to stderr.
func New(level, format string, outputs ...string) *logrus.Logger {
	l := logrus.New()
	setLevel(l, level)
	setFormat(l, format)
	l.SetOutput(Writer(outputs...))
	return l
}
