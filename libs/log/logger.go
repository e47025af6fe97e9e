package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Format names accepted by NewDefaultLogger, mirroring the node's
// config.LogFormatPlain / config.LogFormatJSON constants.
const (
	FormatPlain = "plain"
	FormatJSON  = "json"
)

// Logger is what every nodecore package should take as a dependency. It
// never exposes the backing implementation so packages can be tested with
// NewNopLogger without pulling in zerolog.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})

	// With returns a new Logger with keyvals appended to every subsequent
	// log line, e.g. logger.With("component", "dispatcher").
	With(keyvals ...interface{}) Logger
}

type defaultLogger struct {
	zerolog.Logger
}

// NewDefaultLogger returns a Logger that writes to w. format selects
// between FormatPlain (human-readable console output) and FormatJSON
// (one JSON object per line, suitable for log aggregation).
func NewDefaultLogger(w io.Writer, format string, level string) Logger {
	output := w
	if format == FormatPlain {
		output = zerolog.ConsoleWriter{Out: w, NoColor: !isTerminal(w)}
	}

	zlvl, err := zerolog.ParseLevel(level)
	if err != nil {
		zlvl = zerolog.InfoLevel
	}

	l := zerolog.New(output).Level(zlvl).With().Timestamp().Logger()
	return &defaultLogger{Logger: l}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func (l *defaultLogger) Debug(msg string, keyvals ...interface{}) {
	logEvent(l.Logger.Debug(), msg, keyvals...)
}

func (l *defaultLogger) Info(msg string, keyvals ...interface{}) {
	logEvent(l.Logger.Info(), msg, keyvals...)
}

func (l *defaultLogger) Error(msg string, keyvals ...interface{}) {
	logEvent(l.Logger.Error(), msg, keyvals...)
}

func (l *defaultLogger) With(keyvals ...interface{}) Logger {
	ctx := l.Logger.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		ctx = ctx.Interface(toKey(keyvals[i]), keyvals[i+1])
	}
	return &defaultLogger{Logger: ctx.Logger()}
}

func logEvent(e *zerolog.Event, msg string, keyvals ...interface{}) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		e = e.Interface(toKey(keyvals[i]), keyvals[i+1])
	}
	e.Msg(msg)
}

func toKey(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "field"
}
