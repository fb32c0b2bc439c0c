package telemetry

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

var (
	loggerMu sync.RWMutex
	logger   *logrus.Logger
)

// NewLogger builds a logrus logger from cfg writing to out.
// Unknown levels fall back to info.
func NewLogger(cfg *Config, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.LogFormat == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "@timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	l.AddHook(serviceFieldsHook{fields: logrus.Fields{
		"service.name":    cfg.ServiceName,
		"service.version": cfg.ServiceVersion,
		"environment":     cfg.Environment,
	}})
	return l
}

// InitLogger installs the global logger, writing to stderr
func InitLogger(cfg *Config) {
	SetLogger(NewLogger(cfg, os.Stderr))
}

// SetLogger replaces the global logger
func SetLogger(l *logrus.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// L returns the global logger instance
func L() *logrus.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}

// WithContext adds trace information to the logger
func WithContext(ctx context.Context) *logrus.Entry {
	entry := L().WithContext(ctx)

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		entry = entry.WithFields(logrus.Fields{
			"trace.id": span.SpanContext().TraceID().String(),
			"span.id":  span.SpanContext().SpanID().String(),
		})
	}

	return entry
}

// serviceFieldsHook stamps service identity on every entry
type serviceFieldsHook struct {
	fields logrus.Fields
}

func (h serviceFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceFieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, exists := entry.Data[k]; !exists {
			entry.Data[k] = v
		}
	}
	return nil
}
