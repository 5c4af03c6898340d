package log

import (
	"context"
	"fmt"
	"time"
)

func fieldsToMap(fields []Field) Fields {
	if len(fields) == 0 {
		return nil
	}
	m := make(Fields, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}

func (l *BaseLogger) emit(level Level, msg string, extra Fields, err error) {
	if level < l.level {
		return
	}
	merged := make(Fields, len(l.fields)+len(extra))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	entry := &Entry{Level: level, Message: msg, Fields: merged, Timestamp: time.Now(), Error: err}
	formatted, ferr := l.formatter.Format(entry)
	if ferr != nil {
		return
	}
	for _, out := range l.outputs {
		_ = out.Write(entry, formatted)
	}
	if level == FatalLevel {
		panic(msg)
	}
}

// Debug implements Logger.
func (l *BaseLogger) Debug(msg string, fields ...Field) { l.emit(DebugLevel, msg, fieldsToMap(fields), nil) }

// Info implements Logger.
func (l *BaseLogger) Info(msg string, fields ...Field) { l.emit(InfoLevel, msg, fieldsToMap(fields), nil) }

// Warn implements Logger.
func (l *BaseLogger) Warn(msg string, fields ...Field) { l.emit(WarnLevel, msg, fieldsToMap(fields), nil) }

// Error implements Logger.
func (l *BaseLogger) Error(msg string, fields ...Field) { l.emit(ErrorLevel, msg, fieldsToMap(fields), nil) }

// Fatal implements Logger. It panics after logging, matching the
// reference's "Fatal logs then terminates the call path" contract without
// reaching for os.Exit inside a library package.
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.emit(FatalLevel, msg, fieldsToMap(fields), nil) }

// Debugf implements Logger.
func (l *BaseLogger) Debugf(msg string, args ...interface{}) { l.emit(DebugLevel, fmt.Sprintf(msg, args...), nil, nil) }

// Infof implements Logger.
func (l *BaseLogger) Infof(msg string, args ...interface{}) { l.emit(InfoLevel, fmt.Sprintf(msg, args...), nil, nil) }

// Warnf implements Logger.
func (l *BaseLogger) Warnf(msg string, args ...interface{}) { l.emit(WarnLevel, fmt.Sprintf(msg, args...), nil, nil) }

// Errorf implements Logger.
func (l *BaseLogger) Errorf(msg string, args ...interface{}) { l.emit(ErrorLevel, fmt.Sprintf(msg, args...), nil, nil) }

// Fatalf implements Logger.
func (l *BaseLogger) Fatalf(msg string, args ...interface{}) { l.emit(FatalLevel, fmt.Sprintf(msg, args...), nil, nil) }

func (l *BaseLogger) clone() *BaseLogger {
	nl := *l
	nl.fields = make(Fields, len(l.fields))
	for k, v := range l.fields {
		nl.fields[k] = v
	}
	return &nl
}

// WithField implements Logger.
func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	nl := l.clone()
	nl.fields[key] = value
	return nl
}

// WithFields implements Logger.
func (l *BaseLogger) WithFields(fields Fields) Logger {
	nl := l.clone()
	for k, v := range fields {
		nl.fields[k] = v
	}
	return nl
}

// WithError implements Logger.
func (l *BaseLogger) WithError(err error) Logger {
	return l.WithField("error", err)
}

// With implements Logger.
func (l *BaseLogger) With(fields ...Field) Logger {
	nl := l.clone()
	for _, f := range fields {
		nl.fields[f.Key] = f.Value
	}
	return nl
}

// WithContext implements Logger.
func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	return l.WithFields(ContextExtractor(ctx))
}

// WithComponent implements Logger.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.WithField(ComponentKey, component)
}

// SetLevel implements Logger.
func (l *BaseLogger) SetLevel(level Level) { l.level = level }

// GetLevel implements Logger.
func (l *BaseLogger) GetLevel() Level { return l.level }
