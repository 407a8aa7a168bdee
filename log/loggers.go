package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Info takes a pointer subLogger struct and string and logs at info level
func Info(sl *SubLogger, data string) {
	sl.stage(zapcore.InfoLevel, data, nil)
}

// Infoln takes a pointer subLogger struct and interface and logs at info level
func Infoln(sl *SubLogger, v ...interface{}) {
	sl.stage(zapcore.InfoLevel, fmt.Sprint(v...), nil)
}

// Infof takes a pointer subLogger struct, string and interface formats and logs at info level
func Infof(sl *SubLogger, data string, v ...interface{}) {
	if sl.enabled(zapcore.InfoLevel) {
		sl.stage(zapcore.InfoLevel, fmt.Sprintf(data, v...), nil)
	}
}

// Debug takes a pointer subLogger struct and string and logs at debug level
func Debug(sl *SubLogger, data string) {
	sl.stage(zapcore.DebugLevel, data, nil)
}

// Debugln takes a pointer subLogger struct, string and interface and logs at debug level
func Debugln(sl *SubLogger, v ...interface{}) {
	sl.stage(zapcore.DebugLevel, fmt.Sprint(v...), nil)
}

// Debugf takes a pointer subLogger struct, string and interface formats and logs at debug level
func Debugf(sl *SubLogger, data string, v ...interface{}) {
	if sl.enabled(zapcore.DebugLevel) {
		sl.stage(zapcore.DebugLevel, fmt.Sprintf(data, v...), nil)
	}
}

// Warn takes a pointer subLogger struct & string and logs at warn level
func Warn(sl *SubLogger, data string) {
	sl.stage(zapcore.WarnLevel, data, nil)
}

// Warnln takes a pointer subLogger struct & interface and logs at warn level
func Warnln(sl *SubLogger, v ...interface{}) {
	sl.stage(zapcore.WarnLevel, fmt.Sprint(v...), nil)
}

// Warnf takes a pointer subLogger struct, string and interface formats and logs at warn level
func Warnf(sl *SubLogger, data string, v ...interface{}) {
	if sl.enabled(zapcore.WarnLevel) {
		sl.stage(zapcore.WarnLevel, fmt.Sprintf(data, v...), nil)
	}
}

// Error takes a pointer subLogger struct & string and logs at error level
func Error(sl *SubLogger, data string) {
	sl.stage(zapcore.ErrorLevel, data, nil)
}

// Errorln takes a pointer subLogger struct & interface and logs at error level
func Errorln(sl *SubLogger, v ...interface{}) {
	sl.stage(zapcore.ErrorLevel, fmt.Sprint(v...), nil)
}

// Errorf takes a pointer subLogger struct, string and interface formats and logs at error level
func Errorf(sl *SubLogger, data string, v ...interface{}) {
	if sl.enabled(zapcore.ErrorLevel) {
		sl.stage(zapcore.ErrorLevel, fmt.Sprintf(data, v...), nil)
	}
}

// enabled checks if the log level is enabled for the sub logger
func (sl *SubLogger) enabled(level zapcore.Level) bool {
	if sl == nil {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case zapcore.InfoLevel:
		return sl.levels.Info
	case zapcore.WarnLevel:
		return sl.levels.Warn
	case zapcore.ErrorLevel:
		return sl.levels.Error
	case zapcore.DebugLevel:
		return sl.levels.Debug
	}
	return false
}

func (sl *SubLogger) stage(level zapcore.Level, data string, fields []zap.Field) {
	if !sl.enabled(level) {
		return
	}
	mu.RLock()
	l := sl.logger
	mu.RUnlock()
	if ce := l.Check(level, data); ce != nil {
		ce.Write(fields...)
	}
}

// Name returns the sub logger name
func (sl *SubLogger) Name() string {
	if sl == nil {
		return ""
	}
	return sl.name
}

// WithFields allows the user to add fields to a structured log output
func WithFields(sl *SubLogger, structuredFields map[string]interface{}) *Fields {
	f := &Fields{sl: sl, fields: make([]zap.Field, 0, len(structuredFields))}
	for k, v := range structuredFields {
		f.fields = append(f.fields, zap.Any(k, v))
	}
	return f
}

// Info logs the message with the attached fields at info level
func (f *Fields) Info(data string) {
	f.sl.stage(zapcore.InfoLevel, data, f.fields)
}

// Infof logs the formatted message with the attached fields at info level
func (f *Fields) Infof(data string, v ...interface{}) {
	f.sl.stage(zapcore.InfoLevel, fmt.Sprintf(data, v...), f.fields)
}

// Debugf logs the formatted message with the attached fields at debug level
func (f *Fields) Debugf(data string, v ...interface{}) {
	f.sl.stage(zapcore.DebugLevel, fmt.Sprintf(data, v...), f.fields)
}

// Warnf logs the formatted message with the attached fields at warn level
func (f *Fields) Warnf(data string, v ...interface{}) {
	f.sl.stage(zapcore.WarnLevel, fmt.Sprintf(data, v...), f.fields)
}

// Errorf logs the formatted message with the attached fields at error level
func (f *Fields) Errorf(data string, v ...interface{}) {
	f.sl.stage(zapcore.ErrorLevel, fmt.Sprintf(data, v...), f.fields)
}
