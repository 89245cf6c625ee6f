package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowSQL = 200 * time.Millisecond

// GormLogger writes GORM statements through zap with the trace, request and
// owner fields of the statement context attached.
type GormLogger struct {
	logger    *zap.Logger
	level     gormlogger.LogLevel
	slow      time.Duration
	logMissed bool
	transient func(error) bool
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow statement threshold. Zero turns slow logging off.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slow = threshold }
}

// WithIgnoreRecordNotFoundError controls whether lookups that find nothing are logged
func WithIgnoreRecordNotFoundError(ignore bool) GormLoggerOption {
	return func(l *GormLogger) { l.logMissed = !ignore }
}

// WithTransientErrors marks errors the caller retries, such as lock timeouts
// and serialization failures. They are logged as warnings instead of errors.
func WithTransientErrors(isTransient func(error) bool) GormLoggerOption {
	return func(l *GormLogger) { l.transient = isTransient }
}

// NewGormLogger creates a GORM logger backed by zap
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger: zapLogger.Named("gorm"),
		level:  level,
		slow:   defaultSlowSQL,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < min {
		return
	}
	WithLogger(ctx, l.logger).Zap().Sugar().Logf(lvl, msg, data...)
}

// Trace implements gormlogger.Interface
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	lvl, msg, ok := l.classify(elapsed, err)
	if !ok {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	switch {
	case err != nil:
		fields = append(fields, zap.Error(err))
	case msg == "slow SQL":
		fields = append(fields, zap.Duration("threshold", l.slow))
	}
	if ce := WithLogger(ctx, l.logger).Zap().Check(lvl, msg); ce != nil {
		ce.Write(fields...)
	}
}

// classify picks the zap level and message for one statement, or reports
// that the statement is below the configured GORM level.
func (l *GormLogger) classify(elapsed time.Duration, err error) (zapcore.Level, string, bool) {
	switch {
	case err != nil:
		if errors.Is(err, gormlogger.ErrRecordNotFound) && !l.logMissed {
			return 0, "", false
		}
		if l.transient != nil && l.transient(err) {
			return zapcore.WarnLevel, "SQL conflict", l.level >= gormlogger.Warn
		}
		return zapcore.ErrorLevel, "SQL error", l.level >= gormlogger.Error
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		return zapcore.WarnLevel, "slow SQL", true
	case l.level >= gormlogger.Info:
		return zapcore.DebugLevel, "SQL", true
	}
	return 0, "", false
}

// MapGormLogLevel maps an application log level to the GORM level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
