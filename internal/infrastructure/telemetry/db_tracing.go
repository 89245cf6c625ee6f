package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSlowQuery = 200 * time.Millisecond

type DBTracingConfig struct {
	Enabled            bool
	LogFullSQL         bool // bind values in span attributes
	SlowQueryThreshold time.Duration
	DBSystem           string
}

// InstrumentDB installs otelgorm spans on db plus a plugin that adds row
// counts, table, error status and a slow-query event to them. Disabled, it
// does nothing. Installing twice on the same db fails.
func InstrumentDB(db *gorm.DB, cfg DBTracingConfig, log *zap.Logger) error {
	if !cfg.Enabled {
		log.Debug("Database tracing disabled")
		return nil
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = defaultSlowQuery
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := db.Use(&spanAnnotator{slow: cfg.SlowQueryThreshold}); err != nil {
		return err
	}

	log.Info("Database tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return nil
}

// spanAnnotator is a gorm plugin wrapping every statement kind
type spanAnnotator struct {
	slow time.Duration
}

func (a *spanAnnotator) Name() string { return "valuation:span_annotator" }

type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// Initialize hooks in after otelgorm's own before-callbacks have opened the
// statement span and ahead of the after-callbacks that end it.
func (a *spanAnnotator) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		stmt          string
		before, after callbackRegistrar
	}{
		{"create", cb.Create().Before("gorm:create"), cb.Create().Before("otel:after:create")},
		{"select", cb.Query().Before("gorm:query"), cb.Query().Before("otel:after:select")},
		{"update", cb.Update().Before("gorm:update"), cb.Update().Before("otel:after:update")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().Before("otel:after:delete")},
		{"row", cb.Row().Before("gorm:row"), cb.Row().Before("otel:after:row")},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().Before("otel:after:raw")},
	}
	var errs []error
	for _, h := range hooks {
		errs = append(errs,
			h.before.Register("span_annotator:start_"+h.stmt, markQueryStart),
			h.after.Register("span_annotator:end_"+h.stmt, a.annotate))
	}
	return errors.Join(errs...)
}

type queryStartKey struct{}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (a *spanAnnotator) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{attribute.Int64("db.rows_affected", max(db.Statement.RowsAffected, 0))}
	if db.Statement.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", db.Statement.Table))
	}
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > a.slow {
			attrs = append(attrs,
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()))
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("threshold_ms", a.slow.Milliseconds())))
		}
	}
	span.SetAttributes(attrs...)

	// a missing row is an answer, not a failure
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
}
