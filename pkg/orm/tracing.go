package orm

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const tracerName = "pushgate.gorm"

// TracingPlugin gorm 链路追踪插件
type TracingPlugin struct {
	tracer   trace.Tracer
	sqlTrace bool // 默认不记录 SQL，避免泄露 token
}

// TracingOption 插件选项
type TracingOption func(*TracingPlugin)

// WithSQLTrace 在 span 中记录完整 SQL
func WithSQLTrace(enable bool) TracingOption {
	return func(p *TracingPlugin) {
		p.sqlTrace = enable
	}
}

// NewTracingPlugin 创建链路追踪插件
func NewTracingPlugin(opts ...TracingOption) *TracingPlugin {
	p := &TracingPlugin{tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *TracingPlugin) Name() string {
	return "pushgate:tracing"
}

// Initialize 注册回调
func (p *TracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("pushgate:before_create", p.before("gorm.create")),
		cb.Create().After("gorm:create").Register("pushgate:after_create", p.after),
		cb.Query().Before("gorm:query").Register("pushgate:before_query", p.before("gorm.query")),
		cb.Query().After("gorm:query").Register("pushgate:after_query", p.after),
		cb.Update().Before("gorm:update").Register("pushgate:before_update", p.before("gorm.update")),
		cb.Update().After("gorm:update").Register("pushgate:after_update", p.after),
		cb.Delete().Before("gorm:delete").Register("pushgate:before_delete", p.before("gorm.delete")),
		cb.Delete().After("gorm:delete").Register("pushgate:after_delete", p.after),
		cb.Row().Before("gorm:row").Register("pushgate:before_row", p.before("gorm.row")),
		cb.Row().After("gorm:row").Register("pushgate:after_row", p.after),
		cb.Raw().Before("gorm:raw").Register("pushgate:before_raw", p.before("gorm.raw")),
		cb.Raw().After("gorm:raw").Register("pushgate:after_raw", p.after),
	)
}

func (p *TracingPlugin) before(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, _ = p.tracer.Start(ctx, op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", db.Dialector.Name()),
				attribute.String("db.operation", op),
			),
		)
		db.Statement.Context = ctx
	}
}

func (p *TracingPlugin) after(db *gorm.DB) {
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}
	defer span.End()

	if p.sqlTrace {
		span.SetAttributes(attribute.String("db.statement", db.Statement.SQL.String()))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.table", db.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
