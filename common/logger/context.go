package logger

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// GetTraceID 从 context 中读取 trace_id
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTraceID 将 trace_id 写入 context；为空时生成新的 uuid
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return context.WithValue(ctx, ctxKey{}, traceID)
}
