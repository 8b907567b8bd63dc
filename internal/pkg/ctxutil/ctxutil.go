package ctxutil

import "context"

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

type traceDataKey struct{}

// TraceData carries correlation ids on a context. The HTTP middleware
// sets RequestID, and the worker restores both ids from a job payload's
// trace_id and request_id fields when present; the enqueuer does not
// write those fields into job payloads.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, data *TraceData) context.Context {
	if data == nil {
		return ctx
	}
	return context.WithValue(ctx, traceDataKey{}, data)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	val := ctx.Value(traceDataKey{})
	td, ok := val.(*TraceData)
	if !ok {
		return nil
	}
	return td
}
