package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/ctxutil"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

/*
runtime.Context is the execution handle for a single claimed job.
It wraps:
	- the request-scoped context.Context (timeouts, cancellation),
	- the DB handle pipelines run their reads/writes through,
	- the claimed job row in memory,
	- and uniform access to the decoded payload.

Pipelines never touch the queue row directly: ack/nack/dead-letter
decisions belong to the worker, which maps a handler's returned error
kind onto broker state. A handler that returns nil acked; a handler that
returns an error is retried or dead-lettered by kind.
*/
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.Job
	Log     *logger.Logger
	payload map[string]any
}

/*
NewContext constructs a runtime.Context for a claimed job execution.
It eagerly decodes the job payload JSON so handlers can access inputs
via Payload()/PayloadInt64()/PayloadUUID(). Any payload decode failure is
treated as non-fatal here; handlers validate required fields themselves.
*/
func NewContext(ctx context.Context, db *gorm.DB, job *types.Job, log *logger.Logger) *Context {
	c := &Context{
		Ctx: ctx,
		DB:  db,
		Job: job,
		Log: log,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c == nil || c.Ctx == nil {
		return
	}
	payload := c.Payload()
	traceID := strings.TrimSpace(fmt.Sprint(payload["trace_id"]))
	reqID := strings.TrimSpace(fmt.Sprint(payload["request_id"]))
	if traceID == "" && reqID == "" {
		return
	}
	if traceID == "<nil>" {
		traceID = ""
	}
	if reqID == "<nil>" {
		reqID = ""
	}
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{
		TraceID:   traceID,
		RequestID: reqID,
	})
}

/*
Payload returns the decoded payload map for this job execution.
Never returns nil (returns an empty map if payload is unset or
unparseable).
*/
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

/*
PayloadInt64 reads a payload field as a 64-bit integer. JSON numbers,
strings, and integer types all parse; anything else reports false.
Snowflake ids travel as strings to survive JSON float precision.
*/
func (c *Context) PayloadInt64(key string) (int64, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

/*
PayloadUUID reads a payload field by key and attempts to parse it as a
UUID. Returns (uuid.Nil, false) if missing, nil, or not parseable.
*/
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	s := fmt.Sprint(v)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

/*
PayloadInt64Slice reads a payload field as a list of 64-bit integers,
accepting both numeric and string elements.
*/
func (c *Context) PayloadInt64Slice(key string) []int64 {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, item := range raw {
		switch t := item.(type) {
		case float64:
			out = append(out, int64(t))
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}
