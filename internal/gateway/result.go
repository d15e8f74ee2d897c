package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Result carries a handler's outcome: exactly one of Payload or Err is
// meaningful. Design note 3 (SPEC_FULL.md §7): handlers return this instead
// of writing the response themselves, so a single post-hoc recorder can
// audit both success and failure, rather than the teacher's two call sites
// (writeJSON / writeJSONError) repeated per handler.
type Result[T any] struct {
	Payload T
	Err     error
}

// Ok wraps a successful payload.
func Ok[T any](payload T) Result[T] { return Result[T]{Payload: payload} }

// Fail wraps a failure; Payload is the zero value.
func Fail[T any](err error) Result[T] { return Result[T]{Err: err} }

// Handler is the shape every gateway endpoint implements: given the
// authenticated user id (empty if the route is unauthenticated) and a
// decoded request, produce a Result.
type Handler[Req, Resp any] func(ctx context.Context, userID string, req Req) Result[Resp]

// Audited wraps h so that exactly one AuditRecord is written per call,
// after h returns, whether it succeeded or failed. The request is recorded
// as its JSON form; callers with sensitive fields should give Req a
// MarshalJSON that redacts them.
func Audited[Req, Resp any](endpoint string, logger AuditLogger, h Handler[Req, Resp]) Handler[Req, Resp] {
	return func(ctx context.Context, userID string, req Req) Result[Resp] {
		result := h(ctx, userID, req)

		rec := AuditRecord{
			ID:         uuid.NewString(),
			Endpoint:   endpoint,
			UserID:     userID,
			OccurredAt: time.Now().UTC(),
		}
		if payload, err := json.Marshal(req); err == nil {
			rec.Payload = string(payload)
		}
		if result.Err != nil {
			rec.Error = result.Err.Error()
		}
		if err := logger.Record(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "gateway.Audited failed to write audit record", "endpoint", endpoint, "error", err)
		}
		return result
	}
}
