package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

type contextKey int

const userIDContextKey contextKey = iota

// userIDFromContext reads the user id set by authenticate, returning "" for
// unauthenticated routes.
func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey).(string)
	return id
}

// authenticate extracts a bearer session token, verifies it, and returns a
// context carrying the resolved user id. Routes that don't require auth can
// skip calling this and pass an empty userID to their Handler.
func authenticate(r *http.Request, verifier *TokenVerifier) (context.Context, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return r.Context(), trunkerr.New(trunkerr.KindValidation, "missing bearer token")
	}
	sess, err := verifier.Verify(r.Context(), token)
	if err != nil {
		return r.Context(), err
	}
	return context.WithValue(r.Context(), userIDContextKey, sess.UserID), nil
}

// Serve adapts a Handler into an http.HandlerFunc: decode the CBOR body,
// run the handler with the authenticated user id, and encode the result as
// a CBOR body or problem document. Mirrors the teacher's
// writeJSON/writeJSONError pairing in mux_server.go, but as one adapter
// instead of two call sites per handler.
func Serve[Req, Resp any](verifier *TokenVerifier, requireAuth bool, h Handler[Req, Resp]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx := r.Context()
		userID := ""
		if requireAuth {
			authedCtx, err := authenticate(r, verifier)
			if err != nil {
				WriteProblem(ctx, w, err)
				return
			}
			ctx = authedCtx
			userID = userIDFromContext(ctx)
		}

		var req Req
		if err := DecodeBody(r, &req); err != nil {
			WriteProblem(ctx, w, err)
			return
		}
		if err := ValidateStruct(req); err != nil {
			WriteProblem(ctx, w, err)
			return
		}

		result := h(ctx, userID, req)
		if result.Err != nil {
			WriteProblem(ctx, w, result.Err)
			return
		}
		if err := EncodeBody(w, http.StatusOK, result.Payload); err != nil {
			slog.ErrorContext(ctx, "gateway.Serve failed to encode response", "error", err)
		}
	}
}
