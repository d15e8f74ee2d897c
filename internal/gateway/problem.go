package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

// Problem is the {type, title, detail, status} error document shape implied
// by spec.md §7.
type Problem struct {
	Type   string `cbor:"type" json:"type"`
	Title  string `cbor:"title" json:"title"`
	Detail string `cbor:"detail" json:"detail"`
	Status int    `cbor:"status" json:"status"`
}

// ProblemFromError maps a trunkerr.Error's Kind onto an HTTP status and
// problem title; unrecognized errors become a 500 with an opaque title.
func ProblemFromError(err error) Problem {
	var te *trunkerr.Error
	if errors.As(err, &te) {
		switch te.Kind {
		case trunkerr.KindValidation:
			return Problem{Type: "validation", Title: "request failed validation", Detail: te.Error(), Status: http.StatusBadRequest}
		case trunkerr.KindIO:
			return Problem{Type: "io", Title: "storage operation failed", Detail: te.Error(), Status: http.StatusInternalServerError}
		case trunkerr.KindExternalCommand:
			return Problem{Type: "external_command", Title: "an external command failed", Detail: te.Error(), Status: http.StatusBadGateway}
		case trunkerr.KindSubservice:
			return Problem{Type: "subservice", Title: "a dependent service failed", Detail: te.Error(), Status: http.StatusBadGateway}
		case trunkerr.KindMigration:
			return Problem{Type: "migration", Title: "migration failed", Detail: te.Error(), Status: http.StatusConflict}
		}
	}
	return Problem{Type: "internal", Title: "internal error", Detail: err.Error(), Status: http.StatusInternalServerError}
}

// WriteProblem writes err as a CBOR problem document, logging encode
// failures since there's nothing further to report to the client at that
// point.
func WriteProblem(ctx context.Context, w http.ResponseWriter, err error) {
	p := ProblemFromError(err)
	if encErr := EncodeBody(w, p.Status, p); encErr != nil {
		slog.ErrorContext(ctx, "gateway.WriteProblem failed to encode problem document", "error", encErr)
	}
}
