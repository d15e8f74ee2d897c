package gateway

import (
	"net/http"

	"github.com/fxamacker/cbor/v2"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

const cborContentType = "application/cbor"

// DecodeBody reads a CBOR-encoded request body into v.
func DecodeBody(r *http.Request, v any) error {
	if err := cbor.NewDecoder(r.Body).Decode(v); err != nil {
		return trunkerr.Wrap(trunkerr.KindValidation, err, "failed to decode request body")
	}
	return nil
}

// EncodeBody writes v as a CBOR-encoded response body with the given status.
func EncodeBody(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", cborContentType)
	w.WriteHeader(status)
	if err := cbor.NewEncoder(w).Encode(v); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to encode response body")
	}
	return nil
}
