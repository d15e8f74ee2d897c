package gateway

import (
	"github.com/go-playground/validator/v10"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

// structValidator is safe for concurrent use, per its own documentation, so
// a single package-level instance is shared across requests.
var structValidator = validator.New()

// ValidateStruct checks v's `validate` struct tags before a handler touches
// it, per SPEC_FULL.md §5's request-payload validation wiring.
func ValidateStruct(v any) error {
	if err := structValidator.Struct(v); err != nil {
		return trunkerr.Wrap(trunkerr.KindValidation, err, "request validation failed")
	}
	return nil
}
