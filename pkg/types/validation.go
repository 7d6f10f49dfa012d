package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Single validator instance; it caches struct metadata and is safe for
// concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateEnvelope applies the struct-tag rules plus the enum checks
// the tags cannot express.
func ValidateEnvelope(env *Envelope) error {
	if err := validate.Struct(env); err != nil {
		return err
	}
	if env.ContentType != "" && !IsValidContentType(env.ContentType) {
		return fmt.Errorf("%w: %s", ErrInvalidContentType, env.ContentType)
	}
	return nil
}
