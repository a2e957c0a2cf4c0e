// Package validation plugs go-playground/validator into echo as the
// e.Validator, so request DTOs across the portal's controllers can be
// checked with struct tags.
package validation

import (
	"github.com/go-playground/validator/v10"
)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New()}
}

func (v *Validator) Validate(i interface{}) error {
	return v.v.Struct(i)
}
