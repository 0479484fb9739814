package campaign

import (
	"fmt"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
)

// PrincipalValidator checks caller-supplied principal identifiers before
// they enter campaign state.
type PrincipalValidator interface {
	Validate(principal string) error
}

// PrincipalValidatorFunc adapts a function to the PrincipalValidator
// interface.
type PrincipalValidatorFunc func(principal string) error

func (f PrincipalValidatorFunc) Validate(principal string) error { return f(principal) }

// AnyPrincipal accepts any non-empty principal.
func AnyPrincipal() PrincipalValidator {
	return PrincipalValidatorFunc(func(principal string) error {
		if strings.TrimSpace(principal) == "" {
			return fmt.Errorf("principal is empty")
		}
		return nil
	})
}

// NeoAddressValidator requires principals to be valid Neo N3 addresses.
func NeoAddressValidator() PrincipalValidator {
	return PrincipalValidatorFunc(func(principal string) error {
		if strings.TrimSpace(principal) == "" {
			return fmt.Errorf("principal is empty")
		}
		if _, err := address.StringToUint160(principal); err != nil {
			return fmt.Errorf("not a valid Neo N3 address")
		}
		return nil
	})
}
