// Package address resolves Brazilian postal codes (CEP) to addresses through an
// upstream lookup service, caching results per code.
package address

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/odyssey-erp/accounts/internal/shared"
)

var (
	// ErrNotFound indicates the upstream service has no address for the code.
	ErrNotFound = fmt.Errorf("address: postal code %w", shared.ErrNotFound)
	// ErrMalformedPostalCode indicates the code does not have the 00000-000 shape.
	ErrMalformedPostalCode = fmt.Errorf("%w: malformed postal code", shared.ErrValidation)
)

// Address is the resolved location of a postal code.
type Address struct {
	PostalCode string `json:"postalCode"`
	Region     string `json:"region"`
	Locality   string `json:"locality"`
	Street     string `json:"street"`
	District   string `json:"district"`
}

// Lookup resolves a normalized postal code against an upstream service. It returns
// ErrNotFound when the code is unknown and an error wrapping shared.ErrUpstream when
// the service could not answer.
type Lookup interface {
	Lookup(ctx context.Context, code string) (Address, error)
}

var postalCodePattern = regexp.MustCompile(`^\d{5}-?\d{3}$`)

// NormalizePostalCode validates raw and returns its eight digits.
func NormalizePostalCode(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !postalCodePattern.MatchString(raw) {
		return "", ErrMalformedPostalCode
	}
	return strings.ReplaceAll(raw, "-", ""), nil
}
