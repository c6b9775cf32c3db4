// Package account decides how an account details page is rendered: whether
// the address is valid, which primary view the account gets, which tabs it
// offers, and where to send a request for a tab it does not have.
package account

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrInvalidAddress = errors.New("address is not valid")
	ErrFetchFailed    = errors.New("fetch failed")
)

// ValidateAddress decodes raw into an account key. No partial key is ever
// returned: anything that is not base58 for exactly 32 bytes is rejected.
func ValidateAddress(raw string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, raw, err)
	}
	return key, nil
}

// InvalidAddressText is the message shown for an address that failed validation.
func InvalidAddressText(raw string) string {
	return fmt.Sprintf("Address \"%s\" is not valid", raw)
}
