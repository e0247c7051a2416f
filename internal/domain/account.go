package domain

import (
	"fmt"
	"strings"
)

const addressHexLen = 64

// NormalizeAddress validates a Sui address and returns it lower-cased and left-padded to
// 32 bytes, so "0x2" and "0x000...002" compare equal.
func NormalizeAddress(address string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(address))
	if !strings.HasPrefix(a, "0x") {
		return "", fmt.Errorf("%w: address %q must start with 0x", ErrInvalidInput, address)
	}
	hex := a[2:]
	if hex == "" || len(hex) > addressHexLen {
		return "", fmt.Errorf("%w: address %q has invalid length", ErrInvalidInput, address)
	}
	for _, r := range hex {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return "", fmt.Errorf("%w: address %q is not hexadecimal", ErrInvalidInput, address)
		}
	}
	return "0x" + strings.Repeat("0", addressHexLen-len(hex)) + hex, nil
}
