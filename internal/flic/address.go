package flic

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the size of a Bluetooth device address in bytes.
const AddressLength = 6

// ButtonAddress identifies a Flic button. Bytes are stored in wire order,
// which is the reverse of the printed colon-separated form.
type ButtonAddress [AddressLength]byte

// NewButtonAddress builds an address from exactly 6 wire-order bytes.
func NewButtonAddress(b []byte) (ButtonAddress, error) {
	var a ButtonAddress
	if len(b) != AddressLength {
		return a, fmt.Errorf("%w: got %d", ErrInvalidAddressLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// ParseButtonAddress parses the "80:e4:da:71:23:45" form printed by flicd tools.
func ParseButtonAddress(s string) (ButtonAddress, error) {
	var a ButtonAddress
	parts := strings.Split(s, ":")
	if len(parts) != AddressLength {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		v, err := hex.DecodeString(p)
		if err != nil {
			return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		a[AddressLength-1-i] = v[0]
	}
	return a, nil
}

// String returns the colon-separated form, most significant byte first.
func (a ButtonAddress) String() string {
	var sb strings.Builder
	for i := AddressLength - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "%02x", a[i])
		if i > 0 {
			sb.WriteByte(':')
		}
	}
	return sb.String()
}
