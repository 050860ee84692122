package crypto

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part used when rendering addresses.
const AddressPrefix = "mrg"

// AddressLength is the byte length of every ledger address.
const AddressLength = 20

// Address identifies an authority, trader or program-owned account. It is a
// fixed-size array so records embedding it encode deterministically.
type Address [AddressLength]byte

// BytesToAddress copies the trailing bytes of b into an address.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// Derive returns the program-owned address for the supplied domain and seed
// parts. The same inputs always produce the same address.
func Derive(domain string, parts ...[]byte) Address {
	data := make([][]byte, 0, len(parts)+1)
	data = append(data, []byte(domain))
	data = append(data, parts...)
	return BytesToAddress(crypto.Keccak256(data...))
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

// Equal reports whether both addresses are identical.
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a[:], other[:])
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// MarshalText renders the address in bech32 form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a bech32 address.
func (a *Address) UnmarshalText(text []byte) error {
	decoded, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// DecodeAddress parses a bech32 encoded ledger address.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes long", AddressLength)
	}
	return BytesToAddress(conv), nil
}
