// Package accountid derives the checksummed 32-byte account identifiers used
// by the legacy ledger family.
//
// The identifier is crc32(digest) || digest where
//
//	digest = SHA-224("\x0Aaccount-id" || owner || subaccount)
//
// and the subaccount defaults to 32 zero bytes. The ledger recomputes the same
// value when validating transfers, so the construction must stay bit-exact.
package accountid

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
)

const (
	// Size is the length of an identifier in bytes.
	Size = 32
	// SubaccountSize is the only non-empty subaccount length accepted.
	SubaccountSize = 32

	checksumSize = 4
)

// domainSeparator is the length-prefixed literal "account-id".
var domainSeparator = []byte("\x0Aaccount-id")

var (
	ErrInvalidSubaccountLength = errors.New("invalid subaccount length")
	ErrInvalidLength           = errors.New("invalid account identifier length")
	ErrInvalidChecksum         = errors.New("account identifier checksum mismatch")
)

// ID is a checksummed account identifier.
type ID [Size]byte

// DefaultSubaccount returns the all-zero subaccount.
func DefaultSubaccount() []byte {
	return make([]byte, SubaccountSize)
}

// Derive computes the identifier for owner and subaccount. A nil or empty
// subaccount is treated as DefaultSubaccount; any length other than 0 or 32
// fails with ErrInvalidSubaccountLength.
func Derive(owner []byte, subaccount []byte) (ID, error) {
	var id ID

	switch len(subaccount) {
	case 0:
		subaccount = DefaultSubaccount()
	case SubaccountSize:
	default:
		return id, fmt.Errorf("%w: got %d bytes, want 0 or %d", ErrInvalidSubaccountLength, len(subaccount), SubaccountSize)
	}

	h := sha256.New224()
	_, _ = h.Write(domainSeparator)
	_, _ = h.Write(owner)
	_, _ = h.Write(subaccount)
	digest := h.Sum(nil)

	binary.BigEndian.PutUint32(id[:checksumSize], crc32.ChecksumIEEE(digest))
	copy(id[checksumSize:], digest)
	return id, nil
}

// MustDerive is Derive for inputs known to be valid.
func MustDerive(owner []byte, subaccount []byte) ID {
	id, err := Derive(owner, subaccount)
	if err != nil {
		panic(err)
	}
	return id
}

// Bytes returns a copy of the identifier bytes.
func (id ID) Bytes() []byte {
	return append([]byte(nil), id[:]...)
}

// Hex returns the 64-character lowercase hex encoding.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id ID) String() string {
	return id.Hex()
}

// Checksum returns the big-endian CRC-32 prefix.
func (id ID) Checksum() uint32 {
	return binary.BigEndian.Uint32(id[:checksumSize])
}

// Valid reports whether the prefix matches the CRC-32 of the digest.
func (id ID) Valid() bool {
	return id.Checksum() == crc32.ChecksumIEEE(id[checksumSize:])
}

// Equal compares two identifiers.
func (id ID) Equal(o ID) bool {
	return bytes.Equal(id[:], o[:])
}

// FromBytes copies b into an ID after checking length and checksum.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != Size {
		return id, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(b))
	}
	copy(id[:], b)
	if !id.Valid() {
		return ID{}, ErrInvalidChecksum
	}
	return id, nil
}

// FromHex decodes a hex identifier (either case) and validates it.
func FromHex(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("decode account identifier: %w", err)
	}
	return FromBytes(b)
}

// ParseSubaccount decodes an optional hex subaccount. The empty string yields
// nil (the default subaccount); short values are left-padded with zeros the
// way subaccount indexes are usually written.
func ParseSubaccount(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode subaccount: %w", err)
	}
	if len(b) > SubaccountSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSubaccountLength, len(b))
	}
	sub := make([]byte, SubaccountSize)
	copy(sub[SubaccountSize-len(b):], b)
	return sub, nil
}
