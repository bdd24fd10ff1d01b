// Package principal implements the opaque binary identifier of a
// cryptographic identity and its checksummed text form.
package principal

import (
	"bytes"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"hash/crc32"
	"strings"
)

const (
	selfAuthenticatingSuffix = 0x02
	anonymousByte            = 0x04

	// MaxLength is the longest principal accepted by FromText.
	MaxLength = 29
)

var (
	ErrInvalidText     = errors.New("invalid principal text")
	ErrInvalidChecksum = errors.New("principal checksum mismatch")
	ErrTooLong         = errors.New("principal too long")
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Principal is an opaque identifier. It is only ever interpreted as a byte
// string by callers.
type Principal []byte

// Anonymous returns the principal used by unauthenticated callers.
func Anonymous() Principal {
	return Principal{anonymousByte}
}

// FromPublicKey returns the self-authenticating principal for a DER encoded
// public key: SHA-224(der) followed by a single type byte.
func FromPublicKey(der []byte) Principal {
	sum := sha256.Sum224(der)
	p := make(Principal, 0, len(sum)+1)
	p = append(p, sum[:]...)
	return append(p, selfAuthenticatingSuffix)
}

// IsAnonymous reports whether p is the anonymous principal.
func (p Principal) IsAnonymous() bool {
	return len(p) == 1 && p[0] == anonymousByte
}

// Equal reports whether both principals hold the same bytes.
func (p Principal) Equal(o Principal) bool {
	return bytes.Equal(p, o)
}

// Bytes returns a copy of the raw identifier.
func (p Principal) Bytes() []byte {
	return append([]byte(nil), p...)
}

// Hex returns the lowercase hex encoding of the raw bytes.
func (p Principal) Hex() string {
	return hex.EncodeToString(p)
}

// Text renders the dash-grouped base32 form with a CRC-32 prefix.
func (p Principal) Text() string {
	buf := make([]byte, 4, 4+len(p))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(p))
	buf = append(buf, p...)

	raw := strings.ToLower(encoding.EncodeToString(buf))

	var sb strings.Builder
	for i := 0; i < len(raw); i += 5 {
		if i > 0 {
			sb.WriteByte('-')
		}
		end := min(i+5, len(raw))
		sb.WriteString(raw[i:end])
	}
	return sb.String()
}

func (p Principal) String() string {
	return p.Text()
}

// FromText parses the text form produced by Text and verifies the checksum.
func FromText(s string) (Principal, error) {
	raw := strings.ToUpper(strings.ReplaceAll(s, "-", ""))
	if raw == "" {
		return nil, ErrInvalidText
	}

	data, err := encoding.DecodeString(raw)
	if err != nil {
		return nil, errors.Join(ErrInvalidText, err)
	}
	if len(data) < 4 {
		return nil, ErrInvalidText
	}

	p := Principal(data[4:])
	if len(p) > MaxLength {
		return nil, ErrTooLong
	}
	if binary.BigEndian.Uint32(data[:4]) != crc32.ChecksumIEEE(p) {
		return nil, ErrInvalidChecksum
	}

	// Reject non-canonical grouping or casing.
	if p.Text() != s {
		return nil, ErrInvalidText
	}
	return p, nil
}

// MustFromText is FromText for constants; it panics on malformed input.
func MustFromText(s string) Principal {
	p, err := FromText(s)
	if err != nil {
		panic(err)
	}
	return p
}
