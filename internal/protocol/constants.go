// Package protocol implements BIP-324 v2 packet framing: the length/body
// encryption envelope and the short-message-id table. It does not know
// about handshake state; it operates purely on already-derived
// forward-secure cipher pairs (see internal/peer for key derivation).
package protocol

import "errors"

// HeaderIgnoreBit marks a decoy packet; the remaining header bits are
// reserved and must be zero.
const HeaderIgnoreBit byte = 0x80

// LengthFieldSize is the width, in bytes, of the encrypted packet length
// prefix.
const LengthFieldSize = 3

// TagSize is the AEAD authentication tag appended to every packet body.
const TagSize = 16

// MaxContentsLen is the largest payload a 3-byte little-endian length field
// can represent.
const MaxContentsLen = 1<<24 - 1

// ErrReservedBitsSet is returned when a decrypted packet header has any of
// bits 0-6 set; BIP-324 reserves them to prevent silent wire extensions.
var ErrReservedBitsSet = errors.New("protocol: reserved header bits set")
