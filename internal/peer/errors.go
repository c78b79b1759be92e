// Package peer implements the BIP-324 v2 handshake state machine and the
// established session built on top of it: garbage exchange, subkey
// derivation, and the transition into packet-level encryption.
package peer

import "errors"

// Role distinguishes the two sides of a v2 handshake. The initiator sends
// its ellswift key and garbage first; the responder only does so after
// observing a byte that rules out a v1 peer.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// ErrNeedMore is a sentinel, not a failure: the caller should read more
// bytes from the peer and retry the same call with them appended.
var ErrNeedMore = errors.New("peer: need more bytes")

// ErrV1Fallback is a sentinel returned by a responder's prefix scan once all
// 16 bytes of V1_PREFIX have matched: this peer is speaking v1, not v2.
var ErrV1Fallback = errors.New("peer: remote peer is v1, fall back")

// Reason classifies why a session was torn down.
type Reason int

const (
	// ReasonProtocolViolation covers malformed input that isn't a MAC
	// failure: reserved header bits set, an overlong length field, or a
	// garbage terminator that never appeared within MaxGarbageBytes (4095
	// by default) of garbage plus the 16 terminator bytes.
	ReasonProtocolViolation Reason = iota
	// ReasonAuthFailure covers AEAD tag mismatches during authentication
	// or packet decryption.
	ReasonAuthFailure
	// ReasonCryptoInput covers a peer's ellswift encoding (or other
	// attacker-controlled cryptographic input) failing to lift to a valid
	// curve point.
	ReasonCryptoInput
)

func (r Reason) String() string {
	switch r {
	case ReasonProtocolViolation:
		return "protocol_violation"
	case ReasonAuthFailure:
		return "auth_failure"
	case ReasonCryptoInput:
		return "crypto_input"
	default:
		return "unknown"
	}
}

// DisconnectError wraps any fatal handshake or session failure with the
// Reason a caller needs to decide how to log or count it, without losing
// the underlying error via Unwrap.
type DisconnectError struct {
	Reason Reason
	Err    error
}

func (e *DisconnectError) Error() string {
	return "peer: disconnect (" + e.Reason.String() + "): " + e.Err.Error()
}

func (e *DisconnectError) Unwrap() error {
	return e.Err
}

func disconnect(reason Reason, err error) error {
	return &DisconnectError{Reason: reason, Err: err}
}
