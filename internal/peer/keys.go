package peer

import (
	"github.com/bip324/v2transport/internal/crypto"
	"github.com/bip324/v2transport/internal/protocol"
)

// hkdfSaltPrefix is the fixed portion of the HKDF salt; the session's
// network magic is appended to it.
const hkdfSaltPrefix = "bitcoin_v2_shared_secret"

// ecdhTag is the BIP-340-style tag used when hashing the shared ECDH point
// into the handshake's shared secret.
const ecdhTag = "bip324_ellswift_xonly_ecdh"

// computeSharedSecret computes S = TaggedHash("bip324_ellswift_xonly_ecdh", a||b||x)
// where a/b are ordered per role: the initiator places its own ellswift
// encoding first, the responder places the remote encoding first. ecdhX is
// the 32-byte x-only ECDH output.
func computeSharedSecret(role Role, ellswiftOurs, ellswiftTheirs [64]byte, ecdhX [32]byte) [32]byte {
	msg := make([]byte, 0, 64+64+32)
	if role == RoleInitiator {
		msg = append(msg, ellswiftOurs[:]...)
		msg = append(msg, ellswiftTheirs[:]...)
	} else {
		msg = append(msg, ellswiftTheirs[:]...)
		msg = append(msg, ellswiftOurs[:]...)
	}
	msg = append(msg, ecdhX[:]...)
	return crypto.TaggedHash(ecdhTag, msg)
}

// sessionKeys holds every value derived from the shared secret: the send and
// recv packet codecs (built from the four directional ciphers), both garbage
// terminators, and the session id used for out-of-band peer verification.
type sessionKeys struct {
	send      *protocol.Sender
	recv      *protocol.Receiver
	sendTerm  [16]byte
	recvTerm  [16]byte
	sessionID [32]byte
}

// deriveSessionKeys runs HKDF-SHA256 over the shared secret with
// salt = "bitcoin_v2_shared_secret" || magic, one call per named subkey,
// then assigns send/recv roles and splits the garbage-terminator output,
// exactly mirroring the reference's initialize_v2_transport.
func deriveSessionKeys(role Role, magic [4]byte, secret [32]byte) sessionKeys {
	salt := append([]byte(hkdfSaltPrefix), magic[:]...)

	initiatorL := crypto.HKDF(salt, secret[:], []byte("initiator_L"), crypto.KeySize)
	initiatorP := crypto.HKDF(salt, secret[:], []byte("initiator_P"), crypto.KeySize)
	responderL := crypto.HKDF(salt, secret[:], []byte("responder_L"), crypto.KeySize)
	responderP := crypto.HKDF(salt, secret[:], []byte("responder_P"), crypto.KeySize)
	terminators := crypto.HKDF(salt, secret[:], []byte("garbage_terminators"), 32)
	sessionID := crypto.HKDF(salt, secret[:], []byte("session_id"), 32)

	var initiatorTerm, responderTerm [16]byte
	copy(initiatorTerm[:], terminators[:16])
	copy(responderTerm[:], terminators[16:])

	var keys sessionKeys
	copy(keys.sessionID[:], sessionID)

	if role == RoleInitiator {
		keys.send = protocol.NewSender(
			crypto.NewFSChaCha20(initiatorL),
			crypto.NewFSChaCha20Poly1305(initiatorP),
		)
		keys.recv = protocol.NewReceiver(
			crypto.NewFSChaCha20(responderL),
			crypto.NewFSChaCha20Poly1305(responderP),
		)
		keys.sendTerm = initiatorTerm
		keys.recvTerm = responderTerm
	} else {
		keys.send = protocol.NewSender(
			crypto.NewFSChaCha20(responderL),
			crypto.NewFSChaCha20Poly1305(responderP),
		)
		keys.recv = protocol.NewReceiver(
			crypto.NewFSChaCha20(initiatorL),
			crypto.NewFSChaCha20Poly1305(initiatorP),
		)
		keys.sendTerm = responderTerm
		keys.recvTerm = initiatorTerm
	}
	return keys
}
