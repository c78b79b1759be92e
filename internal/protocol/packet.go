package protocol

import "github.com/bip324/v2transport/internal/crypto"

// le3 encodes n as a 3-byte little-endian integer.
func le3(n int) [3]byte {
	return [3]byte{byte(n), byte(n >> 8), byte(n >> 16)}
}

func decodeLE3(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

// Sender encrypts outgoing packets using a sending length cipher and body
// AEAD pair derived once at the end of the handshake.
type Sender struct {
	lengthCipher *crypto.FSChaCha20
	bodyAEAD     *crypto.FSChaCha20Poly1305
}

// NewSender builds a packet sender from the forward-secure cipher pair
// assigned to this direction.
func NewSender(lengthCipher *crypto.FSChaCha20, bodyAEAD *crypto.FSChaCha20Poly1305) *Sender {
	return &Sender{lengthCipher: lengthCipher, bodyAEAD: bodyAEAD}
}

// Encrypt seals contents (with the given AAD, which is only non-empty for
// the first packet after a handshake) into a wire packet. Setting ignore
// marks the packet as a decoy that the receiver will discard.
func (s *Sender) Encrypt(contents, aad []byte, ignore bool) []byte {
	header := byte(0)
	if ignore {
		header = HeaderIgnoreBit
	}

	body := make([]byte, 0, 1+len(contents))
	body = append(body, header)
	body = append(body, contents...)
	bodyCT := s.bodyAEAD.Encrypt(aad, body)

	lenBytes := le3(len(contents))
	lenCT := s.lengthCipher.Crypt(lenBytes[:])

	out := make([]byte, 0, LengthFieldSize+len(bodyCT))
	out = append(out, lenCT...)
	out = append(out, bodyCT...)
	return out
}

// Receiver decrypts incoming packets, resumable across arbitrary chunk
// boundaries: each Decrypt call reports how many bytes of buf it consumed,
// so a caller feeding bytes off a socket in arbitrary sizes can simply
// retry with more data appended rather than buffering whole packets itself.
type Receiver struct {
	lengthCipher *crypto.FSChaCha20
	bodyAEAD     *crypto.FSChaCha20Poly1305

	// pendingLen caches a length field already decrypted from a previous
	// call whose buffer didn't yet contain the full body. The length
	// cipher is stateful and must not be re-invoked on the same bytes, so
	// this cannot simply be recomputed on retry.
	pendingLen *int
}

// NewReceiver builds a packet receiver from the forward-secure cipher pair
// assigned to this direction.
func NewReceiver(lengthCipher *crypto.FSChaCha20, bodyAEAD *crypto.FSChaCha20Poly1305) *Receiver {
	return &Receiver{lengthCipher: lengthCipher, bodyAEAD: bodyAEAD}
}

// Decrypt attempts to decode one packet from the front of buf.
//
// Returns consumed == 0 and a nil error when buf does not yet hold a full
// packet ("need more bytes"); the caller should append more data and call
// again without discarding buf. Returns a non-nil error (AEAD auth failure
// or ErrReservedBitsSet) when the packet is malformed, which is always
// fatal to the session. On success, consumed is the number of bytes of buf
// the packet occupied; payload is empty (but consumed is still reported)
// for decoy packets.
func (r *Receiver) Decrypt(buf, aad []byte) (consumed int, payload []byte, ignore bool, err error) {
	if r.pendingLen == nil {
		if len(buf) < LengthFieldSize {
			return 0, nil, false, nil
		}
		lenPT := r.lengthCipher.Crypt(buf[:LengthFieldSize])
		n := decodeLE3(lenPT)
		r.pendingLen = &n
	}

	n := *r.pendingLen
	need := LengthFieldSize + 1 + n + TagSize
	if len(buf) < need {
		return 0, nil, false, nil
	}

	body := buf[LengthFieldSize:need]
	pt, err := r.bodyAEAD.Decrypt(aad, body)
	if err != nil {
		return 0, nil, false, err
	}

	r.pendingLen = nil

	header := pt[0]
	if header&^HeaderIgnoreBit != 0 {
		return 0, nil, false, ErrReservedBitsSet
	}

	if header&HeaderIgnoreBit != 0 {
		return need, nil, true, nil
	}
	return need, pt[1:], false, nil
}
