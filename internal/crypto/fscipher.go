package crypto

// RekeyInterval is the number of chunks/packets a forward-secure cipher
// processes before irreversibly advancing its key (BIP-324 REKEY_INTERVAL).
const RekeyInterval = 224

// FSChaCha20 is the forward-secure stream cipher used to encrypt the 3-byte
// packet length field. Every chunk processed advances chunk_counter; every
// RekeyInterval'th chunk triggers an irreversible key rotation so that
// compromising a later key cannot decrypt earlier length fields.
type FSChaCha20 struct {
	key          [KeySize]byte
	blockCounter uint32
	chunkCounter uint64
	keystream    []byte // unused keystream bytes left over from the last generated block
}

// NewFSChaCha20 creates a length cipher seeded with the given 32-byte key.
func NewFSChaCha20(key []byte) *FSChaCha20 {
	f := &FSChaCha20{}
	copy(f.key[:], key)
	return f
}

// nonce returns the 12-byte ChaCha20 nonce for the current epoch:
// 4 zero bytes followed by the little-endian chunk epoch
// (chunk_counter / RekeyInterval).
func (f *FSChaCha20) nonce() []byte {
	epoch := f.chunkCounter / RekeyInterval
	n := make([]byte, 0, BlockNonceSize)
	n = append(n, le32(0)...)
	n = append(n, le64(epoch)...)
	return n
}

// fill ensures at least n bytes of keystream are buffered, generating
// further ChaCha20 blocks (and advancing blockCounter) as needed.
func (f *FSChaCha20) fill(n int) {
	nonce := f.nonce()
	for len(f.keystream) < n {
		block := make([]byte, BlockSize)
		blockKeystream(f.key[:], nonce, f.blockCounter, block)
		f.blockCounter++
		f.keystream = append(f.keystream, block...)
	}
}

// take consumes and returns the next n keystream bytes.
func (f *FSChaCha20) take(n int) []byte {
	f.fill(n)
	out := append([]byte(nil), f.keystream[:n]...)
	f.keystream = f.keystream[n:]
	return out
}

// Crypt XORs chunk with the next len(chunk) keystream bytes (symmetric:
// used for both encryption and decryption) and advances the chunk counter.
// Every RekeyInterval'th call additionally rotates the key from the
// following 32 keystream bytes and resets the block counter.
func (f *FSChaCha20) Crypt(chunk []byte) []byte {
	ks := f.take(len(chunk))
	out := make([]byte, len(chunk))
	for i := range chunk {
		out[i] = chunk[i] ^ ks[i]
	}

	if (f.chunkCounter+1)%RekeyInterval == 0 {
		newKey := f.take(KeySize)
		copy(f.key[:], newKey)
		f.blockCounter = 0
		f.keystream = nil
	}
	f.chunkCounter++
	return out
}

// FSChaCha20Poly1305 is the forward-secure AEAD used to encrypt packet
// bodies. Like FSChaCha20 it rekeys every RekeyInterval packets, but does so
// by AEAD-encrypting 32 zero bytes under a sentinel nonce rather than
// drawing raw keystream, per BIP-324's accepted (non-draft) construction.
type FSChaCha20Poly1305 struct {
	key           [KeySize]byte
	packetCounter uint64
}

// NewFSChaCha20Poly1305 creates a body AEAD seeded with the given 32-byte key.
func NewFSChaCha20Poly1305(key []byte) *FSChaCha20Poly1305 {
	f := &FSChaCha20Poly1305{}
	copy(f.key[:], key)
	return f
}

// nonce returns the 12-byte AEAD nonce for the current packet:
// little-endian (packet_counter mod RekeyInterval) as the first 4 bytes,
// little-endian (packet_counter / RekeyInterval) as the remaining 8.
func (f *FSChaCha20Poly1305) nonce() []byte {
	low := uint32(f.packetCounter % RekeyInterval)
	high := f.packetCounter / RekeyInterval
	n := make([]byte, 0, BlockNonceSize)
	n = append(n, le32(low)...)
	n = append(n, le64(high)...)
	return n
}

// Encrypt seals plaintext under the current packet's nonce and advances
// (and, every RekeyInterval'th packet, rotates) the cipher state.
func (f *FSChaCha20Poly1305) Encrypt(aad, plaintext []byte) []byte {
	ct := Seal(f.key[:], f.nonce(), aad, plaintext)
	f.advance()
	return ct
}

// Decrypt opens ciphertext under the current packet's nonce and advances
// the cipher state regardless of success, matching the counter invariant
// that packet_counter increases by exactly one per packet either way.
func (f *FSChaCha20Poly1305) Decrypt(aad, ciphertext []byte) ([]byte, error) {
	pt, err := Open(f.key[:], f.nonce(), aad, ciphertext)
	f.advance()
	return pt, err
}

// advance increments the packet counter and performs the rekey-via-zero
// construction when it crosses a RekeyInterval boundary: AEAD-encrypt 32
// zero bytes under the about-to-expire key with an out-of-band nonce
// (counter field 0xFFFFFFFF, same high-order bits as the just-used nonce)
// and take the first 32 bytes of ciphertext as the new key.
func (f *FSChaCha20Poly1305) advance() {
	high := f.packetCounter / RekeyInterval
	f.packetCounter++
	if f.packetCounter%RekeyInterval != 0 {
		return
	}

	rekeyNonce := make([]byte, 0, BlockNonceSize)
	rekeyNonce = append(rekeyNonce, 0xFF, 0xFF, 0xFF, 0xFF)
	rekeyNonce = append(rekeyNonce, le64(high)...)

	out := Seal(f.key[:], rekeyNonce, nil, make([]byte, KeySize))
	copy(f.key[:], out[:KeySize])
}
