// Package crypto implements the forward-secure ChaCha20/Poly1305
// constructions used by the BIP-324 v2 transport, plus the HKDF key
// derivation and tagged-hash primitives the handshake builds on.
package crypto

import (
	rtchacha20 "golang.org/x/crypto/chacha20"
)

const (
	// KeySize is the size of a ChaCha20 key in bytes.
	KeySize = 32

	// BlockNonceSize is the size of the 96-bit nonce ChaCha20 blocks use.
	BlockNonceSize = 12

	// BlockSize is the number of keystream bytes a single ChaCha20 block
	// produces.
	BlockSize = 64

	// TagSize is the size of a Poly1305 authentication tag.
	TagSize = 16
)

// blockKeystream fills out with len(out) keystream bytes produced by
// ChaCha20 under key/nonce starting at the given block counter. It never
// touches out's contents beyond XORing against an implicit all-zero
// plaintext, so the result is pure keystream.
//
// This is the thin wrapper the rest of the package uses instead of
// golang.org/x/crypto/chacha20poly1305's sealed AEAD: FSChaCha20 needs raw
// keystream bytes for 3-byte length fields and FSChaCha20Poly1305 needs to
// restart the counter mid-stream for its rekey trick, neither of which the
// sealed interface exposes.
func blockKeystream(key []byte, nonce []byte, counter uint32, out []byte) {
	c, err := rtchacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		panic("bip324: invalid chacha20 key or nonce: " + err.Error())
	}
	c.SetCounter(counter)
	for i := range out {
		out[i] = 0
	}
	c.XORKeyStream(out, out)
}

// blockXOR XORs src into dst using ChaCha20 keystream under key/nonce
// starting at the given block counter. dst and src may be the same slice.
func blockXOR(key []byte, nonce []byte, counter uint32, dst, src []byte) {
	c, err := rtchacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		panic("bip324: invalid chacha20 key or nonce: " + err.Error())
	}
	c.SetCounter(counter)
	c.XORKeyStream(dst, src)
}

// le32 encodes v as 4 little-endian bytes.
func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// le64 encodes v as 8 little-endian bytes.
func le64(v uint64) []byte {
	return []byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	}
}
