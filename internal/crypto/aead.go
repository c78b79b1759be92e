package crypto

import (
	"errors"

	"golang.org/x/crypto/poly1305"
)

// ErrAuthFailed is returned by Open when the Poly1305 tag does not verify.
var ErrAuthFailed = errors.New("bip324: aead authentication failed")

// Seal encrypts plaintext under key/nonce (RFC 8439 AEAD_CHACHA20_POLY1305)
// and appends a 16-byte tag, returning ciphertext||tag. aad is authenticated
// but not encrypted.
func Seal(key, nonce, aad, plaintext []byte) []byte {
	macKey := polyKey(key, nonce)

	ct := make([]byte, len(plaintext)+TagSize)
	blockXOR(key, nonce, 1, ct[:len(plaintext)], plaintext)

	tag := computeTag(macKey, aad, ct[:len(plaintext)])
	copy(ct[len(plaintext):], tag[:])
	return ct
}

// Open verifies and decrypts ciphertext||tag produced by Seal. It returns
// ErrAuthFailed if the tag does not match; in that case no plaintext is
// returned, matching BIP-324's requirement to verify before releasing any
// decrypted data.
func Open(key, nonce, aad, ciphertextAndTag []byte) ([]byte, error) {
	if len(ciphertextAndTag) < TagSize {
		return nil, ErrAuthFailed
	}
	ct := ciphertextAndTag[:len(ciphertextAndTag)-TagSize]
	gotTag := ciphertextAndTag[len(ciphertextAndTag)-TagSize:]

	macKey := polyKey(key, nonce)
	wantTag := computeTag(macKey, aad, ct)
	if !verifyTag(wantTag, gotTag) {
		return nil, ErrAuthFailed
	}

	pt := make([]byte, len(ct))
	blockXOR(key, nonce, 1, pt, ct)
	return pt, nil
}

// polyKey derives the one-time Poly1305 key from the first 32 bytes of the
// ChaCha20 keystream at block counter 0, per RFC 8439 §2.6.
func polyKey(key, nonce []byte) *[32]byte {
	var mk [32]byte
	blockKeystream(key, nonce, 0, mk[:])
	return &mk
}

// computeTag builds the RFC 8439 MAC input (aad padded to 16, ciphertext
// padded to 16, then 8-byte little-endian lengths of each) and returns the
// Poly1305 tag over it.
func computeTag(macKey *[32]byte, aad, ciphertext []byte) [TagSize]byte {
	msg := make([]byte, 0, pad16(len(aad))+pad16(len(ciphertext))+16)
	msg = append(msg, aad...)
	msg = appendZeros(msg, pad16(len(aad))-len(aad))
	msg = append(msg, ciphertext...)
	msg = appendZeros(msg, pad16(len(ciphertext))-len(ciphertext))
	msg = append(msg, le64(uint64(len(aad)))...)
	msg = append(msg, le64(uint64(len(ciphertext)))...)

	var tag [TagSize]byte
	poly1305.Sum(&tag, msg, macKey)
	return tag
}

func pad16(n int) int {
	if n%16 == 0 {
		return n
	}
	return n + (16 - n%16)
}

func appendZeros(b []byte, n int) []byte {
	for i := 0; i < n; i++ {
		b = append(b, 0)
	}
	return b
}

// verifyTag does a constant-time comparison of two 16-byte tags.
func verifyTag(want [TagSize]byte, got []byte) bool {
	if len(got) != TagSize {
		return false
	}
	var diff byte
	for i := range want {
		diff |= want[i] ^ got[i]
	}
	return diff == 0
}
