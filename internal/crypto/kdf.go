package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF runs RFC 5869 extract-then-expand HKDF-SHA256 over ikm with the
// given salt and info, returning L output bytes.
//
// This wraps golang.org/x/crypto/hkdf directly, the same package the
// teacher's session-key derivation already depends on.
func HKDF(salt, ikm, info []byte, l int) []byte {
	reader := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, l)
	if _, err := io.ReadFull(reader, out); err != nil {
		panic("bip324: hkdf expand failed: " + err.Error())
	}
	return out
}

// TaggedHash computes the BIP-340-style tagged hash
// SHA256(SHA256(tag) || SHA256(tag) || msg).
func TaggedHash(tag string, msg []byte) [32]byte {
	tagHash := sha256.Sum256([]byte(tag))

	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	h.Write(msg)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
