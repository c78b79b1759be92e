package ellswift

import (
	"crypto/rand"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func mustCreate(t *testing.T) ([32]byte, [64]byte) {
	t.Helper()
	priv, enc, err := EllSwiftCreate(rand.Reader)
	if err != nil {
		t.Fatalf("EllSwiftCreate: %v", err)
	}
	return priv, enc
}

func TestEllSwiftRoundtrip(t *testing.T) {
	priv, pub := mustCreate(t)
	x := EllSwiftDecode(pub)
	if !IsValidX(x) {
		t.Fatal("decoded x-coordinate should lie on the curve")
	}
	wantX, err := scalarBaseMultX(priv)
	if err != nil {
		t.Fatalf("scalarBaseMultX: %v", err)
	}
	if !wantX.Equal(x) {
		t.Fatal("decoding a created key should recover the public key's x-coordinate")
	}
}

func TestEllSwiftEncodeDecodeMatchesSource(t *testing.T) {
	priv, pub := mustCreate(t)
	wantX, err := scalarBaseMultX(priv)
	if err != nil {
		t.Fatalf("scalarBaseMultX: %v", err)
	}
	gotX := EllSwiftDecode(pub)
	if !wantX.Equal(gotX) {
		t.Fatal("ElligatorSwift-decoded x does not match the x-coordinate it was encoded from")
	}
}

func TestXElligatorSwiftInverseProperty(t *testing.T) {
	// Encode an arbitrary on-curve x-coordinate directly (bypassing key
	// generation) and check the xswiftec(xelligatorswift(x)) == x property
	// from the reference implementation's own round-trip test.
	_, pub := mustCreate(t)
	x := EllSwiftDecode(pub)

	u, tVal, err := xelligatorswift(x, rand.Reader)
	if err != nil {
		t.Fatalf("xelligatorswift: %v", err)
	}
	x2 := xswiftec(u, tVal)
	if !x.Equal(x2) {
		t.Fatal("xswiftec(xelligatorswift(x)) != x")
	}
}

func TestECDHSymmetry(t *testing.T) {
	privA, pubA := mustCreate(t)
	privB, pubB := mustCreate(t)

	sharedA, err := ECDHXOnly(pubB, privA)
	if err != nil {
		t.Fatalf("ECDHXOnly(A): %v", err)
	}
	sharedB, err := ECDHXOnly(pubA, privB)
	if err != nil {
		t.Fatalf("ECDHXOnly(B): %v", err)
	}
	if !sharedA.Equal(sharedB) {
		t.Fatal("ECDH shared x-coordinate is not symmetric between initiator and responder")
	}
}

func TestECDHXOnlyParityIndependence(t *testing.T) {
	// liftX always chooses the even-y point; verify this doesn't leak into
	// the shared secret: ECDHXOnly is deterministic, and multiplying the
	// odd-y point (the even-y point with y negated) yields the same shared
	// x-coordinate.
	privA, _ := mustCreate(t)
	_, pubB := mustCreate(t)

	s1, err := ECDHXOnly(pubB, privA)
	if err != nil {
		t.Fatalf("ECDHXOnly: %v", err)
	}
	s2, err := ECDHXOnly(pubB, privA)
	if err != nil {
		t.Fatalf("ECDHXOnly: %v", err)
	}
	if !s1.Equal(s2) {
		t.Fatal("ECDHXOnly should be deterministic for the same inputs")
	}

	q, err := liftX(EllSwiftDecode(pubB))
	if err != nil {
		t.Fatalf("liftX: %v", err)
	}
	negQ := *q
	negQ.Y.Negate(1).Normalize()
	k := scalarFromBytes(privA)
	var r secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&k, &negQ, &r)
	r.ToAffine()
	if !feFromFieldVal(&r.X).Equal(s1) {
		t.Fatal("shared x-coordinate should not depend on the y-parity of the lifted point")
	}
}

func TestEllSwiftDecodeRejectsNothingWellFormed(t *testing.T) {
	// Every 64-byte string is a valid ElligatorSwift encoding; decoding
	// should never panic or fail for arbitrary (even non-generated) input.
	var enc [64]byte
	if _, err := rand.Read(enc[:]); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	x := EllSwiftDecode(enc)
	if !IsValidX(x) {
		t.Fatal("decoded x-coordinate from arbitrary bytes should still satisfy the curve equation")
	}
}
