package ellswift

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
)

// ErrNotOnCurve is returned when a 64-byte ElligatorSwift encoding decodes
// to an x-coordinate that cannot be lifted to a curve point. Key generation
// never returns it: the encoder keeps resampling until it finds an encoding.
var ErrNotOnCurve = errors.New("ellswift: x-coordinate is not on the curve")

// xswiftec decodes field elements (u, t) to the x-coordinate of a curve
// point, following the ElligatorSwift map from the BIP-324 reference
// implementation verbatim (including the u==0/t==0 substitutions and the
// three-candidate fallback).
func xswiftec(u, t FE) FE {
	if u.IsZero() {
		u = feOne
	}
	if t.IsZero() {
		t = feOne
	}
	if u.Cube().Add(t.Square()).Add(feSeven).IsZero() {
		t = t.MulInt(2)
	}

	x := u.Cube().Sub(t.Square()).Add(feSeven).Div(t.MulInt(2))
	y := x.Add(t).Div(minus3Sqrt.Mul(u))

	y2 := y.Square()
	candidates := [3]FE{
		u.Add(y2.MulInt(4)),
		x.Negate().Div(y).Sub(u).Div(feTwo),
		x.Div(y).Sub(u).Div(feTwo),
	}
	for _, cand := range candidates {
		if IsValidX(cand) {
			return cand
		}
	}
	panic("ellswift: xswiftec produced no valid x-coordinate")
}

// xswiftecInv is the inverse map used by the encoder: given a curve
// x-coordinate and an auxiliary field element u, it returns the four t
// values (t1..t4) such that xswiftec(u, ti) == x, selecting the branch
// family named by case (bits 0 and 1) and the root sign (bit 2). It
// reports false when no such t exists for this (x, u, case) triple.
func xswiftecInv(x, u FE, caseNum int) (t1, t2, t3, t4 FE, ok bool) {
	var s, v FE

	if caseNum&2 == 0 {
		if IsValidX(x.Negate().Sub(u)) {
			return FE{}, FE{}, FE{}, FE{}, false
		}
		cx := x
		if caseNum&1 != 0 {
			cx = x.Negate().Sub(u)
		}
		v = cx
		denom := u.Square().Add(u.Mul(v)).Add(v.Square())
		s = u.Cube().Add(feSeven).Negate().Div(denom)
	} else {
		s = x.Sub(u)
		if s.IsZero() {
			return FE{}, FE{}, FE{}, FE{}, false
		}
		inner := u.Cube().Add(feSeven).MulInt(4).Add(s.Mul(u.Square()).MulInt(3))
		r, sq := s.Negate().Mul(inner).Sqrt()
		if !sq {
			return FE{}, FE{}, FE{}, FE{}, false
		}
		if caseNum&1 != 0 {
			if r.IsZero() {
				return FE{}, FE{}, FE{}, FE{}, false
			}
			r = r.Negate()
		}
		v = u.Negate().Add(r.Div(s)).Div(feTwo)
	}

	w, sq := s.Sqrt()
	if !sq {
		return FE{}, FE{}, FE{}, FE{}, false
	}
	if caseNum&4 != 0 {
		w = w.Negate()
	}

	half := feTwo.Invert()
	t1 = w.Mul(u.Mul(minus3Sqrt.Sub(feOne)).Mul(half).Sub(v))
	t2 = w.Mul(u.Mul(minus3Sqrt.Add(feOne)).Mul(half).Add(v))
	t3 = w.Mul(u.Mul(minus3Sqrt.Negate().Sub(feOne)).Mul(half).Sub(v))
	t4 = w.Mul(u.Mul(minus3Sqrt.Negate().Add(feOne)).Mul(half).Add(v))
	return t1, t2, t3, t4, true
}

// xelligatorswift finds an ElligatorSwift encoding (u, t) for the curve
// x-coordinate x, drawing randomness from rnd. It samples a uniformly random
// auxiliary element u and branch case until xswiftecInv yields a result,
// matching the reference encoder's retry loop.
func xelligatorswift(x FE, rnd io.Reader) (u, t FE, err error) {
	for {
		uInt, err := rand.Int(rnd, new(big.Int).Sub(N, big.NewInt(1)))
		if err != nil {
			return FE{}, FE{}, err
		}
		uInt.Add(uInt, big.NewInt(1))
		u = FEFromBig(uInt)

		caseInt, err := rand.Int(rnd, big.NewInt(8))
		if err != nil {
			return FE{}, FE{}, err
		}

		t1, _, _, _, ok := xswiftecInv(x, u, int(caseInt.Int64()))
		if !ok {
			continue
		}
		return u, t1, nil
	}
}

// EllSwiftCreate generates a fresh keypair and returns the private scalar
// and its 64-byte ElligatorSwift-encoded public key, reading randomness
// from rnd (pass crypto/rand.Reader in production; tests may inject a
// deterministic source).
func EllSwiftCreate(rnd io.Reader) (priv [32]byte, enc [64]byte, err error) {
	priv, err = generatePrivateKey(rnd)
	if err != nil {
		return priv, enc, err
	}
	x, err := scalarBaseMultX(priv)
	if err != nil {
		return priv, enc, err
	}
	u, t, err := xelligatorswift(x, rnd)
	if err != nil {
		return priv, enc, err
	}
	ub := u.Bytes()
	tb := t.Bytes()
	copy(enc[:32], ub[:])
	copy(enc[32:], tb[:])
	return priv, enc, nil
}

// EllSwiftDecode recovers the curve x-coordinate encoded by a 64-byte
// ElligatorSwift string. Every 64-byte string decodes to some valid
// x-coordinate; this never fails.
func EllSwiftDecode(enc [64]byte) FE {
	u := FEFromBytes(enc[:32])
	t := FEFromBytes(enc[32:])
	return xswiftec(u, t)
}

// ECDHXOnly performs x-only ECDH between our private scalar and a peer's
// ElligatorSwift-encoded public key, returning the shared x-coordinate.
// It returns ErrNotOnCurve if the peer's encoding somehow decodes to an
// x-coordinate that cannot be lifted to a curve point (should not happen
// for honestly generated encodings, but a malicious peer's garbage input
// isn't excluded by the wire format alone).
func ECDHXOnly(theirEnc [64]byte, priv [32]byte) (FE, error) {
	x := EllSwiftDecode(theirEnc)
	return ecdhXOnly(x, priv)
}
