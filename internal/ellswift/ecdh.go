package ellswift

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// generatePrivateKey samples a uniformly random scalar in [1, N).
func generatePrivateKey(rnd io.Reader) ([32]byte, error) {
	var out [32]byte
	k, err := rand.Int(rnd, new(big.Int).Sub(N, big.NewInt(1)))
	if err != nil {
		return out, err
	}
	k.Add(k, big.NewInt(1))
	k.FillBytes(out[:])
	return out, nil
}

func scalarFromBytes(b [32]byte) secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	s.SetByteSlice(b[:])
	return s
}

func feFromFieldVal(f *secp256k1.FieldVal) FE {
	f.Normalize()
	b := f.Bytes()
	return FEFromBytes(b[:])
}

// scalarBaseMultX computes the x-coordinate of priv*G, delegating the
// group-level scalar multiplication to decred's constant-time-agnostic
// (NonConst) secp256k1 implementation; only the x-coordinate is needed
// since the ElligatorSwift encoder works on x alone.
func scalarBaseMultX(priv [32]byte) (FE, error) {
	s := scalarFromBytes(priv)

	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s, &result)
	result.ToAffine()

	return feFromFieldVal(&result.X), nil
}

// liftX recovers a curve point with the given x-coordinate. The y-parity
// chosen is arbitrary (even): x-only ECDH only consumes the resulting
// x-coordinate, and negating a point's y leaves its x unchanged, so the
// parity choice here cannot affect ecdhXOnly's result.
func liftX(x FE) (*secp256k1.JacobianPoint, error) {
	xb := x.Bytes()
	compressed := make([]byte, 33)
	compressed[0] = 0x02
	copy(compressed[1:], xb[:])

	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return nil, ErrNotOnCurve
	}

	var jac secp256k1.JacobianPoint
	pub.AsJacobian(&jac)
	return &jac, nil
}

// ecdhXOnly computes the x-coordinate of priv * Q, where Q is a curve point
// with x-coordinate theirX.
func ecdhXOnly(theirX FE, priv [32]byte) (FE, error) {
	q, err := liftX(theirX)
	if err != nil {
		return FE{}, err
	}

	s := scalarFromBytes(priv)
	var result secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&s, q, &result)
	result.ToAffine()

	return feFromFieldVal(&result.X), nil
}
