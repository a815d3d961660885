// Package babyjub gives access to the twisted Edwards curve embedded in
// BN254 (Baby Jubjub). It provides the point codec used for the joint key
// and the ElGamal masking used by the task generator and the development
// proof system.
//
// Points are exchanged in the coordinates of the curve
// x^2 + y^2 = 1 + d*x^2*y^2 with d = 168696/168700, the form the provers
// and the on-chain verifier use. The arithmetic is done by gnark-crypto on
// the isomorphic curve -u^2 + y^2 = 1 - d*u^2*y^2, with u = sqrt(-1)*x.
package babyjub

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"go.dedis.ch/shuffleprover/deck"
	"golang.org/x/xerrors"
)

// PointSize is the size of a compressed point.
const PointSize = 32

// Coordinates of the generator of the prime-order subgroup.
const (
	BaseX = "19698561148652590122159747500897617769866003486955115824547446575314762165298"
	BaseY = "19298250018296453272277890825869354524455968081175474282777126169995084727839"
)

const negativeX = 0x80

var (
	curve = twistededwards.GetEdwardsCurve()
	// d is the coefficient of the exchanged form, the opposite of gnark's.
	d fr.Element
	// sqrtM1 maps x to gnark's u, sqrtM1Inv maps back.
	sqrtM1, sqrtM1Inv fr.Element
	base              deck.Point
)

func init() {
	d.Neg(&curve.D)
	sqrtM1.SetOne()
	sqrtM1.Neg(&sqrtM1)
	if sqrtM1.Sqrt(&sqrtM1) == nil {
		panic("-1 is not a square in the base field")
	}
	sqrtM1Inv.Neg(&sqrtM1)
	if _, err := base.X.SetString(BaseX); err != nil {
		panic(err)
	}
	if _, err := base.Y.SetString(BaseY); err != nil {
		panic(err)
	}
}

// Order returns the order of the prime subgroup.
func Order() *big.Int {
	return new(big.Int).Set(&curve.Order)
}

// Base returns the generator of the prime subgroup.
func Base() deck.Point {
	return base
}

// Identity returns the neutral element (0, 1).
func Identity() deck.Point {
	var p deck.Point
	p.Y.SetOne()
	return p
}

// Codec encodes points in 32 bytes: y in little endian, with the most
// significant bit set when x is the larger of x and -x.
type Codec struct{}

// EncodePoint implements wire.PointCodec.
func (Codec) EncodePoint(p deck.Point) ([]byte, error) {
	if !OnCurve(p) {
		return nil, xerrors.New("point is not on the curve")
	}
	b := p.Y.Bytes()
	reverse(b[:])
	if p.X.LexicographicallyLargest() {
		b[PointSize-1] |= negativeX
	}
	return b[:], nil
}

// DecodePoint implements wire.PointCodec. It fails for encodings that do
// not give a point of the prime-order subgroup.
func (Codec) DecodePoint(b []byte) (deck.Point, error) {
	if len(b) != PointSize {
		return deck.Point{}, xerrors.Errorf("expected %d bytes, got %d", PointSize, len(b))
	}
	be := make([]byte, PointSize)
	copy(be, b)
	reverse(be)
	negative := be[0]&negativeX != 0
	be[0] &^= negativeX

	var p deck.Point
	p.Y.SetBytes(be)
	if yb := p.Y.Bytes(); string(yb[:]) != string(be) {
		return deck.Point{}, xerrors.New("y coordinate is not reduced")
	}

	// x^2 = (1 - y^2) / (1 - d*y^2)
	var one, y2, num, den fr.Element
	one.SetOne()
	y2.Square(&p.Y)
	num.Sub(&one, &y2)
	den.Mul(&d, &y2)
	den.Sub(&one, &den)
	if den.IsZero() {
		return deck.Point{}, xerrors.New("no point with this y coordinate")
	}
	p.X.Div(&num, &den)
	if p.X.Sqrt(&p.X) == nil {
		return deck.Point{}, xerrors.New("no point with this y coordinate")
	}
	if p.X.IsZero() && negative {
		return deck.Point{}, xerrors.New("sign set for a zero x coordinate")
	}
	if p.X.LexicographicallyLargest() != negative {
		p.X.Neg(&p.X)
	}

	if !InSubgroup(p) {
		return deck.Point{}, xerrors.New("point is not in the prime-order subgroup")
	}
	return p, nil
}

// OnCurve reports whether p satisfies the curve equation.
func OnCurve(p deck.Point) bool {
	a := toAffine(p)
	return a.IsOnCurve()
}

// InSubgroup reports whether p is on the curve and of prime order.
func InSubgroup(p deck.Point) bool {
	if !OnCurve(p) {
		return false
	}
	return Mul(p, &curve.Order).Equal(Identity())
}

// Add returns p + q.
func Add(p, q deck.Point) deck.Point {
	a, b := toAffine(p), toAffine(q)
	var r twistededwards.PointAffine
	r.Add(&a, &b)
	return fromAffine(&r)
}

// Sub returns p - q.
func Sub(p, q deck.Point) deck.Point {
	a, b := toAffine(p), toAffine(q)
	var r twistededwards.PointAffine
	r.Neg(&b)
	r.Add(&a, &r)
	return fromAffine(&r)
}

// Mul returns k*p.
func Mul(p deck.Point, k *big.Int) deck.Point {
	a := toAffine(p)
	var r twistededwards.PointAffine
	r.ScalarMultiplication(&a, k)
	return fromAffine(&r)
}

// MulBase returns k*B where B is the generator.
func MulBase(k *big.Int) deck.Point {
	return Mul(base, k)
}

// RandomScalar draws a non-zero scalar modulo the subgroup order.
func RandomScalar(rng io.Reader) (*big.Int, error) {
	for {
		k, err := rand.Int(rng, &curve.Order)
		if err != nil {
			return nil, xerrors.Errorf("reading randomness: %w", err)
		}
		if k.Sign() != 0 {
			return k, nil
		}
	}
}

// RandomPoint returns a uniformly random point of the prime subgroup.
func RandomPoint(rng io.Reader) (deck.Point, error) {
	k, err := RandomScalar(rng)
	if err != nil {
		return deck.Point{}, err
	}
	return MulBase(k), nil
}

func toAffine(p deck.Point) twistededwards.PointAffine {
	a := twistededwards.PointAffine{Y: p.Y}
	a.X.Mul(&p.X, &sqrtM1)
	return a
}

func fromAffine(a *twistededwards.PointAffine) deck.Point {
	p := deck.Point{Y: a.Y}
	p.X.Mul(&a.X, &sqrtM1Inv)
	return p
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
