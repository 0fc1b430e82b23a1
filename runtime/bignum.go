package runtime

import (
	"math/big"

	"github.com/remyoudompheng/bigfft"
	"modernc.org/mathutil"
)

// bigfftThreshold is the operand bit-length above which multiplication
// is routed through bigfft's FFT-based multiplier instead of math/big's
// schoolbook/Karatsuba path (spec §4.3 "auto-promoting *'").
const bigfftThreshold = 1 << 14

// BigInteger is the arbitrary-precision integer variant values are
// auto-promoted into on overflow of the fixed-width Int (spec §3.1/§4.3).
type BigInteger struct{ v *big.Int }

func NewBigInteger(v *big.Int) *BigInteger           { return &BigInteger{v: new(big.Int).Set(v)} }
func NewBigIntegerFromInt64(i int64) *BigInteger      { return &BigInteger{v: big.NewInt(i)} }
func (b *BigInteger) Type() ValueType                 { return BigIntType }
func (b *BigInteger) String() string                  { return b.v.String() }
func (b *BigInteger) Cmp(o *BigInteger) int            { return b.v.Cmp(o.v) }
func (b *BigInteger) Big() *big.Int                    { return b.v }

// FitsInt64 reports whether this big integer could be demoted back to the
// fixed-width Int representation without loss (the inverse of overflow
// promotion).
func (b *BigInteger) FitsInt64() bool { return b.v.IsInt64() }

func bigMul(x, y *big.Int) *big.Int {
	if x.BitLen() > bigfftThreshold && y.BitLen() > bigfftThreshold {
		return bigfft.Mul(x, y)
	}
	return new(big.Int).Mul(x, y)
}

func BigAdd(a, b *BigInteger) *BigInteger { return &BigInteger{v: new(big.Int).Add(a.v, b.v)} }
func BigSub(a, b *BigInteger) *BigInteger { return &BigInteger{v: new(big.Int).Sub(a.v, b.v)} }
func BigMul(a, b *BigInteger) *BigInteger { return &BigInteger{v: bigMul(a.v, b.v)} }
func BigNeg(a *BigInteger) *BigInteger    { return &BigInteger{v: new(big.Int).Neg(a.v)} }

// Ratio is an exact reduced fraction (spec §3.1, §9 Open Question: reduction
// strategy). Small numerator/denominator pairs reduce via mathutil's int64
// GCD; larger ones fall back to math/big's native binary-GCD-based method.
type Ratio struct {
	num, den *big.Int // den > 0, gcd(num,den) == 1
}

func NewRatio(num, den *big.Int) *Ratio {
	if den.Sign() == 0 {
		panic("ratio: zero denominator")
	}
	num = new(big.Int).Set(num)
	den = new(big.Int).Set(den)
	if den.Sign() < 0 {
		num.Neg(num)
		den.Neg(den)
	}
	g := ratioGCD(num, den)
	if g.Cmp(big.NewInt(1)) > 0 {
		num.Quo(num, g)
		den.Quo(den, g)
	}
	return &Ratio{num: num, den: den}
}

func ratioGCD(a, b *big.Int) *big.Int {
	if a.IsInt64() && b.IsInt64() {
		g := mathutil.GCD(abs64(a.Int64()), abs64(b.Int64()))
		if g == 0 {
			return big.NewInt(1)
		}
		return big.NewInt(g)
	}
	aAbs := new(big.Int).Abs(a)
	bAbs := new(big.Int).Abs(b)
	return new(big.Int).GCD(nil, nil, aAbs, bAbs)
}

func abs64(i int64) int64 {
	if i < 0 {
		return -i
	}
	return i
}

func (r *Ratio) Type() ValueType { return RatioType }
func (r *Ratio) String() string  { return r.num.String() + "/" + r.den.String() }
func (r *Ratio) Cmp(o *Ratio) int {
	lhs := new(big.Int).Mul(r.num, o.den)
	rhs := new(big.Int).Mul(o.num, r.den)
	return lhs.Cmp(rhs)
}

func RatioAdd(a, b *Ratio) *Ratio {
	num := new(big.Int).Add(new(big.Int).Mul(a.num, b.den), new(big.Int).Mul(b.num, a.den))
	den := new(big.Int).Mul(a.den, b.den)
	return NewRatio(num, den)
}

func RatioMul(a, b *Ratio) *Ratio {
	return NewRatio(bigMul(a.num, b.num), bigMul(a.den, b.den))
}

// AsFloat64 widens a ratio to the nearest float, used when a ratio meets a
// float in mixed arithmetic (spec §4.3 numeric tower).
func (r *Ratio) AsFloat64() float64 {
	f := new(big.Float).Quo(new(big.Float).SetInt(r.num), new(big.Float).SetInt(r.den))
	v, _ := f.Float64()
	return v
}

// BigDecimal is an arbitrary-precision decimal: unscaled integer value
// times 10^-scale, matching Clojure's M-suffixed literal semantics.
type BigDecimal struct {
	unscaled *big.Int
	scale    int32
}

func NewBigDecimal(unscaled *big.Int, scale int32) *BigDecimal {
	return &BigDecimal{unscaled: new(big.Int).Set(unscaled), scale: scale}
}

func (d *BigDecimal) Type() ValueType { return BigDecimalType }
func (d *BigDecimal) String() string {
	s := d.unscaled.String()
	if d.scale <= 0 {
		return s + zeros(int(-d.scale))
	}
	neg := ""
	if s[0] == '-' {
		neg = "-"
		s = s[1:]
	}
	for int32(len(s)) <= d.scale {
		s = "0" + s
	}
	cut := int32(len(s)) - d.scale
	return neg + s[:cut] + "." + s[cut:]
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

// align brings two decimals to the larger of their two scales, rescaling
// each unscaled value with math/big.
func alignBigDecimal(a, b *BigDecimal) (*big.Int, *big.Int, int32) {
	scale := a.scale
	if b.scale > scale {
		scale = b.scale
	}
	au := scaleUp(a.unscaled, scale-a.scale)
	bu := scaleUp(b.unscaled, scale-b.scale)
	return au, bu, scale
}

func scaleUp(v *big.Int, by int32) *big.Int {
	if by <= 0 {
		return new(big.Int).Set(v)
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(by)), nil)
	return new(big.Int).Mul(v, factor)
}

func (d *BigDecimal) Cmp(o *BigDecimal) int {
	au, bu, _ := alignBigDecimal(d, o)
	return au.Cmp(bu)
}

func BigDecimalAdd(a, b *BigDecimal) *BigDecimal {
	au, bu, scale := alignBigDecimal(a, b)
	return &BigDecimal{unscaled: new(big.Int).Add(au, bu), scale: scale}
}

func BigDecimalMul(a, b *BigDecimal) *BigDecimal {
	return &BigDecimal{unscaled: bigMul(a.unscaled, b.unscaled), scale: a.scale + b.scale}
}
